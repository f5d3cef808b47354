// Package position 计算播放队列的浮点排序键
package position

// Seed 空队列中第一项的位置
const Seed = 1.0

// Allocate 根据相邻两项的位置计算新位置，nil 表示该侧没有邻居
//   - 两侧都为空: Seed
//   - 只有 next: next - 1（插到队首）
//   - 只有 prev: prev + 1（追加到队尾）
//   - 两侧都有: 取中点
//
// 在同一对邻居之间反复取中点会耗尽 float64 精度，见 Exhausted 和 Rebalance。
func Allocate(prev, next *float64) float64 {
	switch {
	case prev == nil && next == nil:
		return Seed
	case prev == nil:
		return *next - 1
	case next == nil:
		return *prev + 1
	default:
		return (*prev + *next) / 2
	}
}

// Exhausted 判断 prev 和 next 之间是否已无法再分出一个严格位于两者之间的位置
func Exhausted(prev, next float64) bool {
	mid := (prev + next) / 2
	return !(prev < mid && mid < next)
}

// Rebalance 返回 n 个等间距的整数位置 1..n，用于离线重排
func Rebalance(n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(i + 1)
	}
	return out
}

// Ptr 返回 v 的指针，便于调用 Allocate
func Ptr(v float64) *float64 {
	return &v
}
