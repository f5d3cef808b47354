package main

import "SyncPlay/cmd"

func main() {
	cmd.Execute()
}
