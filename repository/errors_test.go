package repository

import (
	"errors"
	"fmt"
	"testing"

	"SyncPlay/core/queue"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	err := mapError(fmt.Errorf("first: %w", gorm.ErrRecordNotFound))
	assert.True(t, errors.Is(err, queue.ErrNotFound))

	err = mapError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 't1' for key 'track_id'"})
	assert.True(t, errors.Is(err, queue.ErrDuplicateTrack))

	err = mapError(gorm.ErrDuplicatedKey)
	assert.True(t, errors.Is(err, queue.ErrDuplicateTrack))

	other := &mysql.MySQLError{Number: 1213, Message: "Deadlock found"}
	err = mapError(other)
	assert.Same(t, other, err)
	assert.False(t, errors.Is(err, queue.ErrNotFound))
}
