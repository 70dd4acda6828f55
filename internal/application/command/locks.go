// Package command contains write operations (CQRS - Commands).
package command

import (
	"sync"

	"github.com/guildxp/guildxp/internal/domain/shared"
)

// RecordLocks serializes record mutations per (guild, member) key. The host
// usually dispatches one event at a time, but with concurrent dispatch the
// read-modify-write of total XP must not interleave or grants get lost.
type RecordLocks struct {
	locks sync.Map // map[string]*sync.Mutex
}

// NewRecordLocks creates an empty lock table.
func NewRecordLocks() *RecordLocks {
	return &RecordLocks{}
}

// Lock acquires the mutex for a record key and returns its unlock function.
func (rl *RecordLocks) Lock(key shared.RecordKey) func() {
	val, _ := rl.locks.LoadOrStore(key.String(), &sync.Mutex{})
	mu := val.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
