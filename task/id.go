package task

import (
	"strconv"
	"sync/atomic"
	"time"
)

// ID identifies a task for the lifetime of the process.
type ID uint64

var lastID atomic.Uint64

func nextID() ID {
	return ID(lastID.Add(1))
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
}
