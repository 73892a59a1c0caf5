// Package chat implements the conversation and messaging service layer:
// conversation creation and dedup, message lifecycle, reactions, read
// tracking, typing indicators and presence. All operations act on the
// process-wide store opened via store.Open.
//
// Mutations are serialized by a single package-level lock so each
// read-modify-write cycle is atomic relative to other mutations. Queries
// iterate the store without the lock.
package chat

import (
	"sync"
	"time"
)

var mu sync.Mutex

// now returns the current UTC time in nanoseconds. Tests may override it.
var now = func() int64 { return time.Now().UTC().UnixNano() }
