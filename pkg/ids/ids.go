// Package ids generates Eludris snowflake IDs.
//
// A snowflake packs the seconds elapsed since the Eludris epoch, an 8-bit
// worker id and an 8-bit wrapping sequence counter:
//
//	(now - epoch seconds) << 16 | worker_id << 8 | seq
//
// A single generator is monotonic for its worker as long as it does not hand
// out more than 256 ids per second; operators give each process a distinct
// worker id since generators are not coordinated across processes.
package ids

import (
	"sync"
	"time"
)

// Epoch is the Eludris epoch: 2022-04-15 00:00:00 UTC.
const Epoch int64 = 1_650_000_000

// Generator allocates snowflake IDs for one worker. Safe for concurrent use.
type Generator struct {
	mu       sync.Mutex
	workerID uint8
	seq      uint8
	now      func() time.Time
}

// NewGenerator returns a generator stamped with the given worker id.
func NewGenerator(workerID uint8) *Generator {
	return &Generator{workerID: workerID, now: time.Now}
}

// Next allocates a fresh snowflake. The sequence counter wraps modulo 256
// per generator instance.
func (g *Generator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	seconds := uint64(g.now().Unix() - Epoch)
	id := seconds<<16 | uint64(g.workerID)<<8 | uint64(g.seq)
	g.seq++
	return id
}

// Timestamp extracts the creation time encoded in a snowflake.
func Timestamp(id uint64) time.Time {
	return time.Unix(int64(id>>16)+Epoch, 0).UTC()
}

// WorkerID extracts the worker id encoded in a snowflake.
func WorkerID(id uint64) uint8 {
	return uint8(id >> 8)
}
