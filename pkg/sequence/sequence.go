// Package sequence issues monotonic IDs for namespaces, databases,
// tables, and indexes, batching reservations to amortize KV writes: a
// single monotonic counter guarded by a mutex, refilled in chunks
// rather than incremented one at a time under load.
package sequence

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/kv"
)

// BatchSize is the number of IDs reserved per compare-and-swap round
// trip to the store.
const BatchSize = 256

// Allocator issues IDs for a single (scope, name) sequence, e.g.
// ("ns", "") for namespace IDs or ("tb", "myapp/users") for table IDs
// within one database. One Allocator instance is meant to live for the
// lifetime of a process (or a pool keyed by scope/name), not per
// transaction: that's what makes the local batch worth holding.
type Allocator struct {
	scope, name string

	mu        sync.Mutex
	next      uint64 // next value to hand out from the local batch
	reservedTo uint64 // local batch is valid for next..reservedTo (exclusive)
}

// New creates an allocator for the given scope/name. scope is a
// caller-chosen namespace for the sequence key (e.g. "ns", "tb:myapp/
// users"); name is usually empty unless multiple independent counters
// share a scope.
func New(scope, name string) *Allocator {
	return &Allocator{scope: scope, name: name}
}

// Next returns the next ID in this sequence, reserving a new batch via
// putc-with-retry against tx if the local batch is exhausted. On tx
// rollback, any IDs reserved but not yet handed out are simply
// abandoned: holes in the ID space are permitted.
func (a *Allocator) Next(tx kv.Tx) (uint64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.next >= a.reservedTo {
		if err := a.reserveBatch(tx); err != nil {
			return 0, err
		}
	}
	id := a.next
	a.next++
	return id, nil
}

// reserveBatch performs a compare-and-swap loop against the sequence
// key, advancing the persisted counter by BatchSize and claiming the
// resulting range for this process.
func (a *Allocator) reserveBatch(tx kv.Tx) error {
	key := keyspace.Sequence(a.scope, a.name)
	for {
		cur, err := tx.Get(key, nil)
		var curVal uint64
		switch {
		case err == kv.ErrNotFound:
			curVal = 0
		case err != nil:
			return fmt.Errorf("sequence: read %s/%s: %w", a.scope, a.name, err)
		default:
			if len(cur) != 8 {
				return fmt.Errorf("sequence: corrupt counter for %s/%s", a.scope, a.name)
			}
			curVal = binary.BigEndian.Uint64(cur)
		}
		next := curVal + BatchSize
		var nextBuf [8]byte
		binary.BigEndian.PutUint64(nextBuf[:], next)

		var check []byte
		if cur != nil {
			check = cur
		}
		err = tx.Putc(key, nextBuf[:], check)
		if err == kv.ErrCASFailed {
			continue // another allocator in this process raced us; retry
		}
		if err != nil {
			return fmt.Errorf("sequence: reserve batch for %s/%s: %w", a.scope, a.name, err)
		}
		a.next = curVal
		a.reservedTo = next
		return nil
	}
}
