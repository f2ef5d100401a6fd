// Package memkv is an in-process ordered key-value backend: the default
// engine backend for tests and for embedding, implementing ordered-byte-
// range scans over one flat keyspace to match the kv.Transactor
// contract.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cuemby/polydb/pkg/kv"
)

// streamBatchFloor/Ceil bound the adaptive batch size used by
// StreamKeys/StreamVals: start at the floor and double up to the
// ceiling.
const (
	streamBatchFloor = 100
	streamBatchCeil  = 8192
)

// Store is a sorted in-memory map guarded by a single RWMutex. Writable
// transactions take an exclusive lock for their whole lifetime (the
// teacher's bbolt backend has the same single-writer constraint via
// db.Update), so there is never a need to reconcile concurrent writers.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
	keys []string // kept sorted; parallel index into data
}

// New creates an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

func (s *Store) Begin(_ context.Context, writable bool) (kv.Tx, error) {
	if writable {
		s.mu.Lock()
	} else {
		s.mu.RLock()
	}
	return &tx{store: s, writable: writable, overlay: newLayer()}, nil
}

func (s *Store) Close() error { return nil }

func (s *Store) find(k string) (int, bool) {
	i := sort.SearchStrings(s.keys, k)
	return i, i < len(s.keys) && s.keys[i] == k
}

func (s *Store) getLocked(k string) ([]byte, bool) {
	v, ok := s.data[k]
	return v, ok
}

func (s *Store) setLocked(k string, v []byte) {
	if _, exists := s.data[k]; !exists {
		i, _ := s.find(k)
		s.keys = append(s.keys, "")
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = k
	}
	s.data[k] = v
}

func (s *Store) delLocked(k string) {
	if _, exists := s.data[k]; !exists {
		return
	}
	delete(s.data, k)
	i, ok := s.find(k)
	if ok {
		s.keys = append(s.keys[:i], s.keys[i+1:]...)
	}
}

// layer is a single savepoint's pending writes: a nil value means a
// pending delete.
type layer struct {
	writes map[string][]byte
	dels   map[string]bool
}

func newLayer() *layer {
	return &layer{writes: make(map[string][]byte), dels: make(map[string]bool)}
}

// tx implements kv.Tx against a Store, buffering writes in a stack of
// layers so that savepoints can roll back without touching the Store
// until Commit.
type tx struct {
	store    *Store
	writable bool
	overlay  *layer
	stack    []*layer
	done     bool
}

var _ kv.Tx = (*tx)(nil)

func (t *tx) checkVer(ver kv.Version) error {
	if ver != nil {
		return kv.ErrVersionedReadsUnsupported
	}
	return nil
}

// resolve walks the layer stack from most to least recent, then the
// base store, returning (value, found).
func (t *tx) resolve(k string) ([]byte, bool) {
	if t.overlay.dels[k] {
		return nil, false
	}
	if v, ok := t.overlay.writes[k]; ok {
		return v, true
	}
	for i := len(t.stack) - 1; i >= 0; i-- {
		l := t.stack[i]
		if l.dels[k] {
			return nil, false
		}
		if v, ok := l.writes[k]; ok {
			return v, true
		}
	}
	return t.store.getLocked(k)
}

func (t *tx) Get(k []byte, ver kv.Version) ([]byte, error) {
	if t.done {
		return nil, kv.ErrTxFinished
	}
	if err := t.checkVer(ver); err != nil {
		return nil, err
	}
	v, ok := t.resolve(string(k))
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (t *tx) Exists(k []byte, ver kv.Version) (bool, error) {
	if t.done {
		return false, kv.ErrTxFinished
	}
	if err := t.checkVer(ver); err != nil {
		return false, err
	}
	_, ok := t.resolve(string(k))
	return ok, nil
}

func (t *tx) Set(k, v []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	ks := string(k)
	delete(t.overlay.dels, ks)
	t.overlay.writes[ks] = append([]byte(nil), v...)
	return nil
}

func (t *tx) Put(k, v []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	if _, ok := t.resolve(string(k)); ok {
		return kv.ErrAlreadyExists
	}
	return t.Set(k, v)
}

func (t *tx) Putc(k, v, check []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	cur, ok := t.resolve(string(k))
	if check == nil {
		if ok {
			return kv.ErrCASFailed
		}
	} else if !ok || !bytes.Equal(cur, check) {
		return kv.ErrCASFailed
	}
	return t.Set(k, v)
}

func (t *tx) Del(k []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	ks := string(k)
	delete(t.overlay.writes, ks)
	t.overlay.dels[ks] = true
	return nil
}

func (t *tx) Delc(k, check []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	cur, ok := t.resolve(string(k))
	if !ok || !bytes.Equal(cur, check) {
		return kv.ErrCASFailed
	}
	return t.Del(k)
}

// mergedKeys returns every key visible to this tx within r, in sorted
// order, by merging the base store's key slice with the pending layers.
func (t *tx) mergedKeys(r kv.KeyRange) []string {
	base := t.store.keys
	lo := sort.SearchStrings(base, string(r.Start))
	hi := len(base)
	if r.End != nil {
		hi = sort.SearchStrings(base, string(r.End))
	}
	seen := make(map[string]bool, hi-lo)
	out := make([]string, 0, hi-lo)
	for _, k := range base[lo:hi] {
		if _, ok := t.resolve(k); ok {
			out = append(out, k)
		}
		seen[k] = true
	}

	extra := make([]string, 0)
	addExtra := func(k string) {
		if seen[k] || !inRange(k, r) {
			return
		}
		seen[k] = true
		if _, ok := t.resolve(k); ok {
			extra = append(extra, k)
		}
	}
	for k := range t.overlay.writes {
		addExtra(k)
	}
	for _, l := range t.stack {
		for k := range l.writes {
			addExtra(k)
		}
	}
	sort.Strings(extra)
	return mergeSorted(out, extra)
}

func inRange(k string, r kv.KeyRange) bool {
	if k < string(r.Start) {
		return false
	}
	if r.End != nil && k >= string(r.End) {
		return false
	}
	return true
}

func mergeSorted(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] <= b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

func (t *tx) Scan(r kv.KeyRange, limit int, ver kv.Version) ([]kv.KV, error) {
	if t.done {
		return nil, kv.ErrTxFinished
	}
	if err := t.checkVer(ver); err != nil {
		return nil, err
	}
	keys := t.mergedKeys(r)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]kv.KV, 0, len(keys))
	for _, k := range keys {
		v, _ := t.resolve(k)
		out = append(out, kv.KV{Key: []byte(k), Value: append([]byte(nil), v...)})
	}
	return out, nil
}

func (t *tx) Keys(r kv.KeyRange, limit int, ver kv.Version) ([][]byte, error) {
	rows, err := t.Scan(r, limit, ver)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(rows))
	for i, kvp := range rows {
		out[i] = kvp.Key
	}
	return out, nil
}

func (t *tx) StreamKeys(ctx context.Context, r kv.KeyRange, ver kv.Version, dir kv.Direction) (<-chan [][]byte, <-chan error) {
	out := make(chan [][]byte)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		keys := t.mergedKeys(r)
		if dir == kv.Reverse {
			reverseStrings(keys)
		}
		batch := streamBatchFloor
		for i := 0; i < len(keys); {
			end := i + batch
			if end > len(keys) {
				end = len(keys)
			}
			page := make([][]byte, end-i)
			for j := i; j < end; j++ {
				page[j-i] = []byte(keys[j])
			}
			select {
			case out <- page:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
			i = end
			if batch < streamBatchCeil {
				batch *= 2
			}
		}
	}()
	return out, errc
}

func (t *tx) StreamVals(ctx context.Context, r kv.KeyRange, ver kv.Version, dir kv.Direction) (<-chan []kv.KV, <-chan error) {
	out := make(chan []kv.KV)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		keys := t.mergedKeys(r)
		if dir == kv.Reverse {
			reverseStrings(keys)
		}
		batch := streamBatchFloor
		for i := 0; i < len(keys); {
			end := i + batch
			if end > len(keys) {
				end = len(keys)
			}
			page := make([]kv.KV, 0, end-i)
			for j := i; j < end; j++ {
				v, _ := t.resolve(keys[j])
				page = append(page, kv.KV{Key: []byte(keys[j]), Value: append([]byte(nil), v...)})
			}
			select {
			case out <- page:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
			i = end
			if batch < streamBatchCeil {
				batch *= 2
			}
		}
	}()
	return out, errc
}

func reverseStrings(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func (t *tx) BatchDelete(r kv.KeyRange, batchSize int, ver kv.Version) (int, error) {
	if t.done {
		return 0, kv.ErrTxFinished
	}
	if err := t.checkVer(ver); err != nil {
		return 0, err
	}
	if batchSize <= 0 {
		batchSize = streamBatchFloor
	}
	keys := t.mergedKeys(r)
	for _, k := range keys {
		if err := t.Del([]byte(k)); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

type savePoint struct {
	tx    *tx
	depth int
}

func (t *tx) NewSavePoint() (kv.SavePoint, error) {
	if t.done {
		return nil, kv.ErrTxFinished
	}
	t.stack = append(t.stack, t.overlay)
	t.overlay = newLayer()
	return &savePoint{tx: t, depth: len(t.stack)}, nil
}

func (sp *savePoint) Release() error {
	t := sp.tx
	if sp.depth != len(t.stack) {
		return kv.ErrTxFinished // savepoint already released/rolled back out of order
	}
	parent := t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	for k := range t.overlay.dels {
		delete(parent.writes, k)
		parent.dels[k] = true
	}
	for k, v := range t.overlay.writes {
		delete(parent.dels, k)
		parent.writes[k] = v
	}
	t.overlay = parent
	return nil
}

func (sp *savePoint) Rollback() error {
	t := sp.tx
	if sp.depth != len(t.stack) {
		return kv.ErrTxFinished
	}
	t.overlay = t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return kv.ErrTxFinished
	}
	t.done = true
	defer t.unlock()
	if !t.writable {
		return nil
	}
	for k := range t.overlay.dels {
		t.store.delLocked(k)
	}
	for k, v := range t.overlay.writes {
		t.store.setLocked(k, v)
	}
	return nil
}

func (t *tx) Cancel() error {
	if t.done {
		return kv.ErrTxFinished
	}
	t.done = true
	t.unlock()
	return nil
}

func (t *tx) unlock() {
	if t.writable {
		t.store.mu.Unlock()
	} else {
		t.store.mu.RUnlock()
	}
}

func (t *tx) Timestamp() time.Time {
	return time.Now().UTC()
}
