// Package boltkv adapts go.etcd.io/bbolt to the kv.Transactor contract:
// db.Update and db.View wrap writable/read-only transactions, and
// Bucket.Cursor().Seek drives ordered range scans. Rather than one
// bucket per entity kind, this adapter keeps a single bucket ("root")
// because every key already carries its own domain prefix
// (pkg/keyspace), so there is exactly one ordered namespace to scan.
package boltkv

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/polydb/pkg/kv"
)

var rootBucket = []byte("root")

const (
	streamBatchFloor = 100
	streamBatchCeil  = 8192
)

// Store is a bbolt-backed Transactor.
type Store struct {
	db *bolt.DB
}

// Open creates or opens a bbolt database file at path, ensuring the root
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: open %s: %w", path, err)
	}
	err = db.Update(func(btx *bolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltkv: create root bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Begin(_ context.Context, writable bool) (kv.Tx, error) {
	btx, err := s.db.Begin(writable)
	if err != nil {
		return nil, fmt.Errorf("boltkv: begin: %w", err)
	}
	bucket := btx.Bucket(rootBucket)
	if bucket == nil {
		// a read-only tx started before the bucket existed; should not
		// happen given Open's invariant, but fail loudly rather than
		// nil-deref on first use.
		btx.Rollback()
		return nil, fmt.Errorf("boltkv: root bucket missing")
	}
	return &tx{btx: btx, bucket: bucket, writable: writable, start: time.Now().UTC()}, nil
}

type tx struct {
	btx                 *bolt.Tx
	bucket              *bolt.Bucket
	writable            bool
	start               time.Time
	done                bool
	recordingSavePoints []*savePoint
}

// snapshotForWrite lets every still-active savepoint record k's
// pre-write value, so a later Rollback can restore it. Must be called
// before any mutation (Set/Put/Putc/Del/Delc).
func (t *tx) snapshotForWrite(k []byte) {
	for _, sp := range t.recordingSavePoints {
		sp.snapshot(k)
	}
}

var _ kv.Tx = (*tx)(nil)

func checkVer(ver kv.Version) error {
	if ver != nil {
		return kv.ErrVersionedReadsUnsupported
	}
	return nil
}

func (t *tx) Get(k []byte, ver kv.Version) ([]byte, error) {
	if t.done {
		return nil, kv.ErrTxFinished
	}
	if err := checkVer(ver); err != nil {
		return nil, err
	}
	v := t.bucket.Get(k)
	if v == nil {
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
	if err := checkVer(ver); err != nil {
		return false, err
	}
	return t.bucket.Get(k) != nil, nil
}

func (t *tx) Set(k, v []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	t.snapshotForWrite(k)
	return t.bucket.Put(k, v)
}

func (t *tx) Put(k, v []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	if t.bucket.Get(k) != nil {
		return kv.ErrAlreadyExists
	}
	t.snapshotForWrite(k)
	return t.bucket.Put(k, v)
}

func (t *tx) Putc(k, v, check []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	cur := t.bucket.Get(k)
	if check == nil {
		if cur != nil {
			return kv.ErrCASFailed
		}
	} else if cur == nil || string(cur) != string(check) {
		return kv.ErrCASFailed
	}
	t.snapshotForWrite(k)
	return t.bucket.Put(k, v)
}

func (t *tx) Del(k []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	t.snapshotForWrite(k)
	return t.bucket.Delete(k)
}

func (t *tx) Delc(k, check []byte) error {
	if t.done {
		return kv.ErrTxFinished
	}
	cur := t.bucket.Get(k)
	if cur == nil || string(cur) != string(check) {
		return kv.ErrCASFailed
	}
	t.snapshotForWrite(k)
	return t.bucket.Delete(k)
}

// inRange reports whether k lies in the half-open range [r.Start, r.End).
func inRange(k []byte, r kv.KeyRange) bool {
	if string(k) < string(r.Start) {
		return false
	}
	if r.End != nil && string(k) >= string(r.End) {
		return false
	}
	return true
}

func (t *tx) Scan(r kv.KeyRange, limit int, ver kv.Version) ([]kv.KV, error) {
	if t.done {
		return nil, kv.ErrTxFinished
	}
	if err := checkVer(ver); err != nil {
		return nil, err
	}
	c := t.bucket.Cursor()
	var out []kv.KV
	for k, v := c.Seek(r.Start); k != nil && inRange(k, r); k, v = c.Next() {
		out = append(out, kv.KV{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		if limit > 0 && len(out) >= limit {
			break
		}
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
		rows, err := t.Scan(r, 0, ver)
		if err != nil {
			errc <- err
			return
		}
		if dir == kv.Reverse {
			for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
		batch := streamBatchFloor
		for i := 0; i < len(rows); {
			end := i + batch
			if end > len(rows) {
				end = len(rows)
			}
			page := make([][]byte, end-i)
			for j := i; j < end; j++ {
				page[j-i] = rows[j].Key
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
		rows, err := t.Scan(r, 0, ver)
		if err != nil {
			errc <- err
			return
		}
		if dir == kv.Reverse {
			for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
				rows[i], rows[j] = rows[j], rows[i]
			}
		}
		batch := streamBatchFloor
		for i := 0; i < len(rows); {
			end := i + batch
			if end > len(rows) {
				end = len(rows)
			}
			select {
			case out <- rows[i:end]:
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

func (t *tx) BatchDelete(r kv.KeyRange, batchSize int, ver kv.Version) (int, error) {
	if t.done {
		return 0, kv.ErrTxFinished
	}
	if err := checkVer(ver); err != nil {
		return 0, err
	}
	keys, err := t.Keys(r, 0, ver)
	if err != nil {
		return 0, err
	}
	for _, k := range keys {
		t.snapshotForWrite(k)
		if err := t.bucket.Delete(k); err != nil {
			return 0, err
		}
	}
	return len(keys), nil
}

// savePoint emulates a nested savepoint on top of bbolt (which has no
// native nested-transaction support): it snapshots every key this
// savepoint touches before the first write to it, and restores those
// values on rollback.
type savePoint struct {
	t      *tx
	before map[string][]byte // nil value means "was absent"
	active bool
}

func (t *tx) NewSavePoint() (kv.SavePoint, error) {
	if t.done {
		return nil, kv.ErrTxFinished
	}
	sp := &savePoint{t: t, before: make(map[string][]byte), active: true}
	t.recordingSavePoints = append(t.recordingSavePoints, sp)
	return sp, nil
}

func (sp *savePoint) snapshot(k []byte) {
	if !sp.active {
		return
	}
	ks := string(k)
	if _, ok := sp.before[ks]; ok {
		return
	}
	if v := sp.t.bucket.Get(k); v != nil {
		sp.before[ks] = append([]byte(nil), v...)
	} else {
		sp.before[ks] = nil
	}
}

func (sp *savePoint) detach() {
	sp.active = false
	list := sp.t.recordingSavePoints
	for i, cur := range list {
		if cur == sp {
			sp.t.recordingSavePoints = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (sp *savePoint) Release() error {
	sp.detach()
	return nil
}

func (sp *savePoint) Rollback() error {
	for k, v := range sp.before {
		if v == nil {
			if err := sp.t.bucket.Delete([]byte(k)); err != nil {
				return err
			}
		} else if err := sp.t.bucket.Put([]byte(k), v); err != nil {
			return err
		}
	}
	sp.detach()
	return nil
}

func (t *tx) Commit() error {
	if t.done {
		return kv.ErrTxFinished
	}
	t.done = true
	if !t.writable {
		return t.btx.Rollback()
	}
	return t.btx.Commit()
}

func (t *tx) Cancel() error {
	if t.done {
		return kv.ErrTxFinished
	}
	t.done = true
	return t.btx.Rollback()
}

func (t *tx) Timestamp() time.Time {
	return t.start
}
