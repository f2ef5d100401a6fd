// Package txn wraps a kv.Tx with three cross-cutting concerns layered
// on top of raw storage: a typed catalog cache, change-feed buffering,
// and sequence allocation.
package txn

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cuemby/polydb/pkg/catalog"
	"github.com/cuemby/polydb/pkg/changefeed"
	"github.com/cuemby/polydb/pkg/keyspace"
	"github.com/cuemby/polydb/pkg/kv"
	"github.com/cuemby/polydb/pkg/metrics"
	"github.com/cuemby/polydb/pkg/sequence"
	"github.com/cuemby/polydb/pkg/value"
)

// Tx wraps a kv.Tx with a per-transaction catalog cache, change-feed
// buffer, and sequence allocator lookup. Reads through Tx always see
// this transaction's own prior writes (read-your-writes), because the
// underlying kv.Tx already guarantees that and the cache here is purely
// an optimization, never a source of truth independent of it.
type Tx struct {
	inner kv.Tx
	log   zerolog.Logger

	nsCache map[string]*catalog.Namespace
	dbCache map[nsDbKey]*catalog.Database
	tbCache map[dbTbKey]*catalog.Table

	cf   *changefeed.Buffer
	seqs map[string]*sequence.Allocator
}

type nsDbKey struct{ ns, db string }
type dbTbKey struct{ ns, db, tb string }

// New wraps inner in a facade. log is the component logger (teacher's
// log.WithComponent pattern); it may be the zero Logger.
func New(inner kv.Tx, log zerolog.Logger) *Tx {
	return &Tx{
		inner:   inner,
		log:     log,
		nsCache: make(map[string]*catalog.Namespace),
		dbCache: make(map[nsDbKey]*catalog.Database),
		tbCache: make(map[dbTbKey]*catalog.Table),
		cf:      changefeed.New(),
		seqs:    make(map[string]*sequence.Allocator),
	}
}

// Inner exposes the underlying kv.Tx for components (document mutator,
// index machinery) that need raw byte access beyond the catalog cache.
func (t *Tx) Inner() kv.Tx { return t.inner }

// allocator returns (creating if needed) the sequence allocator for
// scope/name. Allocators are cached per-Tx only for convenience; the
// real persistent state lives in the KV store under /seq/....
func (t *Tx) allocator(scope, name string) *sequence.Allocator {
	key := scope + "\x00" + name
	a, ok := t.seqs[key]
	if !ok {
		a = sequence.New(scope, name)
		t.seqs[key] = a
	}
	return a
}

// NextTableID allocates the next table ID within (ns, db).
func (t *Tx) NextTableID(ns, db string) (uint32, error) {
	id, err := t.allocator("tb", ns+"/"+db).Next(t.inner)
	return uint32(id), err
}

// NextIndexID allocates the next index ID within (ns, db, tb).
func (t *Tx) NextIndexID(ns, db, tb string) (uint32, error) {
	id, err := t.allocator("ix", ns+"/"+db+"/"+tb).Next(t.inner)
	return uint32(id), err
}

// NextDatabaseID allocates the next database ID within ns.
func (t *Tx) NextDatabaseID(ns string) (uint32, error) {
	id, err := t.allocator("db", ns).Next(t.inner)
	return uint32(id), err
}

// NextNamespaceID allocates the next namespace ID.
func (t *Tx) NextNamespaceID() (uint32, error) {
	id, err := t.allocator("ns", "").Next(t.inner)
	return uint32(id), err
}

// GetTable returns the cached Table definition for (ns, db, tb),
// fetching and caching it on first access.
func (t *Tx) GetTable(ns, db, tb string) (*catalog.Table, error) {
	k := dbTbKey{ns, db, tb}
	if cached, ok := t.tbCache[k]; ok {
		return cached, nil
	}
	raw, err := t.inner.Get(keyspace.Table(ns, db, tb), nil)
	if err == kv.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("txn: get table %s/%s/%s: %w", ns, db, tb, err)
	}
	var tbl catalog.Table
	if err := decodeJSON(raw, &tbl); err != nil {
		return nil, err
	}
	t.tbCache[k] = &tbl
	return &tbl, nil
}

// PutTable writes a table definition under (ns, db), repopulating the
// cache, and buffers a table-change-feed entry. ns/db are the owning
// namespace and database NAMES (the keyspace indexes tables by name,
// not by the numeric catalog.Table.NS/DB foreign keys).
func (t *Tx) PutTable(ns, db string, tbl *catalog.Table) error {
	raw, err := encodeJSON(tbl)
	if err != nil {
		return err
	}
	if err := t.inner.Set(keyspace.Table(ns, db, tbl.Name), raw); err != nil {
		return err
	}
	t.tbCache[dbTbKey{ns, db, tbl.Name}] = tbl
	def := value.EmptyObject().WithField("name", value.String(tbl.Name))
	t.cf.TableChange(ns, db, tbl.Name, def)
	return nil
}

// DelTable removes a table definition and invalidates the cache entry.
func (t *Tx) DelTable(ns, db, tb string) error {
	if err := t.inner.Del(keyspace.Table(ns, db, tb)); err != nil {
		return err
	}
	delete(t.tbCache, dbTbKey{ns, db, tb})
	return nil
}

// BufferRecordChange records a record mutation for the change feed.
func (t *Tx) BufferRecordChange(ns, db, tb string, id, prev, curr value.Value, storeDiff bool) {
	t.cf.RecordChange(ns, db, tb, id, prev, curr, storeDiff)
	metrics.ChangeFeedEntriesBuffered.Inc()
}

// StoreChanges flushes the buffered change feed under one VersionStamp
// read from the transactor's monotonic clock, acquired as close to
// commit time as possible so it reflects the order transactions
// actually committed in, not the order they started. Call this
// immediately before Commit.
func (t *Tx) StoreChanges() error {
	if t.cf.Empty() {
		return nil
	}
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ChangeFeedFlushDuration)
	vs := changefeed.NewVersionStamp(t.inner.Timestamp().UnixNano())
	if err := t.cf.Flush(t.inner, vs); err != nil {
		return err
	}
	return nil
}

// Commit flushes buffered change-feed entries and commits the
// underlying transaction. If StoreChanges fails, the whole transaction
// is cancelled rather than partially committed.
func (t *Tx) Commit() error {
	timer := metrics.NewTimer()
	if err := t.StoreChanges(); err != nil {
		_ = t.inner.Cancel()
		t.log.Error().Err(err).Msg("txn: store changes failed, transaction cancelled")
		metrics.TxCancelsTotal.Inc()
		return fmt.Errorf("txn: store changes: %w", err)
	}
	if err := t.inner.Commit(); err != nil {
		t.log.Error().Err(err).Msg("txn: commit failed")
		return err
	}
	timer.ObserveDuration(metrics.TxCommitDuration)
	metrics.TxCommitsTotal.Inc()
	return nil
}

// Cancel aborts the transaction, discarding every buffered change.
func (t *Tx) Cancel() error {
	if err := t.inner.Cancel(); err != nil {
		t.log.Error().Err(err).Msg("txn: cancel failed")
		return err
	}
	metrics.TxCancelsTotal.Inc()
	return nil
}

// Begin opens a new facade Tx against transactor, logging via log.
func Begin(ctx context.Context, transactor kv.Transactor, writable bool, log zerolog.Logger) (*Tx, error) {
	inner, err := transactor.Begin(ctx, writable)
	if err != nil {
		return nil, err
	}
	return New(inner, log), nil
}
