package graph

import (
	"github.com/google/uuid"
	"github.com/koredb/kore/internal/wal"
	koreErrors "github.com/koredb/kore/pkg/errors"
)

// txState is Transaction's lifecycle: exactly one of open, committed, or
// rolled back at any time.
type txState int

const (
	txOpen txState = iota
	txCommitted
	txRolledBack
)

// Transaction buffers a batch of writes in memory and commits or discards
// them atomically, per spec.md §4.10 Transactions. It is not safe for
// concurrent use by multiple goroutines.
type Transaction struct {
	g     *Graph
	id    string
	batch []wal.Record
	state txState
}

// Begin returns a new, empty Transaction bound to g. Each transaction gets
// a unique id (for log correlation only — it has no bearing on commit
// semantics), the same per-operation identifier pattern
// rosedblabs-lotusdb's compaction path uses uuid.New() for.
func (g *Graph) Begin() *Transaction {
	return &Transaction{g: g, id: uuid.NewString(), state: txOpen}
}

// requireOpen returns an invalid-state error if the transaction has already
// been committed or rolled back; committing or discarding twice, or acting
// on an abandoned transaction, is a programmer error per spec.md §4.10.
func (tx *Transaction) requireOpen() error {
	switch tx.state {
	case txCommitted:
		return koreErrors.NewInvalidStateError("transaction already committed")
	case txRolledBack:
		return koreErrors.NewInvalidStateError("transaction already rolled back")
	}
	return nil
}

// Put appends an arbitrary (key, value) write to the buffer.
func (tx *Transaction) Put(key, value []byte) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	tx.batch = append(tx.batch, wal.Record{Key: key, Value: value})
	return nil
}

// PutNode appends a node write (document plus label/property indices) to
// the buffer.
func (tx *Transaction) PutNode(n Node) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	records, err := nodeRecords(n)
	if err != nil {
		return err
	}
	tx.batch = append(tx.batch, records...)
	return nil
}

// PutEdge appends an edge write (dual out/in records plus property
// indices) to the buffer.
func (tx *Transaction) PutEdge(e Edge) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	records, err := edgeRecords(e)
	if err != nil {
		return err
	}
	tx.batch = append(tx.batch, records...)
	return nil
}

// Commit issues the buffered batch as a single write_batch call, giving it
// the same all-or-nothing WAL-batch atomicity every other multi-key write
// in the engine has. Committing an empty transaction is a no-op that still
// transitions state, matching Begin/Commit with no intervening writes
// being a valid (if pointless) no-op rather than an error.
func (tx *Transaction) Commit(urgent bool) error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	tx.state = txCommitted
	if len(tx.batch) == 0 {
		return nil
	}
	err := tx.g.eng.WriteBatch(tx.batch, urgent)
	if tx.g.log != nil {
		tx.g.log.Debugw("transaction committed", "txId", tx.id, "records", len(tx.batch), "error", err)
	}
	return err
}

// Rollback discards the buffer without writing anything.
func (tx *Transaction) Rollback() error {
	if err := tx.requireOpen(); err != nil {
		return err
	}
	tx.state = txRolledBack
	if tx.g.log != nil {
		tx.g.log.Debugw("transaction rolled back", "txId", tx.id, "discardedRecords", len(tx.batch))
	}
	tx.batch = nil
	return nil
}
