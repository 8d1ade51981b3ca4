package store

import (
	"github.com/rotisserie/eris"

	"github.com/hannam-lab/markers-cli/internal/model"
)

// Transactions is an in-memory, read-only view over parsed transaction rows.
// Callers receive copies; the backing slice is never exposed.
type Transactions struct {
	records []model.TransactionRecord
}

// NewTransactions validates every record.
func NewTransactions(records []model.TransactionRecord) (*Transactions, error) {
	t := &Transactions{records: make([]model.TransactionRecord, 0, len(records))}
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return nil, eris.Wrapf(err, "store: record %d", i)
		}
		t.records = append(t.records, r)
	}
	return t, nil
}

// Len returns the number of records.
func (t *Transactions) Len() int { return len(t.records) }

// All returns a copy of every record in input order.
func (t *Transactions) All() []model.TransactionRecord {
	out := make([]model.TransactionRecord, len(t.records))
	copy(out, t.records)
	return out
}
