// Package catalog stores benchmark-run summaries in an embedded BadgerDB so
// that results accumulate across runs and can be queried without re-parsing
// measurement logs. Keys are prefixed run:<stamp>:<role>.
package catalog

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// RunPrefix is the key prefix for run summary records.
const RunPrefix = "run:"

// ErrNotFound indicates a missing summary record.
var ErrNotFound = errors.New("summary not found")

// PhaseStat aggregates one measured phase across a run.
type PhaseStat struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	TotalMicros int64  `json:"total_us"`
	MinMicros   int64  `json:"min_us"`
	MaxMicros   int64  `json:"max_us"`
}

// Summary is the per-run, per-role result record.
type Summary struct {
	Stamp      string      `json:"stamp"`
	Role       string      `json:"role"`
	Parameters string      `json:"parameters"`
	Frames     int         `json:"frames"`
	Phases     []PhaseStat `json:"phases"`
}

// Catalog is a handle on the results store.
type Catalog struct {
	db  *badger.DB
	log *logrus.Logger
}

// Open opens (or creates) the catalog at dir.
func Open(dir string, log *logrus.Logger) (*Catalog, error) {
	if log == nil {
		log = logrus.New()
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open results catalog at %s: %w", dir, err)
	}
	return &Catalog{db: db, log: log}, nil
}

// Close releases the underlying store.
func (c *Catalog) Close() error {
	return c.db.Close()
}

func summaryKey(stamp, role string) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", RunPrefix, stamp, role))
}

// PutSummary stores or replaces the summary for its stamp and role.
func (c *Catalog) PutSummary(s Summary) error {
	val, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(summaryKey(s.Stamp, s.Role), val)
	})
	if err != nil {
		return fmt.Errorf("failed to store summary for %s/%s: %w", s.Stamp, s.Role, err)
	}

	c.log.Debugf("stored run summary %s/%s (%d phases)", s.Stamp, s.Role, len(s.Phases))
	return nil
}

// GetSummary returns the summary stored for stamp and role.
func (c *Catalog) GetSummary(stamp, role string) (Summary, error) {
	var s Summary
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(summaryKey(stamp, role))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return fmt.Errorf("%w: %s/%s", ErrNotFound, stamp, role)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if err != nil {
		return Summary{}, err
	}
	return s, nil
}

// ListRuns returns every stored summary in key order.
func (c *Catalog) ListRuns() ([]Summary, error) {
	var out []Summary
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(RunPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var s Summary
				if err := json.Unmarshal(val, &s); err != nil {
					return fmt.Errorf("corrupt summary at %s: %w", it.Item().Key(), err)
				}
				out = append(out, s)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list run summaries: %w", err)
	}
	return out, nil
}
