package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// MemoryStore is an in-process RecordStore. It applies the same table and column
// whitelist as Store and is used by tests and by the server when no database is
// reachable.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string][]Record
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: map[string][]Record{}, now: time.Now}
}

func (m *MemoryStore) Insert(_ context.Context, table string, rec Record) (Record, error) {
	for col := range rec {
		if _, err := checkColumn(table, col); err != nil {
			return nil, err
		}
	}
	if len(rec) == 0 {
		return nil, eris.Errorf("db: insert into %s: empty record", table)
	}

	row := copyRecord(rec)
	if id, ok := row["id"]; !ok || id == nil || id == "" {
		row["id"] = uuid.NewString()
	} else {
		row["id"] = fmt.Sprint(id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := row["created_at"]; !ok {
		// Strictly increasing timestamps keep insertion order under created_at sorts.
		row["created_at"] = m.nextTimestamp(table)
	}
	m.tables[table] = append(m.tables[table], row)
	return copyRecord(row), nil
}

func (m *MemoryStore) nextTimestamp(table string) time.Time {
	ts := m.now().UTC()
	rows := m.tables[table]
	if len(rows) > 0 {
		if last, ok := rows[len(rows)-1]["created_at"].(time.Time); ok && !ts.After(last) {
			ts = last.Add(time.Microsecond)
		}
	}
	return ts
}

func (m *MemoryStore) Get(_ context.Context, table, id string) (Record, error) {
	if _, err := columnsOf(table); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, row := range m.tables[table] {
		if row["id"] == id {
			return copyRecord(row), nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "db: %s %s", table, id)
}

func (m *MemoryStore) QueryByField(_ context.Context, table, field string, value any, opts QueryOptions) ([]Record, error) {
	if _, err := checkColumn(table, field); err != nil {
		return nil, err
	}
	want := fmt.Sprint(value)

	m.mu.RLock()
	var out []Record
	for _, row := range m.tables[table] {
		if v, ok := row[field]; ok && v != nil && fmt.Sprint(v) == want {
			out = append(out, copyRecord(row))
		}
	}
	m.mu.RUnlock()
	return applyOptions(table, out, opts)
}

func (m *MemoryStore) List(_ context.Context, table string, opts QueryOptions) ([]Record, error) {
	if _, err := columnsOf(table); err != nil {
		return nil, err
	}
	m.mu.RLock()
	out := make([]Record, 0, len(m.tables[table]))
	for _, row := range m.tables[table] {
		out = append(out, copyRecord(row))
	}
	m.mu.RUnlock()
	return applyOptions(table, out, opts)
}

func (m *MemoryStore) Update(_ context.Context, table, id string, patch Record) error {
	for col := range patch {
		if _, err := checkColumn(table, col); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.tables[table] {
		if row["id"] == id {
			for k, v := range patch {
				row[k] = v
			}
			return nil
		}
	}
	return eris.Wrapf(ErrNotFound, "db: %s %s", table, id)
}

func applyOptions(table string, rows []Record, opts QueryOptions) ([]Record, error) {
	if opts.OrderBy != "" {
		if _, err := checkColumn(table, opts.OrderBy); err != nil {
			return nil, err
		}
		sort.SliceStable(rows, func(i, j int) bool {
			a, b := rows[i][opts.OrderBy], rows[j][opts.OrderBy]
			if opts.Desc {
				return less(b, a)
			}
			return less(a, b)
		})
	}
	if opts.Limit > 0 && len(rows) > opts.Limit {
		rows = rows[:opts.Limit]
	}
	return rows, nil
}

// less orders nils first, then by the natural order of the value's type.
func less(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b != nil
	}
	switch x := a.(type) {
	case time.Time:
		if y, ok := b.(time.Time); ok {
			return x.Before(y)
		}
	case float64:
		if y, ok := b.(float64); ok {
			return x < y
		}
	case int:
		if y, ok := b.(int); ok {
			return x < y
		}
	case string:
		if y, ok := b.(string); ok {
			return x < y
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func copyRecord(rec Record) Record {
	out := make(Record, len(rec))
	for k, v := range rec {
		out[k] = v
	}
	return out
}
