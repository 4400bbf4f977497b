package models

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// MemoryModel keeps rows in memory. It enforces unique fields on create and
// save, and refuses to delete rows marked with Protect.
type MemoryModel struct {
	mu        sync.Mutex
	desc      Descriptor
	rows      map[int64]Row
	protected map[int64]bool
	nextID    int64
}

func NewMemoryModel(desc Descriptor) *MemoryModel {
	return &MemoryModel{
		desc:      desc,
		rows:      make(map[int64]Row),
		protected: make(map[int64]bool),
		nextID:    1,
	}
}

func (m *MemoryModel) Descriptor() Descriptor { return m.desc }

func (m *MemoryModel) Get(ctx context.Context, filter Row) (Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.match(filter)
	switch len(ids) {
	case 0:
		return nil, NewDoesNotExist(m.desc.ModelName())
	case 1:
		return m.rows[ids[0]].Clone(), nil
	default:
		return nil, NewMultipleObjectsReturned(m.desc.ModelName(), len(ids))
	}
}

func (m *MemoryModel) Create(ctx context.Context, fields Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pk := m.desc.PK()
	row := fields.Clone()
	id := m.nextID
	if v, ok := row[pk]; ok {
		n, ok := toInt64(v)
		if !ok {
			return fmt.Errorf("%s: primary key %v is not an integer", m.desc.Label, v)
		}
		if _, exists := m.rows[n]; exists {
			return fmt.Errorf("%w: duplicate %s.%s %v", ErrIntegrity, m.desc.Table, pk, v)
		}
		id = n
	}
	row[pk] = id
	if err := m.checkUnique(row, id); err != nil {
		return err
	}
	m.rows[id] = row
	if id >= m.nextID {
		m.nextID = id + 1
	}
	return nil
}

func (m *MemoryModel) Save(ctx context.Context, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.rowID(row)
	if err != nil {
		return err
	}
	if err := m.checkUnique(row, id); err != nil {
		return err
	}
	m.rows[id] = row.Clone()
	return nil
}

func (m *MemoryModel) Delete(ctx context.Context, row Row) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, err := m.rowID(row)
	if err != nil {
		return err
	}
	if m.protected[id] {
		return &ProtectedError{Model: m.desc.ModelName(), Ref: Reference{Table: "memory", Column: m.desc.PK()}, Count: 1}
	}
	delete(m.rows, id)
	return nil
}

// Protect marks every row matching filter as referenced elsewhere.
func (m *MemoryModel) Protect(filter Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.match(filter) {
		m.protected[id] = true
	}
}

// Insert stores rows without any checks. Used to set up fixtures.
func (m *MemoryModel) Insert(rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		row := r.Clone()
		id := m.nextID
		if n, ok := toInt64(row[m.desc.PK()]); ok {
			id = n
		}
		row[m.desc.PK()] = id
		m.rows[id] = row
		if id >= m.nextID {
			m.nextID = id + 1
		}
	}
}

// Rows returns a copy of all rows ordered by primary key.
func (m *MemoryModel) Rows() []Row {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]Row, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.rows[id].Clone())
	}
	return out
}

func (m *MemoryModel) match(filter Row) []int64 {
	var ids []int64
	for id, row := range m.rows {
		ok := true
		for k, v := range filter {
			if !valuesEqual(row[k], v) {
				ok = false
				break
			}
		}
		if ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *MemoryModel) checkUnique(row Row, self int64) error {
	for _, f := range m.desc.Fields {
		if !f.Unique || f.Primary || f.Name == m.desc.PK() {
			continue
		}
		v, ok := row[f.Name]
		if !ok || v == nil {
			continue
		}
		for id, other := range m.rows {
			if id != self && valuesEqual(other[f.Name], v) {
				return fmt.Errorf("%w: UNIQUE constraint failed: %s.%s", ErrIntegrity, m.desc.Table, f.Name)
			}
		}
	}
	return nil
}

func (m *MemoryModel) rowID(row Row) (int64, error) {
	id, ok := toInt64(row[m.desc.PK()])
	if !ok {
		return 0, fmt.Errorf("%s: row has no primary key", m.desc.Label)
	}
	if _, exists := m.rows[id]; !exists {
		return 0, NewDoesNotExist(m.desc.ModelName())
	}
	return id, nil
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), n == float64(int64(n))
	}
	return 0, false
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := toInt64(a); ok {
		if y, ok := toInt64(b); ok {
			return x == y
		}
	}
	return reflect.DeepEqual(a, b)
}
