package records

import (
	"context"
	"sync"
)

// CellUpdate records one write to a MemoryStore.
type CellUpdate struct {
	Row, Col int
	Value    string
	Color    Color
}

// MemoryStore keeps the grid in memory for tests and dry runs.
type MemoryStore struct {
	mu      sync.Mutex
	values  [][]string
	updates []CellUpdate
}

// NewMemoryStore copies values into a new store.
func NewMemoryStore(values [][]string) *MemoryStore {
	return &MemoryStore{values: cloneGrid(values)}
}

func (m *MemoryStore) Values(context.Context) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneGrid(m.values), nil
}

// UpdateCell writes value at (row, col), growing the grid as needed.
func (m *MemoryStore) UpdateCell(_ context.Context, row, col int, value string, color Color) error {
	if err := checkCell(row, col); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(m.values) < row {
		m.values = append(m.values, nil)
	}
	r := m.values[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	m.values[row-1] = r
	m.updates = append(m.updates, CellUpdate{Row: row, Col: col, Value: value, Color: color})
	return nil
}

// Updates returns the writes so far, oldest first.
func (m *MemoryStore) Updates() []CellUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CellUpdate(nil), m.updates...)
}

func cloneGrid(values [][]string) [][]string {
	out := make([][]string, len(values))
	for i, row := range values {
		out[i] = append([]string(nil), row...)
	}
	return out
}
