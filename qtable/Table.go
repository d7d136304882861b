// Package qtable implements tabular action-value storage keyed by
// discretized states, and the policy used to merge independently learned
// tables into a single shared table.
package qtable

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sort"

	"github.com/samuelfneumann/statecover/state"
	"github.com/samuelfneumann/statecover/utils/floatutils"
)

// Row holds one action value per discrete action
type Row []float64

// Clone returns a copy of the Row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Table maps states to their action-value Rows. The number of keys only
// ever grows; existing Rows are updated in place.
//
// Table is not safe for concurrent use. Every episode owns a private
// Table, and the shared Table is only written by the coordinator.
type Table struct {
	actions int
	rows    map[state.Index]Row
}

// New returns a new empty Table for the given number of actions
func New(actions int) *Table {
	if actions < 1 {
		panic(fmt.Sprintf("new: table must have at least one action, "+
			"got %d", actions))
	}
	return &Table{actions: actions, rows: make(map[state.Index]Row)}
}

// Actions returns the number of actions per Row
func (t *Table) Actions() int {
	return t.actions
}

// Len returns the number of states in the Table
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns the Row for state s. The returned Row aliases the Table's
// storage.
func (t *Table) Row(s state.Index) (Row, bool) {
	r, ok := t.rows[s]
	return r, ok
}

// Has reports whether the Table holds a Row for s
func (t *Table) Has(s state.Index) bool {
	_, ok := t.rows[s]
	return ok
}

// Ensure returns the Row for s, inserting a zero Row if s is new
func (t *Table) Ensure(s state.Index) Row {
	r, ok := t.rows[s]
	if !ok {
		r = make(Row, t.actions)
		t.rows[s] = r
	}
	return r
}

// Set stores a copy of r as the Row for s
func (t *Table) Set(s state.Index, r Row) error {
	if len(r) != t.actions {
		return fmt.Errorf("set: row has %d values, table has %d actions",
			len(r), t.actions)
	}
	t.rows[s] = r.Clone()
	return nil
}

// Value returns the value of action a in state s, 0 if s is unseen
func (t *Table) Value(s state.Index, a int) float64 {
	if r, ok := t.rows[s]; ok {
		return r[a]
	}
	return 0
}

// MaxValue returns the largest action value in state s, 0 if s is unseen
func (t *Table) MaxValue(s state.Index) float64 {
	r, ok := t.rows[s]
	if !ok {
		return 0
	}
	max, _ := floatutils.MaxSlice(r)
	return max
}

// Greedy returns the action with the largest value in state s. Ties are
// broken towards the lowest action. The boolean is false if s is unseen.
func (t *Table) Greedy(s state.Index) (int, bool) {
	r, ok := t.rows[s]
	if !ok {
		return 0, false
	}
	_, indices := floatutils.MaxSlice(r)
	return indices[0], true
}

// Keys returns all states in the Table in increasing order
func (t *Table) Keys() []state.Index {
	keys := make([]state.Index, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Range calls f for each state in increasing order until f returns false
func (t *Table) Range(f func(s state.Index, r Row) bool) {
	for _, k := range t.Keys() {
		if !f(k, t.rows[k]) {
			return
		}
	}
}

// Clone returns a deep copy of the Table
func (t *Table) Clone() *Table {
	c := &Table{actions: t.actions, rows: make(map[state.Index]Row, len(t.rows))}
	for k, r := range t.rows {
		c.rows[k] = r.Clone()
	}
	return c
}

// Equal reports whether two Tables hold identical Rows
func (t *Table) Equal(o *Table) bool {
	if t.actions != o.actions || len(t.rows) != len(o.rows) {
		return false
	}
	for k, r := range t.rows {
		or, ok := o.rows[k]
		if !ok {
			return false
		}
		for i := range r {
			if r[i] != or[i] {
				return false
			}
		}
	}
	return true
}

// wireTable is the gob representation of a Table. Keys and rows are
// stored as parallel slices in increasing key order so that encoding is
// deterministic.
type wireTable struct {
	Actions int
	Keys    []uint64
	Values  []float64
}

// GobEncode implements the gob.GobEncoder interface
func (t *Table) GobEncode() ([]byte, error) {
	w := wireTable{
		Actions: t.actions,
		Keys:    make([]uint64, 0, len(t.rows)),
		Values:  make([]float64, 0, len(t.rows)*t.actions),
	}
	t.Range(func(s state.Index, r Row) bool {
		w.Keys = append(w.Keys, uint64(s))
		w.Values = append(w.Values, r...)
		return true
	})

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(w); err != nil {
		return nil, fmt.Errorf("gobEncode: %w", err)
	}
	return buf.Bytes(), nil
}

// GobDecode implements the gob.GobDecoder interface
func (t *Table) GobDecode(data []byte) error {
	var w wireTable
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&w); err != nil {
		return fmt.Errorf("gobDecode: %w", err)
	}
	if w.Actions < 1 {
		return fmt.Errorf("gobDecode: invalid action count %d", w.Actions)
	}
	if len(w.Values) != len(w.Keys)*w.Actions {
		return fmt.Errorf("gobDecode: %d values for %d keys of %d actions",
			len(w.Values), len(w.Keys), w.Actions)
	}

	t.actions = w.Actions
	t.rows = make(map[state.Index]Row, len(w.Keys))
	for i, k := range w.Keys {
		row := make(Row, w.Actions)
		copy(row, w.Values[i*w.Actions:(i+1)*w.Actions])
		t.rows[state.Index(k)] = row
	}
	return nil
}
