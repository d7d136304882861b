package qtable

import "fmt"

// DefaultBlend is the merge policy used by the trainer: a state already in
// the shared table keeps 60% of its value and takes 40% from the
// incoming fragment.
var DefaultBlend = Blend{Existing: 0.6}

// Overwrite replaces existing Rows with incoming Rows
var Overwrite = Blend{Existing: 0}

// Blend merges Row fragments into a Table. For a state that is new to
// the destination the incoming Row is inserted unchanged. For a state
// that already exists every action value becomes
//
//	Existing*existing + (1-Existing)*incoming
//
// Values that are already equal are left untouched so that merging a
// fragment into a Table that already holds it changes nothing.
type Blend struct {
	Existing float64
}

// MergeStats counts what a Merge did
type MergeStats struct {
	Inserted int
	Blended  int
}

// Add accumulates other into s
func (s *MergeStats) Add(other MergeStats) {
	s.Inserted += other.Inserted
	s.Blended += other.Blended
}

// Validate returns an error if the blending weight is not in [0, 1]
func (b Blend) Validate() error {
	if b.Existing < 0 || b.Existing > 1 {
		return fmt.Errorf("blend weight must be in [0, 1], got %v",
			b.Existing)
	}
	return nil
}

// Merge folds each fragment into dst in the given order. Merge is
// single-writer: it must never run concurrently with itself or with any
// other writer of dst. Fragments with a different number of actions are
// rejected before dst is modified.
func (b Blend) Merge(dst *Table, fragments ...*Table) (MergeStats, error) {
	if err := b.Validate(); err != nil {
		return MergeStats{}, fmt.Errorf("merge: %w", err)
	}
	for i, f := range fragments {
		if f != nil && f.actions != dst.actions {
			return MergeStats{}, fmt.Errorf("merge: fragment %d has %d "+
				"actions, table has %d", i, f.actions, dst.actions)
		}
	}

	var stats MergeStats
	for _, f := range fragments {
		if f == nil {
			continue
		}
		for k, in := range f.rows {
			cur, ok := dst.rows[k]
			if !ok {
				dst.rows[k] = in.Clone()
				stats.Inserted++
				continue
			}
			b.blend(cur, in)
			stats.Blended++
		}
	}
	return stats, nil
}

// blend blends in into cur in place
func (b Blend) blend(cur, in Row) {
	for i := range cur {
		if cur[i] == in[i] {
			continue
		}
		cur[i] = b.Existing*cur[i] + (1-b.Existing)*in[i]
	}
}
