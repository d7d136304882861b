package checkpointer

var _ Checkpointer = (*NStep)(nil)

// NStep checkpoints every Interval episodes. Since episodes complete in
// batches, a checkpoint is due whenever a multiple of Interval is crossed,
// even if the episode count never lands on it exactly.
type NStep struct {
	Interval int
	manager  *Manager
	snapshot func() Snapshot
}

// NewNStep returns a checkpointer that saves the Snapshot returned by
// snapshot to m every n episodes
func NewNStep(n int, m *Manager, snapshot func() Snapshot) *NStep {
	return &NStep{
		Interval: n,
		manager:  m,
		snapshot: snapshot,
	}
}

// Due returns whether a multiple of the interval lies in (prev, cur]
func (n *NStep) Due(prev, cur int) bool {
	if n.Interval <= 0 || cur <= prev {
		return false
	}
	return floorDiv(cur, n.Interval) > floorDiv(prev, n.Interval)
}

// Checkpoint implements the Checkpointer interface
func (n *NStep) Checkpoint(prev, cur int) error {
	if !n.Due(prev, cur) {
		return nil
	}
	return n.manager.Save(n.snapshot())
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && a < 0 {
		q--
	}
	return q
}
