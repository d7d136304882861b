package checkpointer

// Store stores encoded snapshots keyed by episode
type Store interface {
	// Put stores a snapshot. Put returns ErrExists if the episode
	// already has a snapshot.
	Put(episode int, data []byte) error

	// Get returns the snapshot of an episode, or ErrNotFound
	Get(episode int) ([]byte, error)

	// Episodes returns the episodes with a snapshot, newest first
	Episodes() ([]int, error)

	// Delete removes the snapshot of an episode
	Delete(episode int) error

	// Quarantine moves the snapshot of an episode out of the store
	// without destroying it, freeing the episode for a new Put
	Quarantine(episode int) error

	Close() error
}
