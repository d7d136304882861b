// Package checkpointer saves and restores snapshots of a training run so
// that it can be resumed after an interruption
package checkpointer

import (
	"encoding/gob"
)

// Serializable is an object that can be saved/serialized
type Serializable interface {
	gob.GobEncoder
	gob.GobDecoder
}

// Checkpointer checkpoints a training run after the episode count moves
// from prev to cur
type Checkpointer interface {
	Checkpoint(prev, cur int) error
}
