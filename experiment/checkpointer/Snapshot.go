package checkpointer

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/state"
)

// FormatVersion is the version of the snapshot file format
const FormatVersion = 1

var magic = [4]byte{'S', 'C', 'K', 'P'}

const headerLen = len(magic) + 1 + sha256.Size

var (
	// ErrCorrupt is returned when a snapshot cannot be decoded or fails
	// its integrity check
	ErrCorrupt = errors.New("corrupt checkpoint")

	// ErrNotFound is returned when a store holds no snapshot for an
	// episode
	ErrNotFound = errors.New("checkpoint not found")

	// ErrExists is returned when saving a snapshot for an episode that
	// already has one. Snapshots are never overwritten.
	ErrExists = errors.New("checkpoint exists")
)

var _ Serializable = (*qtable.Table)(nil)

// Snapshot is the state of a training run after some number of episodes
type Snapshot struct {
	Version    int
	KeyVersion int
	RunID      string
	Episode    int
	Epsilon    float64
	Dims       []int
	Actions    int
	Table      *qtable.Table
	Coverage   []state.Index
	BatchSize  int
	CreatedAt  time.Time
}

// Validate checks that the Snapshot is internally consistent
func (s Snapshot) Validate() error {
	space, err := state.NewSpace(s.Dims...)
	if err != nil {
		return fmt.Errorf("dims: %w", err)
	}

	switch {
	case s.KeyVersion != state.KeyVersion:
		return fmt.Errorf("state key version %d, expected %d", s.KeyVersion,
			state.KeyVersion)
	case s.Table == nil:
		return errors.New("no value table")
	case s.Table.Actions() != s.Actions:
		return fmt.Errorf("table has %d actions, expected %d",
			s.Table.Actions(), s.Actions)
	case s.Episode < 0:
		return fmt.Errorf("episode %d < 0", s.Episode)
	}

	for _, i := range s.Coverage {
		if uint64(i) >= space.Size() {
			return fmt.Errorf("coverage index %d outside of %v", i, space)
		}
	}
	for _, i := range s.Table.Keys() {
		if uint64(i) >= space.Size() {
			return fmt.Errorf("table key %d outside of %v", i, space)
		}
	}
	return nil
}

// Marshal encodes a Snapshot. The encoding is a four byte magic number,
// the format version, the SHA-256 of the payload, and then the payload,
// which is the gzip compressed gob encoding of the Snapshot.
func Marshal(s Snapshot) ([]byte, error) {
	s.Version = FormatVersion

	var payload bytes.Buffer
	zw := gzip.NewWriter(&payload)
	if err := gob.NewEncoder(zw).Encode(s); err != nil {
		return nil, fmt.Errorf("marshal: encode: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("marshal: compress: %w", err)
	}

	sum := sha256.Sum256(payload.Bytes())
	out := make([]byte, 0, headerLen+payload.Len())
	out = append(out, magic[:]...)
	out = append(out, FormatVersion)
	out = append(out, sum[:]...)
	out = append(out, payload.Bytes()...)
	return out, nil
}

// Unmarshal decodes a Snapshot encoded with Marshal. Every failure wraps
// ErrCorrupt.
func Unmarshal(data []byte) (Snapshot, error) {
	if len(data) < headerLen {
		return Snapshot{}, fmt.Errorf("%w: %d bytes is too short", ErrCorrupt,
			len(data))
	}
	if !bytes.Equal(data[:len(magic)], magic[:]) {
		return Snapshot{}, fmt.Errorf("%w: bad magic number", ErrCorrupt)
	}
	if v := data[len(magic)]; v != FormatVersion {
		return Snapshot{}, fmt.Errorf("%w: unsupported format version %d",
			ErrCorrupt, v)
	}

	payload := data[headerLen:]
	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], data[len(magic)+1:headerLen]) {
		return Snapshot{}, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	var s Snapshot
	if err := gob.NewDecoder(zr).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: decode: %v", ErrCorrupt, err)
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return s, nil
}
