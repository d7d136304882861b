package trackers

import (
	"fmt"

	"github.com/samuelfneumann/statecover/experiment/tracker"
)

// EpisodeLength tracks and saves the mean length of episodes, in
// decisions, of each batch in an experiment. Batches in which every
// episode failed are skipped.
type EpisodeLength struct {
	episodeLengths []float64
	filename       string
}

// NewEpisodeLength returns a new EpisodeLength Tracker which will save
// its data at the specified location filename. Lengths already saved
// there are kept and appended to.
func NewEpisodeLength(filename string) (*EpisodeLength, error) {
	data, err := loadFloats(filename)
	if err != nil {
		return nil, fmt.Errorf("newEpisodeLength: %w", err)
	}
	return &EpisodeLength{episodeLengths: data, filename: filename}, nil
}

// Track implements the tracker.Tracker interface
func (e *EpisodeLength) Track(rec tracker.Record) error {
	if rec.Failures >= rec.BatchEnd-rec.BatchStart {
		return nil
	}
	e.episodeLengths = append(e.episodeLengths, rec.Decisions)
	return nil
}

// Close saves the data tracked by the EpisodeLength Tracker to disk
func (e *EpisodeLength) Close() error {
	return saveFloats(e.filename, e.episodeLengths)
}
