// Package tracker implements the metrics stream of a training run. One
// Record is produced per batch of episodes and handed to every Tracker.
package tracker

import (
	"encoding/gob"
	"errors"
	"fmt"
	"os"
)

// Record holds the metrics of a single batch of episodes
type Record struct {
	RunID           string
	BatchStart      int // First episode of the batch
	BatchEnd        int // One past the last episode of the batch
	BatchSize       int
	NewStates       int
	BatchSeconds    float64
	EMASeconds      float64
	StatesPerSecond float64
	Cumulative      int // Distinct states visited so far
	CoveragePercent float64
	Updates         int // Value updates over all episodes of the batch
	Failures        int
	Epsilon         float64
	Return          float64 // Mean return of successful episodes
	Decisions       float64 // Mean decisions of successful episodes
}

// Interface Tracker keeps track of experiment data. Close flushes any
// buffered data and releases the Tracker's resources.
type Tracker interface {
	Track(r Record) error
	Close() error
}

// Multi fans every Record out to several Trackers
type Multi []Tracker

// Track implements the Tracker interface. Every Tracker sees the Record
// even if an earlier one fails.
func (m Multi) Track(r Record) error {
	var errs []error
	for _, t := range m {
		if err := t.Track(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements the Tracker interface
func (m Multi) Close() error {
	var errs []error
	for _, t := range m {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadData loads and returns the data saved by a Tracker which saves a
// gob encoded slice of floats
func LoadData(filename string) ([]float64, error) {
	// Open file
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("loadData: could not open data file: %w", err)
	}
	defer file.Close()

	// Create the decoder and the variable to store the data in
	dec := gob.NewDecoder(file)
	var data []float64

	// Decode the data
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("loadData: could not decode data: %w", err)
	}

	return data, nil
}
