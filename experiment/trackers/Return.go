// Package trackers implements Trackers which record the metrics of a
// training run to files, databases, and Prometheus
package trackers

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/samuelfneumann/statecover/experiment/tracker"
)

// Return tracks the mean episodic return of each batch. Returns are
// cached in RAM and saved to disk as a gob encoded []float64 when the
// Tracker is closed, to be read back with tracker.LoadData. Returns
// already saved to the file are kept and appended to.
//
// Batches in which every episode failed have no return and are skipped.
type Return struct {
	batchReturns []float64
	filename     string
}

// NewReturn creates and returns a new *Return Tracker
func NewReturn(filename string) (*Return, error) {
	data, err := loadFloats(filename)
	if err != nil {
		return nil, fmt.Errorf("newReturn: %w", err)
	}
	return &Return{batchReturns: data, filename: filename}, nil
}

// Track implements the tracker.Tracker interface
func (r *Return) Track(rec tracker.Record) error {
	if rec.Failures >= rec.BatchEnd-rec.BatchStart {
		return nil
	}
	r.batchReturns = append(r.batchReturns, rec.Return)
	return nil
}

// Data returns the returns tracked so far
func (r *Return) Data() []float64 {
	return append([]float64(nil), r.batchReturns...)
}

// Close saves the data tracked by the Return Tracker to disk
func (r *Return) Close() error {
	return saveFloats(r.filename, r.batchReturns)
}

// loadFloats loads the data saved to filename by an earlier run, if any
func loadFloats(filename string) ([]float64, error) {
	data, err := tracker.LoadData(filename)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// saveFloats gob encodes data to a file
func saveFloats(filename string, data []float64) error {
	// Open the file to save to
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not open save file: %w", err)
	}
	defer file.Close()

	// Encode and save the file
	en := gob.NewEncoder(file)
	if err = en.Encode(data); err != nil {
		return fmt.Errorf("could not encode data: %w", err)
	}
	return file.Close()
}
