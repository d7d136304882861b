package trackers

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/samuelfneumann/statecover/experiment/tracker"
)

// CSVHeader is the header row of the CSV metrics file
var CSVHeader = []string{
	"batch_start_ep",
	"batch_end_ep",
	"new_states",
	"batch_seconds",
	"ema_seconds",
	"states_per_second",
	"cumulative_states",
	"coverage_percent",
	"q_updates",
	"failures",
	"epsilon",
	"mean_return",
}

// CSV writes one row per batch to a CSV file. Rows are flushed after
// every batch, so the file can be followed while training runs.
type CSV struct {
	file *os.File
	w    *csv.Writer
}

// NewCSV creates a CSV Tracker writing to filename. If the file already
// holds rows, e.g. when resuming a run, new rows are appended to it;
// otherwise the header is written first.
func NewCSV(filename string) (*CSV, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		0o644)
	if err != nil {
		return nil, fmt.Errorf("newCSV: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("newCSV: %w", err)
	}

	c := &CSV{file: file, w: csv.NewWriter(file)}
	if info.Size() == 0 {
		if err := c.write(CSVHeader); err != nil {
			file.Close()
			return nil, fmt.Errorf("newCSV: %w", err)
		}
	}
	return c, nil
}

// Track implements the tracker.Tracker interface
func (c *CSV) Track(r tracker.Record) error {
	return c.write([]string{
		strconv.Itoa(r.BatchStart),
		strconv.Itoa(r.BatchEnd),
		strconv.Itoa(r.NewStates),
		formatFloat(r.BatchSeconds),
		formatFloat(r.EMASeconds),
		formatFloat(r.StatesPerSecond),
		strconv.Itoa(r.Cumulative),
		formatFloat(r.CoveragePercent),
		strconv.Itoa(r.Updates),
		strconv.Itoa(r.Failures),
		formatFloat(r.Epsilon),
		formatFloat(r.Return),
	})
}

func (c *CSV) write(row []string) error {
	if err := c.w.Write(row); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

// Close implements the tracker.Tracker interface
func (c *CSV) Close() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		c.file.Close()
		return fmt.Errorf("csv: %w", err)
	}
	return c.file.Close()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
