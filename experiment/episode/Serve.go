package episode

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
)

// Serve runs the Jobs decoded from r and encodes one Result for each of
// them to w, in order. Serve returns nil when r is exhausted, and stops
// early if ctx is cancelled.
func Serve(ctx context.Context, r io.Reader, w io.Writer, runner *Runner) error {
	dec := gob.NewDecoder(r)
	enc := gob.NewEncoder(w)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var job Job
		if err := dec.Decode(&job); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("serve: decode job: %w", err)
		}

		if err := enc.Encode(runner.Run(job)); err != nil {
			return fmt.Errorf("serve: encode result of episode %d: %w",
				job.Episode, err)
		}
	}
}
