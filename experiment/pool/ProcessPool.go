package pool

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/samuelfneumann/statecover/experiment/episode"
	"golang.org/x/sync/errgroup"
)

// ProcessPool runs episodes in at most Workers child processes. Children
// are started for each batch and receive Jobs one at a time. A child
// which crashes fails the episode it was running and is replaced.
type ProcessPool struct {
	Path    string
	Args    []string
	Env     []string
	Workers int
	Stderr  io.Writer // Standard error of children, os.Stderr if nil
	Logger  *slog.Logger
}

// child is a running worker process
type child struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *gob.Encoder
	dec   *gob.Decoder
}

func (p *ProcessPool) start() (*child, error) {
	cmd := exec.Command(p.Path, p.Args...)
	cmd.Env = append(os.Environ(), p.Env...)
	cmd.Stderr = p.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start worker %s: %w", p.Path, err)
	}

	return &child{
		cmd:   cmd,
		stdin: stdin,
		enc:   gob.NewEncoder(stdin),
		dec:   gob.NewDecoder(stdout),
	}, nil
}

// run sends a Job to the child and waits for its Result
func (c *child) run(job episode.Job) (episode.Result, error) {
	if err := c.enc.Encode(job); err != nil {
		return episode.Result{}, fmt.Errorf("send job: %w", err)
	}

	var res episode.Result
	if err := c.dec.Decode(&res); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			err = errors.New("worker exited")
		}
		return episode.Result{}, fmt.Errorf("receive result: %w", err)
	}
	if res.Episode != job.Episode {
		return episode.Result{}, fmt.Errorf("received episode %d, "+
			"expected %d", res.Episode, job.Episode)
	}
	return res, nil
}

// close closes the child's input so that it exits and waits for it
func (c *child) close() error {
	if c == nil {
		return nil
	}
	c.stdin.Close()
	return c.cmd.Wait()
}

// kill kills the child
func (c *child) kill() {
	c.stdin.Close()
	c.cmd.Process.Kill()
	c.cmd.Wait()
}

// Execute implements the Executor interface. An error is returned only if
// a worker process cannot be started.
func (p *ProcessPool) Execute(ctx context.Context,
	jobs []episode.Job) ([]episode.Result, error) {
	if p.Workers < 1 {
		return nil, fmt.Errorf("execute: workers %d < 1", p.Workers)
	}
	results := make([]episode.Result, len(jobs))
	if len(jobs) == 0 {
		return results, nil
	}

	next := make(chan int, len(jobs))
	for i := range jobs {
		next <- i
	}
	close(next)

	children := make([]*child, min(p.Workers, len(jobs)))
	for w := range children {
		c, err := p.start()
		if err != nil {
			for _, started := range children[:w] {
				started.kill()
			}
			return nil, fmt.Errorf("execute: %w", err)
		}
		children[w] = c
	}

	var g errgroup.Group
	for _, c := range children {
		g.Go(func() error {
			return p.serve(ctx, c, jobs, next, results)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return results, nil
}

// serve feeds Jobs to a child until none remain
func (p *ProcessPool) serve(ctx context.Context, c *child, jobs []episode.Job,
	next <-chan int, results []episode.Result) error {
	defer func() {
		if err := c.close(); err != nil {
			p.logger().Warn("worker exited uncleanly", slog.Any("error", err))
		}
	}()

	for i := range next {
		job := jobs[i]
		if err := ctx.Err(); err != nil {
			results[i] = cancelled(job, err)
			continue
		}

		res, err := c.run(job)
		if err == nil {
			results[i] = res
			continue
		}

		p.logger().Warn("worker crashed, restarting",
			slog.Int("episode", job.Episode),
			slog.Any("error", err),
		)
		results[i] = episode.Result{
			Episode: job.Episode,
			Err:     fmt.Sprintf("worker crashed: %v", err),
		}

		c.kill()
		if c, err = p.start(); err != nil {
			return fmt.Errorf("restart: %w", err)
		}
	}
	return nil
}

func (p *ProcessPool) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}
