package checkpointer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	filePrefix    = "checkpoint-ep"
	fileExt       = ".sckp"
	quarantineExt = ".corrupt"
)

// Dir stores each snapshot in its own file of a directory
type Dir struct {
	path string
}

// NewDir returns a new Dir store, creating the directory if needed
func NewDir(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("newDir: %w", err)
	}
	return &Dir{path: path}, nil
}

// Path returns the path of the file holding an episode's snapshot
func (d *Dir) Path(episode int) string {
	return filepath.Join(d.path, fmt.Sprintf("%s%012d%s", filePrefix,
		episode, fileExt))
}

// Put implements the Store interface. The snapshot is written to a
// temporary file which is then renamed, so a crash never leaves a
// partially written snapshot behind.
func (d *Dir) Put(episode int, data []byte) error {
	path := d.Path(episode)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("put episode %d: %w", episode, ErrExists)
	}

	tmp, err := os.CreateTemp(d.path, ".checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("put episode %d: %w", episode, err)
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("put episode %d: write: %w", episode, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("put episode %d: sync: %w", episode, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put episode %d: close: %w", episode, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("put episode %d: rename: %w", episode, err)
	}

	cleanup = false
	return nil
}

// Get implements the Store interface
func (d *Dir) Get(episode int) ([]byte, error) {
	data, err := os.ReadFile(d.Path(episode))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("get episode %d: %w", episode, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("get episode %d: %w", episode, err)
	}
	return data, nil
}

// Episodes implements the Store interface
func (d *Dir) Episodes() ([]int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("episodes: %w", err)
	}

	var episodes []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) ||
			!strings.HasSuffix(name, fileExt) {
			continue
		}
		num := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileExt)
		ep, err := strconv.Atoi(num)
		if err != nil {
			continue
		}
		episodes = append(episodes, ep)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(episodes)))
	return episodes, nil
}

// Delete implements the Store interface
func (d *Dir) Delete(episode int) error {
	err := os.Remove(d.Path(episode))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete episode %d: %w", episode, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("delete episode %d: %w", episode, err)
	}
	return nil
}

// Quarantine implements the Store interface. The file is renamed with a
// .corrupt suffix, numbered if an earlier quarantined file exists.
func (d *Dir) Quarantine(episode int) error {
	path := d.Path(episode)
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("quarantine episode %d: %w", episode, ErrNotFound)
	} else if err != nil {
		return fmt.Errorf("quarantine episode %d: %w", episode, err)
	}

	dst := path + quarantineExt
	for i := 1; ; i++ {
		if _, err := os.Stat(dst); errors.Is(err, fs.ErrNotExist) {
			break
		}
		dst = fmt.Sprintf("%s%s.%d", path, quarantineExt, i)
	}
	if err := os.Rename(path, dst); err != nil {
		return fmt.Errorf("quarantine episode %d: %w", episode, err)
	}
	return nil
}

// Close implements the Store interface
func (d *Dir) Close() error {
	return nil
}
