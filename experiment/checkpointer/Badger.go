package checkpointer

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	keyPrefix        = "checkpoint/"
	quarantinePrefix = "corrupt/"
)

// Badger stores snapshots in a Badger database
type Badger struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to Badger's Logger interface
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// OpenBadger opens a Badger store at path, creating it if needed. If
// path is empty, the store is kept in memory. Badger's own logs are
// written to logger, or discarded if logger is nil.
func OpenBadger(path string, logger *slog.Logger) (*Badger, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("openBadger: %w", err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}

	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("openBadger: %w", err)
	}
	return &Badger{db: db}, nil
}

func badgerKey(episode int) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, episode))
}

// Put implements the Store interface
func (b *Badger) Put(episode int, data []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(episode)
		_, err := txn.Get(key)
		if err == nil {
			return ErrExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return fmt.Errorf("put episode %d: %w", episode, err)
	}
	return nil
}

// Get implements the Store interface
func (b *Badger) Get(episode int) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerKey(episode))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("get episode %d: %w", episode, err)
	}
	return data, nil
}

// Episodes implements the Store interface
func (b *Badger) Episodes() ([]int, error) {
	var episodes []int
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ep, err := strconv.Atoi(strings.TrimPrefix(key, keyPrefix))
			if err != nil {
				continue
			}
			episodes = append(episodes, ep)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("episodes: %w", err)
	}

	// Keys are zero padded, so iteration order is episode order
	slices.Reverse(episodes)
	return episodes, nil
}

// Delete implements the Store interface
func (b *Badger) Delete(episode int) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(episode)
		if _, err := txn.Get(key); errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("delete episode %d: %w", episode, err)
	}
	return nil
}

// Quarantine implements the Store interface. The value is moved under
// the corrupt/ prefix, keyed by episode and the time it was moved.
func (b *Badger) Quarantine(episode int) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		key := badgerKey(episode)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		} else if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		dst := fmt.Sprintf("%s%020d-%d", quarantinePrefix, episode,
			time.Now().UnixNano())
		if err := txn.Set([]byte(dst), data); err != nil {
			return err
		}
		return txn.Delete(key)
	})
	if err != nil {
		return fmt.Errorf("quarantine episode %d: %w", episode, err)
	}
	return nil
}

// Close implements the Store interface
func (b *Badger) Close() error {
	return b.db.Close()
}
