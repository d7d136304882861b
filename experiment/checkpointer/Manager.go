package checkpointer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Manager saves snapshots to a Store and loads the newest valid one
type Manager struct {
	store  Store
	keep   int
	logger *slog.Logger
}

// NewManager returns a new Manager over store. After each save, only the
// newest keep snapshots are retained; if keep is 0 all are retained.
func NewManager(store Store, keep int, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, keep: keep, logger: logger}
}

// Store returns the Manager's Store
func (m *Manager) Store() Store {
	return m.store
}

// Save saves a snapshot. Saving an episode which already has a valid
// snapshot keeps the existing one. An existing snapshot which is corrupt
// is quarantined and replaced.
func (m *Manager) Save(s Snapshot) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	data, err := Marshal(s)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	err = m.store.Put(s.Episode, data)
	if errors.Is(err, ErrExists) {
		var replace bool
		if replace, err = m.replaceable(s.Episode); err != nil {
			return fmt.Errorf("save: %w", err)
		} else if !replace {
			m.logger.Debug("checkpoint already saved",
				slog.Int("episode", s.Episode))
			return nil
		}
		err = m.store.Put(s.Episode, data)
	}
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	m.logger.Info("checkpoint saved",
		slog.Int("episode", s.Episode),
		slog.Int("bytes", len(data)),
		slog.Int("states", s.Table.Len()),
		slog.Int("covered", len(s.Coverage)),
	)

	return m.prune()
}

// replaceable reports whether the stored snapshot of an episode is
// corrupt or misfiled. If so, it is quarantined so that it can be
// replaced.
func (m *Manager) replaceable(episode int) (bool, error) {
	data, err := m.store.Get(episode)
	if errors.Is(err, ErrNotFound) {
		return true, nil
	} else if err != nil {
		return false, err
	}

	s, err := Unmarshal(data)
	if err == nil && s.Episode == episode {
		return false, nil
	} else if err != nil && !errors.Is(err, ErrCorrupt) {
		return false, err
	}

	if err := m.store.Quarantine(episode); err != nil &&
		!errors.Is(err, ErrNotFound) {
		return false, err
	}
	m.logger.Warn("replacing corrupt checkpoint", slog.Int("episode", episode))
	return true, nil
}

// prune deletes all but the newest snapshots
func (m *Manager) prune() error {
	if m.keep <= 0 {
		return nil
	}

	episodes, err := m.store.Episodes()
	if err != nil {
		return fmt.Errorf("prune: %w", err)
	}
	if len(episodes) <= m.keep {
		return nil
	}

	for _, ep := range episodes[m.keep:] {
		if err := m.store.Delete(ep); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("prune: %w", err)
		}
		m.logger.Debug("checkpoint pruned", slog.Int("episode", ep))
	}
	return nil
}

// LoadLatest returns the newest snapshot which decodes and passes its
// integrity check. Corrupt snapshots are logged and skipped. If the
// store holds no valid snapshot, LoadLatest returns false.
func (m *Manager) LoadLatest() (Snapshot, bool, error) {
	episodes, err := m.store.Episodes()
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("loadLatest: %w", err)
	}

	for _, ep := range episodes {
		data, err := m.store.Get(ep)
		if errors.Is(err, ErrNotFound) {
			continue
		} else if err != nil {
			return Snapshot{}, false, fmt.Errorf("loadLatest: %w", err)
		}

		s, err := Unmarshal(data)
		if errors.Is(err, ErrCorrupt) {
			m.logger.Warn("skipping corrupt checkpoint",
				slog.Int("episode", ep),
				slog.String("error", err.Error()),
			)
			continue
		} else if err != nil {
			return Snapshot{}, false, fmt.Errorf("loadLatest: %w", err)
		}

		if s.Episode != ep {
			m.logger.Warn("skipping misfiled checkpoint",
				slog.Int("episode", ep),
				slog.Int("snapshot_episode", s.Episode),
			)
			continue
		}
		return s, true, nil
	}

	return Snapshot{}, false, nil
}
