package checkpointer

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/samuelfneumann/statecover/qtable"
	"github.com/samuelfneumann/statecover/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot(episode int) Snapshot {
	table := qtable.New(2)
	if err := table.Set(1, qtable.Row{0.5, -1}); err != nil {
		panic(err)
	}
	if err := table.Set(4, qtable.Row{2, 3}); err != nil {
		panic(err)
	}

	return Snapshot{
		KeyVersion: state.KeyVersion,
		RunID:      "run",
		Episode:    episode,
		Epsilon:    0.35,
		Dims:       []int{3, 2},
		Actions:    2,
		Table:      table,
		Coverage:   []state.Index{0, 1, 4},
		BatchSize:  40,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func stores(t *testing.T) map[string]Store {
	dir, err := NewDir(t.TempDir())
	require.NoError(t, err)

	db, err := OpenBadger(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return map[string]Store{"dir": dir, "badger": db}
}

func TestMarshalRoundTrip(t *testing.T) {
	s := testSnapshot(500)
	data, err := Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, []byte("SCKP"), data[:4])

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, got.Version)
	assert.Equal(t, s.Episode, got.Episode)
	assert.Equal(t, s.Epsilon, got.Epsilon)
	assert.Equal(t, s.Dims, got.Dims)
	assert.Equal(t, s.Coverage, got.Coverage)
	assert.Equal(t, s.BatchSize, got.BatchSize)
	assert.Equal(t, s.RunID, got.RunID)
	assert.True(t, s.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, s.Table.Equal(got.Table))
}

func TestUnmarshalCorrupt(t *testing.T) {
	data, err := Marshal(testSnapshot(500))
	require.NoError(t, err)

	flip := func(i int) []byte {
		c := bytes.Clone(data)
		c[i] ^= 0xff
		return c
	}

	tests := map[string][]byte{
		"empty":     nil,
		"truncated": data[:len(data)-3],
		"magic":     flip(0),
		"version":   flip(4),
		"checksum":  flip(10),
		"payload":   flip(len(data) - 1),
	}
	for name, corrupt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal(corrupt)
			assert.True(t, errors.Is(err, ErrCorrupt), "%v", err)
		})
	}

	// Internally inconsistent snapshots are corrupt too
	s := testSnapshot(500)
	s.Actions = 3
	data, err = Marshal(s)
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrCorrupt)

	s = testSnapshot(500)
	s.Coverage = append(s.Coverage, 6)
	data, err = Marshal(s)
	require.NoError(t, err)
	_, err = Unmarshal(data)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestStores(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			eps, err := store.Episodes()
			require.NoError(t, err)
			assert.Empty(t, eps)

			_, err = store.Get(5)
			assert.ErrorIs(t, err, ErrNotFound)

			for _, ep := range []int{500, 1000, 20, 100000000} {
				require.NoError(t, store.Put(ep, []byte{byte(ep)}))
			}
			assert.ErrorIs(t, store.Put(500, []byte{1}), ErrExists)

			eps, err = store.Episodes()
			require.NoError(t, err)
			assert.Equal(t, []int{100000000, 1000, 500, 20}, eps)

			data, err := store.Get(500)
			require.NoError(t, err)
			assert.Equal(t, []byte{byte(500 % 256)}, data)

			require.NoError(t, store.Delete(1000))
			assert.ErrorIs(t, store.Delete(1000), ErrNotFound)
			eps, err = store.Episodes()
			require.NoError(t, err)
			assert.Equal(t, []int{100000000, 500, 20}, eps)

			require.NoError(t, store.Quarantine(500))
			assert.ErrorIs(t, store.Quarantine(500), ErrNotFound)
			eps, err = store.Episodes()
			require.NoError(t, err)
			assert.Equal(t, []int{100000000, 20}, eps)
			require.NoError(t, store.Put(500, []byte{2}))
			require.NoError(t, store.Quarantine(500))
		})
	}
}

func TestManagerCorruptFallback(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			m := NewManager(store, 0, logger)

			require.NoError(t, m.Save(testSnapshot(500)))
			require.NoError(t, m.Save(testSnapshot(1000)))

			// Corrupt the newest snapshot in place
			data, err := store.Get(1000)
			require.NoError(t, err)
			data[len(data)/2] ^= 0xff
			switch s := store.(type) {
			case *Dir:
				require.NoError(t, os.WriteFile(s.Path(1000), data, 0o600))
			default:
				require.NoError(t, store.Delete(1000))
				require.NoError(t, store.Put(1000, data))
			}

			s, ok, err := m.LoadLatest()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 500, s.Episode)
			assert.Contains(t, logs.String(), "skipping corrupt checkpoint")
			assert.Contains(t, logs.String(), "episode=1000")
		})
	}
}

func TestManagerReplacesCorrupt(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&logs, nil))
			m := NewManager(store, 0, logger)

			require.NoError(t, m.Save(testSnapshot(500)))
			require.NoError(t, store.Put(1000, []byte("garbage")))

			s, ok, err := m.LoadLatest()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 500, s.Episode)

			// Training back up to episode 1000 must replace the corrupt
			// snapshot rather than keep it
			require.NoError(t, m.Save(testSnapshot(1000)))
			assert.Contains(t, logs.String(), "replacing corrupt checkpoint")

			s, ok, err = m.LoadLatest()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, 1000, s.Episode)

			eps, err := store.Episodes()
			require.NoError(t, err)
			assert.Equal(t, []int{1000, 500}, eps)

			if dir, ok := store.(*Dir); ok {
				data, err := os.ReadFile(dir.Path(1000) + ".corrupt")
				require.NoError(t, err)
				assert.Equal(t, []byte("garbage"), data)
			}
		})
	}
}

func TestManagerEmpty(t *testing.T) {
	dir, err := NewDir(t.TempDir())
	require.NoError(t, err)

	_, ok, err := NewManager(dir, 0, nil).LoadLatest()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestManagerKeep(t *testing.T) {
	dir, err := NewDir(t.TempDir())
	require.NoError(t, err)
	m := NewManager(dir, 2, nil)

	for _, ep := range []int{500, 1000, 1500, 2000} {
		require.NoError(t, m.Save(testSnapshot(ep)))
	}
	// Saving an existing episode keeps the original
	require.NoError(t, m.Save(testSnapshot(2000)))

	eps, err := dir.Episodes()
	require.NoError(t, err)
	assert.Equal(t, []int{2000, 1500}, eps)

	s, ok, err := m.LoadLatest()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2000, s.Episode)
}

func TestNStep(t *testing.T) {
	n := &NStep{Interval: 500}

	tests := []struct {
		prev, cur int
		due       bool
	}{
		{0, 499, false},
		{0, 500, true},
		{480, 520, true},
		{500, 999, false},
		{990, 1010, true},
		{100, 1600, true},
		{1000, 1000, false},
	}
	for _, test := range tests {
		assert.Equal(t, test.due, n.Due(test.prev, test.cur), "(%d, %d]",
			test.prev, test.cur)
	}
	assert.False(t, (&NStep{}).Due(0, 1000))
}

func TestNStepCheckpoint(t *testing.T) {
	dir, err := NewDir(t.TempDir())
	require.NoError(t, err)

	episode := 0
	n := NewNStep(500, NewManager(dir, 0, nil), func() Snapshot {
		return testSnapshot(episode)
	})

	for _, next := range []int{300, 600, 900, 1200} {
		prev := episode
		episode = next
		require.NoError(t, n.Checkpoint(prev, episode))
	}

	eps, err := dir.Episodes()
	require.NoError(t, err)
	assert.Equal(t, []int{1200, 600}, eps)
}
