package tracker

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	records []Record
	err     error
	closed  bool
}

func (r *recorder) Track(rec Record) error {
	r.records = append(r.records, rec)
	return r.err
}

func (r *recorder) Close() error {
	r.closed = true
	return r.err
}

func TestMulti(t *testing.T) {
	failing := &recorder{err: errors.New("disk full")}
	ok := &recorder{}
	m := Multi{failing, ok}

	err := m.Track(Record{BatchStart: 0, BatchEnd: 10})
	assert.ErrorContains(t, err, "disk full")
	assert.Len(t, ok.records, 1)
	assert.Len(t, failing.records, 1)

	assert.Error(t, m.Close())
	assert.True(t, ok.closed)
	assert.True(t, failing.closed)

	assert.NoError(t, Multi{}.Track(Record{}))
}

func TestLoadData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gob.NewEncoder(f).Encode([]float64{1, 2.5}))
	require.NoError(t, f.Close())

	data, err := LoadData(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5}, data)

	_, err = LoadData(filepath.Join(t.TempDir(), "missing.bin"))
	assert.Error(t, err)
}
