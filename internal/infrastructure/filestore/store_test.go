package filestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/muhammadchandra19/tickstore/pkg/dtf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(from, n uint64) []dtf.Update {
	out := make([]dtf.Update, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, dtf.Update{Timestamp: i * 10, Sequence: i + 1, Kind: dtf.KindBookAdd, Side: dtf.SideBid, Price: float64(100 + i), Size: 1})
	}
	return out
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestStore_Path(t *testing.T) {
	s := newStore(t)

	testCases := []struct {
		key   string
		valid bool
	}{
		{key: "bnc_btc_eth/10-abc.dtf", valid: true},
		{key: "a/./b.dtf", valid: true},
		{key: ""},
		{key: "."},
		{key: ".."},
		{key: "../escape.dtf"},
		{key: "a/../../escape.dtf"},
		{key: "/abs.dtf"},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			path, err := s.Path(tc.key)
			if !tc.valid {
				assert.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
			key, err := s.Key(path)
			require.NoError(t, err)
			assert.Equal(t, filepath.ToSlash(filepath.Clean(tc.key)), key)
		})
	}
}

func TestStore_WriteAndOpen(t *testing.T) {
	s := newStore(t)
	data, err := dtf.Encode(records(0, 50), 3, dtf.WithBlockSize(8))
	require.NoError(t, err)

	path, err := s.Write("bnc_btc_eth/0-a.dtf", data)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.Root(), "bnc_btc_eth", "0-a.dtf"), path)

	f, err := s.Open(path)
	require.NoError(t, err)
	got, err := f.ReadAll()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, records(0, 50), got)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestStore_OpenErrors(t *testing.T) {
	s := newStore(t)

	_, err := s.Open(filepath.Join(s.Root(), "missing.dtf"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	path, err := s.Write("junk.dtf", []byte("not a dtf file at all, just some bytes to fill the header"))
	require.NoError(t, err)
	_, err = s.Open(path)
	assert.ErrorIs(t, err, dtf.ErrBadMagic)
}

func TestStore_Append(t *testing.T) {
	s := newStore(t)

	path, meta, err := s.Append("bnc_btc_eth/live.dtf", 7, records(0, 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(5), meta.RecordCount)
	assert.Equal(t, uint32(7), meta.SymbolCode)

	_, meta, err = s.Append("bnc_btc_eth/live.dtf", 7, records(5, 5))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), meta.RecordCount)
	assert.Equal(t, uint64(90), meta.MaxTimestamp)

	_, _, err = s.Append("bnc_btc_eth/live.dtf", 7, records(0, 1))
	assert.ErrorIs(t, err, dtf.ErrUnsortedInput)

	f, err := s.Open(path)
	require.NoError(t, err)
	defer f.Close()
	got, err := f.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, records(0, 10), got)
}

func TestStore_ConcurrentAppend(t *testing.T) {
	s := newStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := uint64(0); i < 10; i++ {
				_, _, err := s.Append(key, 1, records(i, 1))
				assert.NoError(t, err)
			}
		}(fmt.Sprintf("sym/%d.dtf", w))
	}
	wg.Wait()

	for w := 0; w < 4; w++ {
		path, err := s.Path(fmt.Sprintf("sym/%d.dtf", w))
		require.NoError(t, err)
		f, err := s.Open(path)
		require.NoError(t, err)
		meta, err := f.Verify()
		require.NoError(t, err)
		assert.Equal(t, uint64(10), meta.RecordCount)
		require.NoError(t, f.Close())
	}
}

func TestStore_Scan(t *testing.T) {
	s := newStore(t)
	data, err := dtf.Encode(records(0, 2), 1)
	require.NoError(t, err)

	for _, key := range []string{"b/2.dtf", "a/1.dtf", "a/notes.txt"} {
		_, err := s.Write(key, data)
		require.NoError(t, err)
	}

	paths, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(s.Root(), "a", "1.dtf"),
		filepath.Join(s.Root(), "b", "2.dtf"),
	}, paths)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
