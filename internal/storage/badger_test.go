package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestStoreInMemory(t *testing.T) {
	s, err := Open("", true)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put([]byte("user/a"), record{Name: "a", Value: 1}))
	require.NoError(t, s.Put([]byte("user/b"), record{Name: "b", Value: 2}))
	require.NoError(t, s.Put([]byte("other/c"), record{Name: "c", Value: 3}))

	var got record
	require.NoError(t, s.Get([]byte("user/a"), &got))
	require.Equal(t, "a", got.Name)

	require.ErrorIs(t, s.Get([]byte("user/x"), &got), ErrNotFound)

	ok, err := s.Has([]byte("user/b"))
	require.NoError(t, err)
	require.True(t, ok)

	var names []string
	err = s.Iterate([]byte("user/"), func(key, value []byte) error {
		names = append(names, string(key))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"user/a", "user/b"}, names)

	require.NoError(t, s.Delete([]byte("user/a")))
	ok, err = s.Has([]byte("user/a"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStoreOnDisk(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir, false)
	require.NoError(t, err)
	require.NoError(t, s.Put([]byte("k"), record{Name: "persisted"}))
	require.NoError(t, s.Close())

	s, err = Open(dir, false)
	require.NoError(t, err)
	defer s.Close()

	var got record
	require.NoError(t, s.Get([]byte("k"), &got))
	require.Equal(t, "persisted", got.Name)
}
