package sessionstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStorage struct {
	data map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{data: make(map[string][]byte)} }

func (m *memStorage) Save(id string, record []byte) error {
	m.data[id] = record
	return nil
}

func (m *memStorage) Load(id string) ([]byte, bool, error) {
	v, ok := m.data[id]
	return v, ok, nil
}

func (m *memStorage) Delete(id string) error {
	delete(m.data, id)
	return nil
}

func (m *memStorage) List() ([]string, error) {
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func TestManager_CreateGetDestroy(t *testing.T) {
	dir := t.TempDir()
	storage := newMemStorage()
	m, err := NewManager(storage, dir, time.Hour, time.Hour, 10)
	require.NoError(t, err)
	defer m.Close()

	s, err := m.Create("sess-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "sess-1"), s.UserDataDir)

	_, err = m.Create("sess-1")
	assert.Error(t, err, "duplicate create must fail")

	got, err := m.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)

	require.NoError(t, m.Destroy("sess-1"))
	_, err = m.Get("sess-1")
	assert.Error(t, err)
}

func TestManager_RestoresCookiesFromStorage(t *testing.T) {
	dir := t.TempDir()
	storage := newMemStorage()

	m1, err := NewManager(storage, dir, time.Hour, time.Hour, 10)
	require.NoError(t, err)
	_, err = m1.Create("sess-2")
	require.NoError(t, err)
	require.NoError(t, m1.PersistCookies("sess-2", []Cookie{{Name: "a", Value: "b", Domain: "example.com"}}))
	m1.Close()

	m2, err := NewManager(storage, dir, time.Hour, time.Hour, 10)
	require.NoError(t, err)
	defer m2.Close()

	restored, err := m2.Get("sess-2")
	require.NoError(t, err)
	cookies := restored.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "a", cookies[0].Name)
}

func TestManager_MaxSessionsEnforced(t *testing.T) {
	dir := t.TempDir()
	m, err := NewManager(newMemStorage(), dir, time.Hour, time.Hour, 1)
	require.NoError(t, err)
	defer m.Close()

	_, err = m.Create("only")
	require.NoError(t, err)

	_, err = m.Create("overflow")
	assert.Error(t, err)
}
