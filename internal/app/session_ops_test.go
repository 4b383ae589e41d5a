package app

import (
	"os"
	"testing"
	"time"

	"github.com/riptide-dev/riptide/internal/sessionstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSessionStorage struct {
	records map[string][]byte
}

func newFakeSessionStorage() *fakeSessionStorage {
	return &fakeSessionStorage{records: make(map[string][]byte)}
}

func (f *fakeSessionStorage) Save(id string, record []byte) error {
	f.records[id] = record
	return nil
}

func (f *fakeSessionStorage) Load(id string) ([]byte, bool, error) {
	r, ok := f.records[id]
	return r, ok, nil
}

func (f *fakeSessionStorage) Delete(id string) error {
	delete(f.records, id)
	return nil
}

func (f *fakeSessionStorage) List() ([]string, error) {
	ids := make([]string, 0, len(f.records))
	for id := range f.records {
		ids = append(ids, id)
	}
	return ids, nil
}

func testAppWithSessions(t *testing.T) *App {
	t.Helper()
	dir := t.TempDir()
	mgr, err := sessionstore.NewManager(newFakeSessionStorage(), dir, time.Hour, time.Hour, 10)
	require.NoError(t, err)
	t.Cleanup(mgr.Close)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return &App{Sessions: mgr}
}

func TestApp_SessionAndCookieLifecycle(t *testing.T) {
	a := testAppWithSessions(t)

	s, err := a.CreateSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", s.ID)

	err = a.SetCookie("sess-1", sessionstore.Cookie{Name: "auth", Value: "tok", Domain: "example.com"})
	require.NoError(t, err)

	cookies, err := a.CookiesForDomain("sess-1", "example.com")
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, "auth", cookies[0].Name)

	err = a.DeleteCookie("sess-1", "example.com", "auth")
	require.NoError(t, err)

	cookies, err = a.CookiesForDomain("sess-1", "example.com")
	require.NoError(t, err)
	assert.Empty(t, cookies)

	err = a.DestroySession("sess-1")
	require.NoError(t, err)

	_, err = a.GetSession("sess-1")
	assert.Error(t, err)
}
