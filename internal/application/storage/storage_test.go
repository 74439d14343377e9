package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	failDel map[string]bool
	failLst map[string]bool
}

func newMemStore(names ...string) *memStore {
	m := &memStore{objects: map[string][]byte{}, failDel: map[string]bool{}, failLst: map[string]bool{}}
	for _, n := range names {
		m.objects[n] = []byte("x")
	}
	return m
}

func (m *memStore) Put(_ context.Context, name, _ string, r io.Reader) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[name] = b
	return nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLst[prefix] {
		return nil, errors.New("list denied")
	}
	var out []string
	for n := range m.objects {
		if strings.HasPrefix(n, prefix) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDel[name] {
		return errors.New("delete denied")
	}
	delete(m.objects, name)
	return nil
}

func (m *memStore) URL(name string) string { return "https://cdn.test/" + name }

func TestProfilePicture(t *testing.T) {
	store := newMemStore()
	u := NewUploader(store, nil)

	url, err := u.ProfilePicture(context.Background(), "u1", "me.PNG", "image/png", strings.NewReader("img"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://cdn.test/profiles/u1/"))
	assert.True(t, strings.HasSuffix(url, ".png"))
	assert.Len(t, store.objects, 1)

	url, err = u.ProfilePicture(context.Background(), "u1", "", "image/jpeg; charset=binary", strings.NewReader("img"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, ".jpg"))

	_, err = u.ProfilePicture(context.Background(), "u1", "x.pdf", "application/pdf", strings.NewReader("doc"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)

	_, err = NewUploader(nil, nil).ProfilePicture(context.Background(), "u1", "a.png", "image/png", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestPurge(t *testing.T) {
	store := newMemStore(
		"profiles/u1/a.png", "profiles/u2/b.png",
		"permits/p.pdf",
		"company-logos/c.png",
		"keep/readme.txt",
	)
	store.failDel["profiles/u2/b.png"] = true
	store.failLst["employers/"] = true

	res, err := NewCleaner(store, nil).Purge(context.Background(), PurgePrefixes, false)
	require.NoError(t, err)
	require.Len(t, res, len(PurgePrefixes))

	assert.Equal(t, PurgeResult{Prefix: "profiles/", Found: 2, Deleted: 1, Errors: res[0].Errors}, res[0])
	assert.Len(t, res[0].Errors, 1)
	assert.Len(t, res[1].Errors, 1, "listing failure is recorded")
	assert.Equal(t, 1, res[3].Deleted)
	assert.Equal(t, 1, res[4].Deleted)

	left, _ := store.List(context.Background(), "")
	assert.Equal(t, []string{"keep/readme.txt", "profiles/u2/b.png"}, left)
}

func TestPurge_DryRun(t *testing.T) {
	store := newMemStore("profiles/u1/a.png", "permits/p.pdf")
	res, err := NewCleaner(store, nil).Purge(context.Background(), PurgePrefixes, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res[0].Found)
	assert.Zero(t, res[0].Deleted)
	assert.Len(t, store.objects, 2)
}

func TestPurge_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewCleaner(newMemStore(), nil).Purge(ctx, PurgePrefixes, false)
	assert.ErrorIs(t, err, context.Canceled)
}
