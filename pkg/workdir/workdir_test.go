package workdir_test

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/relay/pkg/workdir"
)

// tree creates base/project and base/sibling and returns the real base path.
func tree(t *testing.T) string {
	t.Helper()
	base, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, os.Mkdir(filepath.Join(base, "project"), 0o755))
	require.NoError(t, os.Mkdir(filepath.Join(base, "sibling"), 0o755))
	return base
}

func TestStore_DefaultForUnknownUser(t *testing.T) {
	s := workdir.NewStore("/srv/default")
	assert.Equal(t, "/srv/default", s.Workdir("u1"))
	assert.Equal(t, "/srv/default", s.Default())
}

func TestStore_ChangeDirRelativeToCurrent(t *testing.T) {
	base := tree(t)
	s := workdir.NewStore(filepath.Join(base, "project"))

	got, err := s.ChangeDir("u1", "../sibling")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "sibling"), got)
	assert.Equal(t, got, s.Workdir("u1"))
}

func TestStore_ChangeDirAbsolute(t *testing.T) {
	base := tree(t)
	s := workdir.NewStore(base)

	got, err := s.ChangeDir("u1", filepath.Join(base, "project"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "project"), got)
}

func TestStore_ChangeDirMissingLeavesSessionUnchanged(t *testing.T) {
	base := tree(t)
	s := workdir.NewStore(base)
	_, err := s.ChangeDir("u1", "project")
	require.NoError(t, err)

	_, err = s.ChangeDir("u1", "/does/not/exist")
	require.Error(t, err)
	assert.True(t, errors.Is(err, workdir.ErrDirectoryNotFound))

	var dnf *workdir.DirectoryNotFoundError
	require.ErrorAs(t, err, &dnf)
	assert.Equal(t, "/does/not/exist", dnf.Path)
	assert.Equal(t, filepath.Join(base, "project"), s.Workdir("u1"))
}

func TestStore_ChangeDirRejectsFiles(t *testing.T) {
	base := tree(t)
	file := filepath.Join(base, "notes.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	s := workdir.NewStore(base)

	_, err := s.ChangeDir("u1", "notes.txt")
	assert.ErrorIs(t, err, workdir.ErrDirectoryNotFound)
}

func TestStore_ChangeDirIsIdempotentFromSameState(t *testing.T) {
	base := tree(t)
	s := workdir.NewStore(filepath.Join(base, "project"))

	first, err := s.ChangeDir("u1", "../sibling")
	require.NoError(t, err)
	s.Reset("u1")
	second, err := s.ChangeDir("u1", "../sibling")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestStore_ChangeDirHomeExpansion(t *testing.T) {
	home := tree(t)
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	s := workdir.NewStore("/")

	got, err := s.ChangeDir("u1", "~/project")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "project"), got)
}

func TestStore_ResetReturnsDefault(t *testing.T) {
	base := tree(t)
	s := workdir.NewStore(base)
	_, err := s.ChangeDir("u1", "project")
	require.NoError(t, err)

	assert.Equal(t, base, s.Reset("u1"))
	assert.Equal(t, base, s.Workdir("u1"))
}

func TestStore_UsersAreIndependent(t *testing.T) {
	base := tree(t)
	s := workdir.NewStore(base)

	_, err := s.ChangeDir("alice", "project")
	require.NoError(t, err)
	assert.Equal(t, base, s.Workdir("bob"))
}

func TestStore_ConcurrentUse(t *testing.T) {
	base := tree(t)
	s := workdir.NewStore(base)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := []string{"a", "b", "c"}[i%3]
			if i%2 == 0 {
				_, _ = s.ChangeDir(user, "project")
			} else {
				s.Reset(user)
			}
			_ = s.Workdir(user)
		}(i)
	}
	wg.Wait()
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "/a/c", workdir.Resolve(" ../c ", "/a/b"))
	assert.Equal(t, "/x/y", workdir.Resolve("/x/./y", "/a/b"))
}

func TestDefaultWorkdir(t *testing.T) {
	base := tree(t)
	fallback := filepath.Join(base, "sibling")

	assert.Equal(t, filepath.Join(base, "project"), workdir.DefaultWorkdir(filepath.Join(base, "project"), fallback))
	assert.Equal(t, fallback, workdir.DefaultWorkdir("", fallback))
	assert.Equal(t, fallback, workdir.DefaultWorkdir(filepath.Join(base, "missing"), fallback))
}
