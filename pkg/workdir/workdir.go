// Package workdir tracks the working directory of each chat user.
//
// Every user starts in the default directory. Only ChangeDir and Reset move a
// user; the target is validated when it is set and never re-checked when read,
// so a directory removed later is simply reported as-is.
package workdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrDirectoryNotFound matches every *DirectoryNotFoundError.
var ErrDirectoryNotFound = errors.New("directory not found")

// DirectoryNotFoundError is returned by ChangeDir when the requested path does
// not resolve to an existing directory.
type DirectoryNotFoundError struct {
	Path string // resolved path that was checked
}

func (e *DirectoryNotFoundError) Error() string {
	return fmt.Sprintf("workdir: directory '%s' not found", e.Path)
}

func (e *DirectoryNotFoundError) Is(target error) bool { return target == ErrDirectoryNotFound }

// Store maps user ids to working directories. The zero value is not usable;
// call NewStore. Methods are safe for concurrent use.
type Store struct {
	def string

	mu   sync.RWMutex
	dirs map[string]string
}

// NewStore creates a Store whose users start in defaultDir.
func NewStore(defaultDir string) *Store {
	return &Store{def: defaultDir, dirs: make(map[string]string)}
}

// Default returns the default working directory.
func (s *Store) Default() string { return s.def }

// Workdir returns userID's current directory, or the default for a user that
// has never changed it.
func (s *Store) Workdir(userID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if dir, ok := s.dirs[userID]; ok {
		return dir
	}
	return s.def
}

// Reset moves userID back to the default directory and returns it.
func (s *Store) Reset(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirs[userID] = s.def
	return s.def
}

// ChangeDir resolves requested against userID's current directory and, if it
// names an existing directory, makes it the user's new working directory.
// "~" and "~/..." expand to the home directory of the process owner.
func (s *Store) ChangeDir(userID, requested string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.dirs[userID]
	if !ok {
		cur = s.def
	}

	target := Resolve(requested, cur)
	if !isDir(target) {
		return "", &DirectoryNotFoundError{Path: target}
	}
	if resolved, err := filepath.EvalSymlinks(target); err == nil {
		target = resolved
	}
	s.dirs[userID] = target
	return target, nil
}

// Resolve expands "~" and joins relative paths onto base. The result is
// cleaned but not checked for existence.
func Resolve(p, base string) string {
	p = strings.TrimSpace(p)
	p = expandHome(p)
	if !filepath.IsAbs(p) {
		p = filepath.Join(base, p)
	}
	return filepath.Clean(p)
}

// DefaultWorkdir picks the startup default directory: configured (after "~"
// expansion and resolution against the process directory) when it names an
// existing directory, fallback otherwise. Only stat calls touch the system.
func DefaultWorkdir(configured, fallback string) string {
	configured = strings.TrimSpace(configured)
	if configured != "" {
		p := expandHome(configured)
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		if isDir(p) {
			return filepath.Clean(p)
		}
	}
	if abs, err := filepath.Abs(fallback); err == nil {
		return abs
	}
	return fallback
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") && !strings.HasPrefix(p, `~\`) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
