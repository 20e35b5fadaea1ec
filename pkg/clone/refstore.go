package clone

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RefStore is the reference-storage interface this package consumes
// (spec §6). All mutations within one transaction either all become
// visible or none do (spec §8 invariant 1).
type RefStore interface {
	BeginTransaction() Transaction
	CreateSymref(name, target string) error
	// force requests --no-deref: update name itself rather than following it
	// if it is currently a symref (used to detach HEAD).
	UpdateRef(name, oid string, force bool) error
	RefExists(name string) (bool, error)
	DeleteRef(name, oid string) error
}

// Transaction batches ref creations and commits them atomically.
type Transaction interface {
	Create(name, oid string)
	Commit() error
}

// gitRefStore implements RefStore via `git update-ref` subprocess calls
// against a fixed git-dir.
type gitRefStore struct {
	ctx    context.Context
	log    *slog.Logger
	gitDir string
}

// NewGitRefStore returns a RefStore backed by the system git binary
// operating on gitDir.
func NewGitRefStore(ctx context.Context, log *slog.Logger, gitDir string) RefStore {
	return &gitRefStore{ctx: ctx, log: log, gitDir: gitDir}
}

func (s *gitRefStore) gitDirFlag() []string {
	return []string{"--git-dir", s.gitDir}
}

func (s *gitRefStore) BeginTransaction() Transaction {
	return &gitTransaction{store: s}
}

func (s *gitRefStore) CreateSymref(name, target string) error {
	args := append(s.gitDirFlag(), "symbolic-ref", name, target)
	_, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefStore, err)
	}
	return nil
}

func (s *gitRefStore) UpdateRef(name, oid string, force bool) error {
	args := s.gitDirFlag()
	args = append(args, "update-ref")
	if force {
		// --no-deref: detach rather than follow HEAD's current symref.
		args = append(args, "--no-deref")
	}
	args = append(args, name, oid)
	_, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefStore, err)
	}
	return nil
}

func (s *gitRefStore) RefExists(name string) (bool, error) {
	args := append(s.gitDirFlag(), "show-ref", "--verify", "--quiet", name)
	_, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	return err == nil, nil
}

func (s *gitRefStore) DeleteRef(name, oid string) error {
	args := append(s.gitDirFlag(), "update-ref", "-d", name, oid)
	_, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRefStore, err)
	}
	return nil
}

// gitTransaction batches ref creations into a single `git update-ref
// --stdin` invocation so a reader either observes the full mapped ref set
// or none of it (spec §8 invariant 1).
type gitTransaction struct {
	store *gitRefStore
	lines []string
}

func (t *gitTransaction) Create(name, oid string) {
	t.lines = append(t.lines, fmt.Sprintf("create %s %s", name, oid))
}

func (t *gitTransaction) Commit() error {
	if len(t.lines) == 0 {
		return nil
	}
	batch := strings.Join(t.lines, "\n") + "\n"
	args := append(t.store.gitDirFlag(), "update-ref", "--stdin")
	_, err := runGitCommandStdin(t.store.ctx, t.store.log, "", batch, args...)
	if err != nil {
		return fmt.Errorf("%w: ref transaction commit failed: %v", ErrRefStore, err)
	}
	return nil
}
