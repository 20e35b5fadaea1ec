package clone

import (
	"context"
	"log/slog"
	"strings"
)

// ConfigStore is the config-storage interface this package consumes
// (spec §6).
type ConfigStore interface {
	Set(key, value string) error
	SetMultivar(key, value, pattern string) error
	Get(key string) (string, bool, error)
	// RemoteInfo iterates every remote.*, core.bare and core.worktree entry.
	RemoteInfo() (map[string]string, error)
}

// gitConfigStore implements ConfigStore by shelling out to `git config`
// against a fixed git-dir.
type gitConfigStore struct {
	ctx    context.Context
	log    *slog.Logger
	gitDir string
}

// NewGitConfigStore returns a ConfigStore backed by the system git binary
// operating on gitDir.
func NewGitConfigStore(ctx context.Context, log *slog.Logger, gitDir string) ConfigStore {
	return &gitConfigStore{ctx: ctx, log: log, gitDir: gitDir}
}

func (s *gitConfigStore) gitDirFlag() []string {
	return []string{"--git-dir", s.gitDir}
}

func (s *gitConfigStore) Set(key, value string) error {
	args := append(s.gitDirFlag(), "config", "--replace-all", key, value)
	_, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	return err
}

func (s *gitConfigStore) SetMultivar(key, value, pattern string) error {
	args := append(s.gitDirFlag(), "config", "--replace-all", key, value, pattern)
	_, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	return err
}

func (s *gitConfigStore) Get(key string) (string, bool, error) {
	args := append(s.gitDirFlag(), "config", "--get", key)
	out, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	if err != nil {
		// git config --get exits non-zero when the key is unset; this is
		// not an error condition for this interface.
		return "", false, nil
	}
	return out, true, nil
}

func (s *gitConfigStore) RemoteInfo() (map[string]string, error) {
	args := append(s.gitDirFlag(), "config", "--get-regexp", `^(remote\.|core\.bare$|core\.worktree$)`)
	out, err := runGitCommand(s.ctx, s.log, nil, "", args...)
	if err != nil {
		return map[string]string{}, nil
	}

	info := map[string]string{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		if len(parts) != 2 {
			continue
		}
		info[parts[0]] = parts[1]
	}
	return info, nil
}
