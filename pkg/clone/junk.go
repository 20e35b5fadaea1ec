package clone

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
)

// JunkTracker is the process-wide record of which on-disk artifacts are
// "junk" (removed on exit), "keep for resume", or "keep, checkout failed".
// A JunkTracker is created once per invocation by the Orchestrator and its
// mutable state — gitDir, workTree and mode — is guarded by mu so the
// signal handler's cleanup path and the orchestrator's mode-transition calls
// never observe or race a torn state.
//
// Mode transitions are monotonic in "how much survives":
//
//	None            -> LeaveResumable  (entering primer adoption)
//	LeaveResumable  -> None            (primer abandoned before persistence)
//	None/LeaveResumable -> LeaveRepo   (refs and HEAD installed)
//	LeaveRepo       -> LeaveAll        (checkout succeeded)
type JunkTracker struct {
	mu mutex

	gitDir   string
	workTree string
	mode     JunkMode
	resume   *ResumeRecord

	log *slog.Logger

	sigCh chan os.Signal
}

// NewJunkTracker returns a tracker with JunkMode None and no tracked paths.
func NewJunkTracker(log *slog.Logger) *JunkTracker {
	if log == nil {
		log = slog.Default()
	}
	return &JunkTracker{mode: JunkNone, log: log}
}

// SetGitDir registers the git-dir as junk to clean up unless a later
// transition says otherwise.
func (t *JunkTracker) SetGitDir(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gitDir = path
}

// SetWorkTree registers the work-tree as junk to clean up unless a later
// transition says otherwise.
func (t *JunkTracker) SetWorkTree(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workTree = path
}

// Mode returns the current cleanup policy.
func (t *JunkTracker) Mode() JunkMode {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mode
}

// EnterPrimerAdoption transitions None -> LeaveResumable, recording the
// AltResource that would be written into a ResumeRecord if cleanup runs
// before the primer is fully adopted.
func (t *JunkTracker) EnterPrimerAdoption(ar AltResource) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != JunkNone {
		return
	}
	t.mode = JunkLeaveResumable
	t.resume = &ResumeRecord{URL: ar.URL, Filetype: ar.Filetype}
}

// AbandonPrimer transitions LeaveResumable -> None: the primer was
// abandoned before any resumable state was persisted to disk.
func (t *JunkTracker) AbandonPrimer() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode != JunkLeaveResumable {
		return
	}
	t.mode = JunkNone
	t.resume = nil
}

// RefsInstalled transitions None/LeaveResumable -> LeaveRepo: refs and HEAD
// are durable, only checkout can still fail.
func (t *JunkTracker) RefsInstalled() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == JunkNone || t.mode == JunkLeaveResumable {
		t.mode = JunkLeaveRepo
		t.resume = nil
	}
}

// Success transitions LeaveRepo -> LeaveAll: the clone completed in full.
func (t *JunkTracker) Success() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mode == JunkLeaveRepo {
		t.mode = JunkLeaveAll
	}
}

// Cleanup executes the policy for the current mode. It is safe to call more
// than once; later calls after LeaveAll/LeaveRepo are no-ops beyond logging.
func (t *JunkTracker) Cleanup() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanupLocked()
}

func (t *JunkTracker) cleanupLocked() error {
	switch t.mode {
	case JunkNone:
		var errs []string
		if t.gitDir != "" {
			if err := os.RemoveAll(t.gitDir); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if t.workTree != "" && t.workTree != t.gitDir {
			if err := os.RemoveAll(t.workTree); err != nil {
				errs = append(errs, err.Error())
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("junk cleanup: %s", strings.Join(errs, "; "))
		}
		return nil

	case JunkLeaveResumable:
		if t.resume == nil || t.gitDir == "" {
			return nil
		}
		if err := writeResumeRecord(t.gitDir, *t.resume); err != nil {
			return fmt.Errorf("unable to persist resume record: %w", err)
		}
		t.log.Info("clone interrupted; resumable state left in place", "git-dir", t.gitDir)
		return nil

	case JunkLeaveRepo:
		t.log.Warn("checkout failed but repository is usable", "git-dir", t.gitDir)
		return nil

	case JunkLeaveAll:
		return nil
	}
	return nil
}

// ArmSignals installs a handler for SIGINT/SIGTERM that runs Cleanup()
// exactly once and then re-raises the signal with its default disposition,
// so the process's exit status reflects the signal. The returned function
// disarms the handler; call it once the orchestrator run completes
// normally so a later unrelated signal doesn't re-trigger this tracker's
// cleanup.
func (t *JunkTracker) ArmSignals() (disarm func()) {
	t.sigCh = make(chan os.Signal, 2)
	signal.Notify(t.sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		select {
		case sig, ok := <-t.sigCh:
			if !ok {
				return
			}
			// block further delivery: cleanup must not re-enter itself
			signal.Stop(t.sigCh)

			if err := t.Cleanup(); err != nil {
				t.log.Error("cleanup after signal failed", "err", err)
			}

			// re-raise with default disposition so the process's exit
			// status reflects the signal, not an artificial os.Exit code
			signal.Reset(sig)
			_ = syscall.Kill(os.Getpid(), sig.(syscall.Signal))
		case <-done:
		}
	}()

	return func() {
		close(done)
		signal.Stop(t.sigCh)
	}
}

func writeResumeRecord(gitDir string, rec ResumeRecord) error {
	path := filepath.Join(gitDir, resumeRecordFile)
	content := rec.URL + "\n" + string(rec.Filetype) + "\n"
	return os.WriteFile(path, []byte(content), 0o644)
}

// readResumeRecord reads the ResumeRecord persisted at gitDir/resumable.
// Its absence is a fatal error for a --resume invocation (spec §4.A).
func readResumeRecord(gitDir string) (ResumeRecord, error) {
	path := filepath.Join(gitDir, resumeRecordFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return ResumeRecord{}, fmt.Errorf("%w: no resume record at %s: %v", ErrValidation, path, err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) < 2 {
		return ResumeRecord{}, fmt.Errorf("%w: malformed resume record at %s", ErrValidation, path)
	}
	return ResumeRecord{URL: lines[0], Filetype: AltResourceType(lines[1])}, nil
}

// removeResumeRecord deletes the ResumeRecord if present; called by the
// Orchestrator on successful completion.
func removeResumeRecord(gitDir string) error {
	path := filepath.Join(gitDir, resumeRecordFile)
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
