package clone

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-clonecore/gitclone/pkg/giturl"
)

// localProbeSuffixes and bundleProbeSuffixes are tried, in order, against a
// candidate local source path. The first suffix that resolves to a
// repository directory (or a "gitdir: " indirection file) wins.
var localProbeSuffixes = []string{"/.git", "", ".git/.git", ".git"}
var bundleProbeSuffixes = []string{".bundle", ""}

// PlanOptions configures the Destination Planner.
type PlanOptions struct {
	Source         string
	Dest           string // may be empty; guessed from Source
	Bare           bool
	Mirror         bool
	SeparateGitDir string
	Resume         bool
}

// ResolveSource classifies src as local-or-remote and, for local sources,
// finds the concrete repository directory or bundle file on disk.
func ResolveSource(src string) (SourceSpec, error) {
	if !giturl.IsRemote(src) {
		// must resolve to a local file; fatal if it doesn't.
		for _, suffix := range localProbeSuffixes {
			candidate := src + suffix
			if isUsableLocalSource(candidate) {
				return SourceSpec{Raw: src, Local: true, Resolved: candidate}, nil
			}
		}
		for _, suffix := range bundleProbeSuffixes {
			candidate := src + suffix
			if fileExists(candidate) {
				return SourceSpec{Raw: src, Local: true, Bundle: true, Resolved: candidate}, nil
			}
		}
		return SourceSpec{}, fmt.Errorf("%w: %q does not appear to be a git repository or bundle", ErrEnvironment, src)
	}

	return SourceSpec{Raw: src, Local: false}, nil
}

// isUsableLocalSource reports whether candidate is a repository directory,
// or a file starting with the "gitdir: " indirection signature to follow.
func isUsableLocalSource(candidate string) bool {
	if dirExists(candidate) {
		return true
	}
	if fileExists(candidate) {
		data, err := os.ReadFile(candidate)
		if err == nil && strings.HasPrefix(string(data), "gitdir: ") {
			return true
		}
	}
	return false
}

// FollowGitdirIndirection reads a "gitdir: <path>" pointer file and returns
// the path it references, resolved relative to the file's directory if
// relative.
func FollowGitdirIndirection(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	target := strings.TrimSpace(strings.TrimPrefix(string(data), "gitdir:"))
	if target == "" {
		return "", fmt.Errorf("%w: empty gitdir indirection in %s", ErrEnvironment, path)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(path), target)
	}
	return target, nil
}

// GuessDestination derives a destination directory name from the source,
// appending ".git" for bare clones, per spec §4.A.
func GuessDestination(source string, bundle, bare bool) (string, error) {
	name, err := giturl.GuessDir(source, bundle)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if bare {
		name += ".git"
	}
	return name, nil
}

// Plan resolves a destination layout from the given options. On success the
// destination's leading directories (and the work-tree directory, for
// non-bare clones) are created and registered with tracker.
func Plan(ctx context.Context, log *slog.Logger, opts PlanOptions, tracker *JunkTracker) (DestinationLayout, SourceSpec, error) {
	if log == nil {
		log = slog.Default()
	}

	if opts.Resume {
		return planResume(opts, tracker)
	}

	src, err := ResolveSource(opts.Source)
	if err != nil {
		return DestinationLayout{}, SourceSpec{}, err
	}

	dest := opts.Dest
	if dest == "" {
		dest, err = GuessDestination(opts.Source, src.Bundle, opts.Bare)
		if err != nil {
			return DestinationLayout{}, src, err
		}
	}

	dest, err = filepath.Abs(dest)
	if err != nil {
		return DestinationLayout{}, src, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	if info, err := os.Stat(dest); err == nil {
		if !info.IsDir() {
			return DestinationLayout{}, src, fmt.Errorf("%w: destination %q exists and is not a directory", ErrValidation, dest)
		}
		empty, err := dirIsEmpty(dest)
		if err != nil {
			return DestinationLayout{}, src, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		if !empty {
			return DestinationLayout{}, src, fmt.Errorf("%w: destination path %q already exists and is not an empty directory", ErrValidation, dest)
		}
	}

	layout := DestinationLayout{Bare: opts.Bare || opts.Mirror, Origin: "origin"}
	if opts.SeparateGitDir != "" && !layout.Bare {
		layout.GitDir = dest
		layout.WorkTree = dest
		layout.SeparateGitDir = opts.SeparateGitDir
		layout.GitDir = opts.SeparateGitDir
	} else if layout.Bare {
		layout.GitDir = dest
	} else {
		layout.GitDir = filepath.Join(dest, ".git")
		layout.WorkTree = dest
	}

	if err := os.MkdirAll(dest, defaultDirMode); err != nil {
		return DestinationLayout{}, src, fmt.Errorf("%w: unable to create destination directory: %v", ErrValidation, err)
	}
	if layout.GitDir != dest {
		if err := os.MkdirAll(layout.GitDir, defaultDirMode); err != nil {
			return DestinationLayout{}, src, fmt.Errorf("%w: unable to create git dir: %v", ErrValidation, err)
		}
	}

	// register junk before any further side effects
	tracker.SetGitDir(layout.GitDir)
	if layout.WorkTree != "" && layout.WorkTree != layout.GitDir {
		tracker.SetWorkTree(layout.WorkTree)
	} else if layout.GitDir == dest && layout.WorkTree == "" {
		// bare clone: the single directory created is the git dir itself,
		// already tracked above.
		_ = dest
	}

	layout.validate()
	return layout, src, nil
}

const defaultDirMode = os.FileMode(0o755)

// planResume recovers a DestinationLayout and RemoteConfig from a
// pre-existing destination for a --resume invocation. The destination must
// pre-exist and must carry a ResumeRecord; its absence is fatal and must
// not mutate the target (spec §8 invariant 4).
func planResume(opts PlanOptions, tracker *JunkTracker) (DestinationLayout, SourceSpec, error) {
	dest, err := filepath.Abs(opts.Dest)
	if err != nil {
		return DestinationLayout{}, SourceSpec{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var layout DestinationLayout
	layout.IsResume = true

	gitDirCandidate := filepath.Join(dest, ".git")
	switch {
	case dirExists(gitDirCandidate):
		layout.GitDir = gitDirCandidate
		layout.WorkTree = dest
	case dirExists(filepath.Join(dest, "HEAD")) || fileExists(filepath.Join(dest, "HEAD")):
		// dest itself looks like a bare git-dir
		layout.GitDir = dest
		layout.Bare = true
	default:
		return DestinationLayout{}, SourceSpec{}, fmt.Errorf("%w: %q is not a resumable clone destination", ErrValidation, dest)
	}

	rec, err := readResumeRecord(layout.GitDir)
	if err != nil {
		return DestinationLayout{}, SourceSpec{}, err
	}

	tracker.SetGitDir(layout.GitDir)
	if layout.WorkTree != "" {
		tracker.SetWorkTree(layout.WorkTree)
	}
	// the on-disk ResumeRecord means LeaveResumable is re-entered, so a
	// failure later in this run keeps the destination resumable
	tracker.EnterPrimerAdoption(AltResource{URL: rec.URL, Filetype: rec.Filetype})

	layout.validate()
	return layout, SourceSpec{Raw: opts.Source}, nil
}
