package clone

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalCloneOptions configures the Local-Clone Path.
type LocalCloneOptions struct {
	SourceGitDir string // the source repository's .git (or bare) directory
	DestGitDir   string
	Shared       bool
	NoHardlinks  bool
}

// IsShallowSource reports whether the source repository has a "shallow"
// marker file, in which case the local-clone path must not be used.
func IsShallowSource(sourceGitDir string) bool {
	return fileExists(filepath.Join(sourceGitDir, "shallow"))
}

// LocalClone copies or hardlinks the source's object store into the
// destination in place of a network fetch (spec §4.E).
func LocalClone(opts LocalCloneOptions) error {
	srcObjects := filepath.Join(opts.SourceGitDir, "objects")
	dstObjects := filepath.Join(opts.DestGitDir, "objects")

	if opts.Shared {
		return appendAlternates(dstObjects, []string{srcObjects})
	}

	if err := os.MkdirAll(dstObjects, defaultDirMode); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvironment, err)
	}

	if err := mirrorObjectDir(srcObjects, dstObjects, opts.NoHardlinks); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvironment, err)
	}

	return nil
}

// mirrorObjectDir recursively mirrors srcDir into dstDir. info/alternates is
// special-cased: rather than copying it verbatim, each line is parsed,
// blank lines and comments are skipped, relative paths are rewritten as
// absolute (resolved against srcDir's parent), and the result is appended
// to the destination's alternates file so any existing entries survive.
func mirrorObjectDir(srcDir, dstDir string, noHardlinks bool) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && entry.IsDir() {
			continue
		}

		srcPath := filepath.Join(srcDir, name)
		dstPath := filepath.Join(dstDir, name)

		if entry.IsDir() {
			if err := os.MkdirAll(dstPath, defaultDirMode); err != nil {
				return err
			}
			if err := mirrorObjectDir(srcPath, dstPath, noHardlinks); err != nil {
				return err
			}
			continue
		}

		if filepath.Base(srcDir) == "info" && name == "alternates" {
			if err := rewriteAlternates(srcPath, dstPath, filepath.Dir(srcDir)); err != nil {
				return err
			}
			continue
		}

		if err := linkOrCopy(srcPath, dstPath, !noHardlinks); err != nil {
			return err
		}
	}

	return nil
}

// rewriteAlternates parses the source's info/alternates file and appends
// its entries, rewritten to absolute paths, to the destination's
// info/alternates.
func rewriteAlternates(srcPath, dstPath, srcObjectsDir string) error {
	f, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var abs []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(srcObjectsDir, line)
		}
		abs = append(abs, line)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// dstPath is <objects>/info/alternates; appendAlternates takes <objects>
	return appendAlternates(filepath.Dir(filepath.Dir(dstPath)), abs)
}

// appendAlternates appends each of the given absolute object-directory
// paths as a new line in dstObjectsDir/info/alternates, preserving any
// existing entries.
func appendAlternates(dstObjectsDir string, entries []string) error {
	if len(entries) == 0 {
		return nil
	}
	infoDir := filepath.Join(dstObjectsDir, "info")
	if err := os.MkdirAll(infoDir, defaultDirMode); err != nil {
		return err
	}
	path := filepath.Join(infoDir, "alternates")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, e := range entries {
		if _, err := fmt.Fprintln(f, e); err != nil {
			return err
		}
	}
	return nil
}
