package clone

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// primerState is the Primer Subsystem's explicit tagged state (spec §4.D,
// design note: "specified as an explicit tagged state so implementations
// must model the recoverable-vs-fatal distinction, rather than piggybacking
// on exception flow").
type primerState int

const (
	primerIdle primerState = iota
	primerFetching
	primerIndexing
	primerInstalling
	primerDone
	primerAbandoned
)

// PrimerResult describes the outcome of an attempted primer adoption.
type PrimerResult struct {
	Adopted    bool
	PackPath   string
	IdxPath    string
	BundlePath string
	TempRefs   []string
}

// AdoptPrimer runs the primer state machine: discover, download, index and
// install the optional alternate-resource primer. It returns Adopted=false
// (with nil error) when there is no primer, an unsupported filetype, or a
// recoverable failure and resume is false. When resume is true, any
// abandonment is returned as a fatal error wrapping ErrPrimer.
func AdoptPrimer(ctx context.Context, log *slog.Logger, transport Transport, refStore RefStore, gitDir, origin string, tracker *JunkTracker, resume bool) (PrimerResult, error) {
	if log == nil {
		log = slog.Default()
	}

	state := primerIdle

	ar, ok, err := transport.PrimeClone(ctx)
	if err != nil || !ok {
		return PrimerResult{}, nil
	}

	if ar.Filetype != AltResourcePack {
		log.Warn("unsupported primer filetype", "filetype", string(ar.Filetype))
		return abandonPrimer(tracker, resume, PrimerResult{}, nil)
	}

	packDir := filepath.Join(gitDir, "objects", "pack")
	state = primerFetching
	tracker.EnterPrimerAdoption(ar)

	packPath, err := transport.DownloadPrimer(ctx, ar, packDir)
	if err != nil {
		log.Warn("primer download failed", "err", err)
		return abandonPrimer(tracker, resume, PrimerResult{PackPath: packPath}, err)
	}

	state = primerIndexing
	bundlePath := strings.TrimSuffix(packPath, ".pack") + ".bndl"
	idxPath := strings.TrimSuffix(packPath, ".pack") + ".idx"

	if !fileExists(bundlePath) {
		args := []string{"index-pack", "--clone-bundle", "-v", "--check-self-contained-and-connected", "-o", idxPath, packPath}
		if _, err := runGitCommand(ctx, log, nil, "", args...); err != nil {
			log.Warn("primer indexing failed", "err", err)
			return abandonPrimer(tracker, resume, PrimerResult{PackPath: packPath, IdxPath: idxPath, BundlePath: bundlePath}, err)
		}
	}

	state = primerInstalling
	tips, err := readBundleTips(bundlePath)
	if err != nil {
		log.Warn("unable to read bundle header", "err", err)
		return abandonPrimer(tracker, resume, PrimerResult{PackPath: packPath, IdxPath: idxPath, BundlePath: bundlePath}, err)
	}

	txn := refStore.BeginTransaction()
	var tempRefs []string
	for _, tip := range tips {
		ref := fmt.Sprintf("refs/temp/%s/resume/temp-%s", origin, shortHex(tip))
		txn.Create(ref, tip)
		tempRefs = append(tempRefs, ref)
	}
	if err := txn.Commit(); err != nil {
		log.Warn("primer temp ref installation failed", "err", err)
		return abandonPrimer(tracker, resume, PrimerResult{PackPath: packPath, IdxPath: idxPath, BundlePath: bundlePath}, err)
	}

	state = primerDone
	_ = state

	return PrimerResult{
		Adopted:    true,
		PackPath:   packPath,
		IdxPath:    idxPath,
		BundlePath: bundlePath,
		TempRefs:   tempRefs,
	}, nil
}

func abandonPrimer(tracker *JunkTracker, resume bool, partial PrimerResult, cause error) (PrimerResult, error) {
	if resume {
		if cause != nil {
			return PrimerResult{}, fmt.Errorf("%w: %v", ErrPrimer, cause)
		}
		return PrimerResult{}, fmt.Errorf("%w: primer abandoned during --resume", ErrPrimer)
	}

	for _, p := range []string{partial.PackPath, partial.PackPath + ".temp", partial.IdxPath, partial.BundlePath} {
		if p == "" {
			continue
		}
		_ = os.Remove(p)
	}
	tracker.AbandonPrimer()
	return PrimerResult{}, nil
}

// FinalizePrimer deletes the temporary refs and the bundle file once the
// main fetch has succeeded, keeping the pack and its index as a permanent
// part of the object store.
func FinalizePrimer(refStore RefStore, result PrimerResult) error {
	if !result.Adopted {
		return nil
	}
	for _, ref := range result.TempRefs {
		exists, err := refStore.RefExists(ref)
		if err != nil {
			return err
		}
		if !exists {
			continue
		}
		if err := refStore.DeleteRef(ref, ""); err != nil {
			return err
		}
	}
	if result.BundlePath != "" {
		if err := os.Remove(result.BundlePath); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

// readBundleTips parses a bundle file's header for its tip references,
// returning the object ids they point at. A bundle header looks like:
//
//	# v2 git bundle
//	<oid> <ref-name>
//	<oid> <ref-name>
//	<blank line>
//	<pack data...>
func readBundleTips(bundlePath string) ([]string, error) {
	f, err := os.Open(bundlePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tips []string
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if !strings.HasPrefix(line, "# v") {
				return nil, fmt.Errorf("%w: not a git bundle: %s", ErrPrimer, bundlePath)
			}
			continue
		}
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "-") {
			// a prerequisite commit, not a tip; skip
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 1 {
			continue
		}
		tips = append(tips, fields[0])
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tips, nil
}

func shortHex(oid string) string {
	sum := sha256.Sum256([]byte(oid))
	return hex.EncodeToString(sum[:])[:12]
}
