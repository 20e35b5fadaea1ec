package clone

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestJunkTrackerCleanupNoneRemovesEverything(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, "repo", ".git")
	workTree := filepath.Join(root, "repo")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}

	tr := NewJunkTracker(nil)
	tr.SetGitDir(gitDir)
	tr.SetWorkTree(workTree)

	if err := tr.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if _, err := os.Stat(workTree); !os.IsNotExist(err) {
		t.Errorf("expected %q to be removed", workTree)
	}
}

func TestJunkTrackerPrimerAdoptionLifecycle(t *testing.T) {
	root := t.TempDir()
	gitDir := filepath.Join(root, "repo.git")
	if err := os.MkdirAll(gitDir, 0o755); err != nil {
		t.Fatal(err)
	}

	tr := NewJunkTracker(nil)
	tr.SetGitDir(gitDir)

	tr.EnterPrimerAdoption(AltResource{URL: "https://example/p.pack", Filetype: AltResourcePack})
	if tr.Mode() != JunkLeaveResumable {
		t.Fatalf("mode = %v, want JunkLeaveResumable", tr.Mode())
	}

	if err := tr.Cleanup(); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	rec, err := readResumeRecord(gitDir)
	if err != nil {
		t.Fatalf("readResumeRecord: %v", err)
	}
	if rec.URL != "https://example/p.pack" || rec.Filetype != AltResourcePack {
		t.Errorf("rec = %+v, want matching URL/Filetype", rec)
	}

	if _, err := os.Stat(gitDir); err != nil {
		t.Errorf("expected %q to survive LeaveResumable cleanup: %v", gitDir, err)
	}
}

func TestJunkTrackerAbandonPrimerReturnsToNone(t *testing.T) {
	tr := NewJunkTracker(nil)
	tr.EnterPrimerAdoption(AltResource{URL: "x", Filetype: AltResourcePack})
	tr.AbandonPrimer()
	if tr.Mode() != JunkNone {
		t.Errorf("mode = %v, want JunkNone after AbandonPrimer", tr.Mode())
	}
}

func TestJunkTrackerModeProgression(t *testing.T) {
	tr := NewJunkTracker(nil)
	if tr.Mode() != JunkNone {
		t.Fatalf("initial mode = %v, want JunkNone", tr.Mode())
	}

	tr.RefsInstalled()
	if tr.Mode() != JunkLeaveRepo {
		t.Fatalf("mode = %v, want JunkLeaveRepo", tr.Mode())
	}

	tr.Success()
	if tr.Mode() != JunkLeaveAll {
		t.Fatalf("mode = %v, want JunkLeaveAll", tr.Mode())
	}
}

func TestJunkTrackerSuccessNoopWithoutRefsInstalled(t *testing.T) {
	tr := NewJunkTracker(nil)
	tr.Success()
	if tr.Mode() != JunkNone {
		t.Errorf("mode = %v, want JunkNone (Success before RefsInstalled must not transition)", tr.Mode())
	}
}

func TestReadResumeRecordMissingIsValidationError(t *testing.T) {
	root := t.TempDir()
	if _, err := readResumeRecord(root); !errors.Is(err, ErrValidation) {
		t.Fatalf("readResumeRecord on a missing record: err = %v, want ErrValidation", err)
	}
}

func TestWriteReadResumeRecordRoundTrip(t *testing.T) {
	root := t.TempDir()
	want := ResumeRecord{URL: "https://example/p.pack", Filetype: AltResourcePack}
	if err := writeResumeRecord(root, want); err != nil {
		t.Fatalf("writeResumeRecord: %v", err)
	}
	got, err := readResumeRecord(root)
	if err != nil {
		t.Fatalf("readResumeRecord: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if err := removeResumeRecord(root); err != nil {
		t.Fatalf("removeResumeRecord: %v", err)
	}
	if _, err := readResumeRecord(root); err == nil {
		t.Fatal("expected an error after removing the resume record")
	}
}
