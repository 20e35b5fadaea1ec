package clone

import "testing"

func TestDestinationLayoutValidatePanicsOnBareWithWorkTree(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected validate to panic for a bare layout with a work tree")
		}
	}()
	DestinationLayout{Bare: true, WorkTree: "/somewhere"}.validate()
}

func TestDestinationLayoutValidateOK(t *testing.T) {
	DestinationLayout{Bare: true}.validate()
	DestinationLayout{Bare: false, WorkTree: "/somewhere"}.validate()
}

func TestJunkModeString(t *testing.T) {
	tests := []struct {
		mode JunkMode
		want string
	}{
		{JunkNone, "none"},
		{JunkLeaveResumable, "leave-resumable"},
		{JunkLeaveRepo, "leave-repo"},
		{JunkLeaveAll, "leave-all"},
		{JunkMode(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("JunkMode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestRefspecString(t *testing.T) {
	tests := []struct {
		rs   Refspec
		want string
	}{
		{Refspec{Src: "refs/heads/*", Dst: "refs/remotes/origin/*", Force: true}, "+refs/heads/*:refs/remotes/origin/*"},
		{Refspec{Src: "refs/heads/main", Dst: "refs/heads/main"}, "refs/heads/main:refs/heads/main"},
	}
	for _, tt := range tests {
		if got := tt.rs.String(); got != tt.want {
			t.Errorf("Refspec.String() = %q, want %q", got, tt.want)
		}
	}
}

func TestRefSetLookups(t *testing.T) {
	rs := RefSet{
		{Name: "HEAD", PeerName: "refs/heads/main"},
		{Name: "refs/heads/main", ObjectID: "aaa1"},
	}

	head, ok := rs.HEAD()
	if !ok || head.PeerName != "refs/heads/main" {
		t.Fatalf("HEAD() = %+v, %v", head, ok)
	}

	main, ok := rs.ByName("refs/heads/main")
	if !ok || main.ObjectID != "aaa1" {
		t.Fatalf("ByName(refs/heads/main) = %+v, %v", main, ok)
	}

	if _, ok := rs.ByName("refs/heads/missing"); ok {
		t.Error("ByName should report false for a name not in the set")
	}
}
