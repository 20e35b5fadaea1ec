package clone

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func advertisedFixture() RefSet {
	return RefSet{
		{Name: "refs/heads/main", ObjectID: "aaa1"},
		{Name: "refs/heads/feature/x", ObjectID: "bbb2"},
		{Name: "refs/tags/v1.0.0", ObjectID: "ccc3"},
		{Name: "HEAD", PeerName: "refs/heads/main"},
	}
}

func TestPlanRefsFullSet(t *testing.T) {
	plan, err := PlanRefs(advertisedFixture(), RefPlanOptions{
		Refspec:    Refspec{Src: "refs/heads/*", Dst: "refs/remotes/origin/*", Force: true},
		TagRefspec: Refspec{Src: "refs/tags/*", Dst: "refs/tags/*", Force: true},
	})
	if err != nil {
		t.Fatalf("PlanRefs: %v", err)
	}

	want := RefSet{
		{Name: "refs/heads/main", ObjectID: "aaa1", PeerName: "refs/remotes/origin/main"},
		{Name: "refs/heads/feature/x", ObjectID: "bbb2", PeerName: "refs/remotes/origin/feature/x"},
		{Name: "refs/tags/v1.0.0", ObjectID: "ccc3", PeerName: "refs/tags/v1.0.0"},
	}
	if diff := cmp.Diff(want, plan.Mapped); diff != "" {
		t.Errorf("Mapped mismatch (-want +got):\n%s", diff)
	}
	if plan.RemoteHEAD != "refs/heads/main" {
		t.Errorf("RemoteHEAD = %q, want refs/heads/main", plan.RemoteHEAD)
	}
	if plan.OurHEAD != "refs/heads/main" {
		t.Errorf("OurHEAD = %q, want refs/heads/main", plan.OurHEAD)
	}
}

func TestPlanRefsMirrorSkipsSeparateTagPass(t *testing.T) {
	plan, err := PlanRefs(advertisedFixture(), RefPlanOptions{
		Refspec:    Refspec{Src: "refs/*", Dst: "refs/*", Force: true},
		TagRefspec: Refspec{Src: "refs/tags/*", Dst: "refs/tags/*", Force: true},
		Mirror:     true,
	})
	if err != nil {
		t.Fatalf("PlanRefs: %v", err)
	}
	count := 0
	for _, r := range plan.Mapped {
		if r.Name == "refs/tags/v1.0.0" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("tag ref should appear exactly once under mirror, got %d", count)
	}
}

func TestPlanRefsSingleBranchByName(t *testing.T) {
	plan, err := PlanRefs(advertisedFixture(), RefPlanOptions{
		Refspec:      Refspec{Src: "refs/heads/*", Dst: "refs/remotes/origin/*", Force: true},
		TagRefspec:   Refspec{Src: "refs/tags/*", Dst: "refs/tags/*", Force: true},
		SingleBranch: true,
		Branch:       "feature/x",
	})
	if err != nil {
		t.Fatalf("PlanRefs: %v", err)
	}
	if len(plan.Mapped) != 1 || plan.Mapped[0].Name != "refs/heads/feature/x" {
		t.Fatalf("Mapped = %+v, want exactly refs/heads/feature/x", plan.Mapped)
	}
	if plan.OurHEAD != "refs/heads/feature/x" {
		t.Errorf("OurHEAD = %q, want refs/heads/feature/x", plan.OurHEAD)
	}
}

func TestPlanRefsSingleBranchUnknown(t *testing.T) {
	_, err := PlanRefs(advertisedFixture(), RefPlanOptions{
		Refspec:      Refspec{Src: "refs/heads/*", Dst: "refs/remotes/origin/*", Force: true},
		SingleBranch: true,
		Branch:       "does-not-exist",
	})
	if err == nil {
		t.Fatal("expected an error for an unknown branch/tag")
	}
}

func TestPlanRefsSingleBranchFollowsHEAD(t *testing.T) {
	plan, err := PlanRefs(advertisedFixture(), RefPlanOptions{
		Refspec:      Refspec{Src: "refs/heads/*", Dst: "refs/remotes/origin/*", Force: true},
		SingleBranch: true,
	})
	if err != nil {
		t.Fatalf("PlanRefs: %v", err)
	}
	if len(plan.Mapped) != 1 || plan.Mapped[0].Name != "refs/heads/main" {
		t.Fatalf("Mapped = %+v, want exactly refs/heads/main", plan.Mapped)
	}
}

func TestApplyRefspec(t *testing.T) {
	tests := []struct {
		name string
		rs   Refspec
		ref  Ref
		want string
		ok   bool
	}{
		{"glob match", Refspec{Src: "refs/heads/*", Dst: "refs/remotes/origin/*"}, Ref{Name: "refs/heads/main"}, "refs/remotes/origin/main", true},
		{"glob no match", Refspec{Src: "refs/heads/*", Dst: "refs/remotes/origin/*"}, Ref{Name: "refs/tags/v1"}, "", false},
		{"literal match", Refspec{Src: "refs/heads/main", Dst: "refs/heads/main"}, Ref{Name: "refs/heads/main"}, "refs/heads/main", true},
		{"literal no match", Refspec{Src: "refs/heads/main", Dst: "refs/heads/main"}, Ref{Name: "refs/heads/dev"}, "", false},
		{"empty refspec", Refspec{}, Ref{Name: "refs/heads/main"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := applyRefspec(tt.rs, tt.ref)
			if ok != tt.ok {
				t.Fatalf("applyRefspec ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.PeerName != tt.want {
				t.Errorf("PeerName = %q, want %q", got.PeerName, tt.want)
			}
		})
	}
}
