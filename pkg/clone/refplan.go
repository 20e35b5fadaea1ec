package clone

import (
	"fmt"
	"path"
	"strings"
)

// RefPlanOptions configures the Reference Planner.
type RefPlanOptions struct {
	Refspec      Refspec
	TagRefspec   Refspec // applied in addition to Refspec unless Mirror
	SingleBranch bool
	Branch       string // explicit --branch value, may be ""
	Mirror       bool
}

// RefPlan is the result of planning: the mapped local ref set and the
// remote/local HEAD targets.
type RefPlan struct {
	Mapped   RefSet
	RemoteHEAD string // advertised HEAD target ref name, e.g. "refs/heads/main"
	OurHEAD    string // the ref this clone's local HEAD should point at; "" if undefined
}

// PlanRefs computes the mapped ref set and HEAD targets from the advertised
// RefSet, following spec §4.C.
func PlanRefs(advertised RefSet, opts RefPlanOptions) (RefPlan, error) {
	remoteHEAD := resolveRemoteHEAD(advertised)

	if opts.SingleBranch {
		return planSingleBranch(advertised, opts, remoteHEAD)
	}
	return planFullSet(advertised, opts, remoteHEAD)
}

func resolveRemoteHEAD(advertised RefSet) string {
	head, ok := advertised.HEAD()
	if !ok {
		return ""
	}
	// the transport resolves HEAD's symref target and stores it as
	// PeerName on the synthetic HEAD ref before ref planning runs
	if head.PeerName != "" {
		return head.PeerName
	}
	return ""
}

func planSingleBranch(advertised RefSet, opts RefPlanOptions, remoteHEAD string) (RefPlan, error) {
	var target string
	var targetIsTag bool

	if opts.Branch != "" {
		if _, ok := advertised.ByName("refs/heads/" + opts.Branch); ok {
			target = "refs/heads/" + opts.Branch
		} else if _, ok := advertised.ByName("refs/tags/" + opts.Branch); ok {
			target = "refs/tags/" + opts.Branch
			targetIsTag = true
		} else {
			return RefPlan{}, fmt.Errorf("%w: remote branch or tag %q not found", ErrEnvironment, opts.Branch)
		}
	} else {
		if remoteHEAD == "" {
			return RefPlan{}, fmt.Errorf("%w: remote did not advertise a HEAD to follow for single-branch clone", ErrEnvironment)
		}
		target = remoteHEAD
		targetIsTag = strings.HasPrefix(target, "refs/tags/")
	}

	ref, ok := advertised.ByName(target)
	if !ok {
		return RefPlan{}, fmt.Errorf("%w: advertised ref set does not contain %q", ErrEnvironment, target)
	}

	mapped := RefSet{}
	if peer, ok := applyRefspec(opts.Refspec, ref); ok {
		mapped = append(mapped, peer)
	}
	// materialize an explicit tag request via the tag refspec restricted to this ref
	if targetIsTag {
		if peer, ok := applyRefspec(opts.TagRefspec, ref); ok && !containsName(mapped, peer.Name) {
			mapped = append(mapped, peer)
		}
	}

	ourHEAD := opts.Branch
	if ourHEAD == "" {
		ourHEAD = remoteHEAD
	} else {
		ourHEAD = target
	}

	return RefPlan{Mapped: mapped, RemoteHEAD: remoteHEAD, OurHEAD: ourHEAD}, nil
}

func planFullSet(advertised RefSet, opts RefPlanOptions, remoteHEAD string) (RefPlan, error) {
	mapped := RefSet{}
	for _, ref := range advertised {
		if ref.Name == "HEAD" {
			continue
		}
		if peer, ok := applyRefspec(opts.Refspec, ref); ok {
			mapped = append(mapped, peer)
		}
	}

	if !opts.Mirror {
		for _, ref := range advertised {
			if !strings.HasPrefix(ref.Name, "refs/tags/") {
				continue
			}
			if peer, ok := applyRefspec(opts.TagRefspec, ref); ok && !containsName(mapped, peer.Name) {
				mapped = append(mapped, peer)
			}
		}
	}

	ourHEAD := remoteHEAD
	if opts.Branch != "" {
		if _, ok := advertised.ByName("refs/heads/" + opts.Branch); ok {
			ourHEAD = "refs/heads/" + opts.Branch
		} else if _, ok := advertised.ByName("refs/tags/" + opts.Branch); ok {
			ourHEAD = "refs/tags/" + opts.Branch
		} else {
			return RefPlan{}, fmt.Errorf("%w: remote branch or tag %q not found", ErrEnvironment, opts.Branch)
		}
	}
	return RefPlan{Mapped: mapped, RemoteHEAD: remoteHEAD, OurHEAD: ourHEAD}, nil
}

func containsName(set RefSet, name string) bool {
	_, ok := set.ByName(name)
	return ok
}

// applyRefspec maps a single advertised ref through rs's glob patterns,
// returning the ref with PeerName populated, or ok=false if rs does not
// match ref.Name.
func applyRefspec(rs Refspec, ref Ref) (Ref, bool) {
	if rs.Src == "" || rs.Dst == "" {
		return Ref{}, false
	}

	srcPrefix, srcIsGlob := strings.CutSuffix(rs.Src, "*")
	dstPrefix, dstIsGlob := strings.CutSuffix(rs.Dst, "*")

	if srcIsGlob != dstIsGlob {
		// malformed refspec; treat as non-matching rather than panicking
		return Ref{}, false
	}

	if !srcIsGlob {
		if ref.Name != rs.Src {
			return Ref{}, false
		}
		out := ref
		out.PeerName = rs.Dst
		return out, true
	}

	if !strings.HasPrefix(ref.Name, srcPrefix) {
		return Ref{}, false
	}
	suffix := strings.TrimPrefix(ref.Name, srcPrefix)
	out := ref
	out.PeerName = path.Join(dstPrefix, suffix)
	if strings.HasSuffix(rs.Dst, "*") {
		out.PeerName = dstPrefix + suffix
	}
	return out, true
}
