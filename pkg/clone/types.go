package clone

import "fmt"

// SourceSpec describes where a clone is coming from: either a remote
// identifier (URL-like or scp-like) or a local filesystem path. Bundle
// distinguishes a bundle file from a repository directory for local sources.
type SourceSpec struct {
	Raw      string // the source exactly as given on the command line
	Local    bool   // true if Raw resolved to a local filesystem path
	Bundle   bool   // true if the local source is a bundle file, not a repo dir
	Resolved string // for local sources, the path that was found to exist
}

// JunkMode is the cleanup policy the Junk Tracker applies on process exit.
type JunkMode int

const (
	// JunkNone removes every tracked artifact on exit.
	JunkNone JunkMode = iota
	// JunkLeaveResumable persists a ResumeRecord and leaves artifacts in place.
	JunkLeaveResumable
	// JunkLeaveRepo leaves the repository (refs/HEAD installed, checkout may have failed).
	JunkLeaveRepo
	// JunkLeaveAll leaves everything; the clone completed successfully.
	JunkLeaveAll
)

func (m JunkMode) String() string {
	switch m {
	case JunkNone:
		return "none"
	case JunkLeaveResumable:
		return "leave-resumable"
	case JunkLeaveRepo:
		return "leave-repo"
	case JunkLeaveAll:
		return "leave-all"
	default:
		return "unknown"
	}
}

// DestinationLayout is the immutable plan produced by the Destination
// Planner. Invariant: Bare implies WorkTree == "". Invariant: IsResume
// implies GitDir pre-exists and was produced by a prior invocation.
type DestinationLayout struct {
	GitDir          string // where metadata lives
	WorkTree        string // optional; "" for bare
	Bare            bool
	SeparateGitDir  string // optional override of GitDir's physical location
	IsResume        bool
	Origin          string // remote name, e.g. "origin"
}

// validate panics on a DestinationLayout invariant violation. Invariant
// violations here indicate a bug in this module's own planning code, never
// user input — bad user input is rejected earlier as a ValidationError.
func (d DestinationLayout) validate() {
	if d.Bare && d.WorkTree != "" {
		panic(fmt.Sprintf("clone: invariant violated: bare destination %q has a work tree %q", d.GitDir, d.WorkTree))
	}
}

// Ref is a single advertised or mapped reference.
type Ref struct {
	Name     string // remote-advertised name, e.g. "refs/heads/main"
	ObjectID string // hex object id; empty means "unborn"/null
	PeerName string // local name after refspec mapping; "" means not adopted
}

// RefSet is an ordered sequence of Refs as received from the remote. The
// first ref named "HEAD" (if any) acts as the symbolic-ref pointer. Name is
// unique within the set.
type RefSet []Ref

// HEAD returns the advertised HEAD ref, if any.
func (rs RefSet) HEAD() (Ref, bool) {
	for _, r := range rs {
		if r.Name == "HEAD" {
			return r, true
		}
	}
	return Ref{}, false
}

// ByName returns the ref with the given name, if present.
func (rs RefSet) ByName(name string) (Ref, bool) {
	for _, r := range rs {
		if r.Name == name {
			return r, true
		}
	}
	return Ref{}, false
}

// Refspec is a single `+<src>:<dst>` mapping rule.
type Refspec struct {
	Src   string // glob-style source pattern, e.g. "refs/heads/*"
	Dst   string // glob-style destination pattern, e.g. "refs/remotes/origin/*"
	Force bool   // '+' prefix: allow non-fast-forward updates
}

func (rs Refspec) String() string {
	prefix := ""
	if rs.Force {
		prefix = "+"
	}
	return fmt.Sprintf("%s%s:%s", prefix, rs.Src, rs.Dst)
}

// AltResourceType enumerates the filetypes the primer subsystem can dispatch.
type AltResourceType string

const (
	AltResourcePack     AltResourceType = "pack"
	AltResourceUnknown  AltResourceType = ""
)

// AltResource describes an out-of-band primer artifact advertised by the
// remote.
type AltResource struct {
	URL      string
	Filetype AltResourceType
}

// ResumeRecord is the on-disk record of an in-progress primer adoption. Its
// presence in GitDir implies LeaveResumable cleanup is safe to re-enter.
type ResumeRecord struct {
	URL      string
	Filetype AltResourceType
}

// resumeRecordFile is the well-known path, relative to GitDir, where a
// ResumeRecord is persisted.
const resumeRecordFile = "resumable"

// RemoteConfig is recovered from an existing destination during resume.
type RemoteConfig struct {
	Name         string
	FetchPattern string
	WorkTree     string
	Bare         bool
	Mirror       bool
}
