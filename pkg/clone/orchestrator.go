package clone

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Options collects every flag the Orchestrator needs, corresponding
// one-to-one with spec §6's CLI surface.
type Options struct {
	Source         string
	Dest           string
	Bare           bool
	Mirror         bool
	Local          *bool // nil means "auto-detect"; non-nil is --local/--no-local
	NoHardlinks    bool
	Shared         bool
	Recursive      bool
	Template       string
	References     []string
	Dissociate     bool
	Origin         string
	Branch         string
	UploadPack     string
	PrimeClonePath string
	Depth          int
	SingleBranch   *bool // nil means "default"; spec: depth set => default true
	Resume         bool
	SeparateGitDir string
	ExtraConfig    []string
	NoCheckout     bool

	Auth AuthOptions

	MetricsFile string
}

// normalizeOptions applies the cross-flag defaults and validations of
// spec §4.F.1.
func normalizeOptions(o *Options) error {
	if o.Origin == "" {
		o.Origin = "origin"
	}
	if o.Mirror {
		o.Bare = true
	}
	if o.Bare && o.SeparateGitDir != "" {
		return fmt.Errorf("%w: --bare and --separate-git-dir are mutually exclusive", ErrValidation)
	}
	if o.Resume {
		if o.Dest == "" {
			return fmt.Errorf("%w: --resume requires a destination argument", ErrValidation)
		}
		if o.Bare || o.Mirror || o.Shared || o.SeparateGitDir != "" || len(o.References) > 0 {
			return fmt.Errorf("%w: --resume is mutually exclusive with every other flag except a single positional argument", ErrValidation)
		}
	}
	if o.Depth < 0 {
		return fmt.Errorf("%w: --depth must be >= 1", ErrValidation)
	}
	if o.Depth > 0 && o.SingleBranch == nil {
		yes := true
		o.SingleBranch = &yes
	}
	return nil
}

func (o Options) singleBranch() bool {
	return o.SingleBranch != nil && *o.SingleBranch
}

func (o Options) local() bool {
	return o.Local == nil || *o.Local
}

// Clone runs the full clone orchestration described in spec §4.F. It
// returns an error wrapping one of the taxonomy sentinels in errors.go.
// An error wrapping ErrCheckout is "partially recoverable": the repository
// is left usable and the caller should still exit non-zero.
func Clone(ctx context.Context, log *slog.Logger, opts Options, metrics *Metrics) error {
	if log == nil {
		log = slog.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	if err := normalizeOptions(&opts); err != nil {
		return err
	}

	tracker := NewJunkTracker(log)
	disarm := tracker.ArmSignals()
	defer disarm()

	result := "error"
	defer func() {
		metrics.RecordResult(result)
		if opts.Resume && result != "success" {
			metrics.RecordResumeOutcome("failed")
		}
		if opts.MetricsFile != "" {
			if err := metrics.WriteTextfile(opts.MetricsFile); err != nil {
				log.Warn("unable to write metrics textfile", "err", err)
			}
		}
	}()

	planStart := time.Now()
	layout, src, err := Plan(ctx, log, PlanOptions{
		Source:         opts.Source,
		Dest:           opts.Dest,
		Bare:           opts.Bare,
		Mirror:         opts.Mirror,
		SeparateGitDir: opts.SeparateGitDir,
		Resume:         opts.Resume,
	}, tracker)
	metrics.ObservePhase("plan", planStart)
	if err != nil {
		if cerr := tracker.Cleanup(); cerr != nil {
			log.Warn("cleanup after plan failure", "err", cerr)
		}
		return err
	}

	var remote RemoteConfig
	var refStore = NewGitRefStore(ctx, log, layout.GitDir)
	var cfgStore = NewGitConfigStore(ctx, log, layout.GitDir)
	var cfgWriter = NewConfigWriter(cfgStore)

	if opts.Resume {
		remote, err = recoverRemoteConfig(cfgStore, layout)
		if err != nil {
			return err
		}
		if url, ok, _ := cfgStore.Get(fmt.Sprintf("remote.%s.url", remote.Name)); ok {
			src.Raw = url
		}
	} else {
		if err := gitInitRepo(ctx, log, layout, opts.Template); err != nil {
			if cerr := tracker.Cleanup(); cerr != nil {
				log.Warn("cleanup after init failure", "err", cerr)
			}
			return err
		}
		remote = RemoteConfig{Name: opts.Origin, Bare: layout.Bare, Mirror: opts.Mirror, WorkTree: layout.WorkTree}

		if err := cfgWriter.WriteRemote(opts.Origin, src.Raw, Refspec{}, opts.Mirror, layout.Bare); err != nil {
			if cerr := tracker.Cleanup(); cerr != nil {
				log.Warn("cleanup after config write failure", "err", cerr)
			}
			return err
		}
		if err := cfgWriter.WriteExtraConfig(opts.ExtraConfig); err != nil {
			return err
		}

		if err := addReferenceRepos(layout.GitDir, opts.References); err != nil {
			if cerr := tracker.Cleanup(); cerr != nil {
				log.Warn("cleanup after reference repo failure", "err", cerr)
			}
			return err
		}
	}

	transport := NewGitTransport(log, src.Raw, layout.GitDir)
	if err := ApplyAuth(ctx, transport, opts.Auth); err != nil {
		return err
	}
	transport.SetOption("keep", boolStr(true))
	if opts.Depth > 0 {
		transport.SetOption("depth", fmt.Sprintf("%d", opts.Depth))
	}
	transport.SetOption("follow-tags", boolStr(opts.singleBranch()))
	if opts.UploadPack != "" {
		transport.SetOption("upload-pack", opts.UploadPack)
	}
	if opts.PrimeClonePath != "" {
		transport.SetOption("prime-clone", opts.PrimeClonePath)
	}
	defer transport.Disconnect()

	localEligible := src.Local && opts.local() && !IsShallowSource(src.Resolved)

	var primerResult PrimerResult
	if !localEligible {
		primerStart := time.Now()
		primerResult, err = AdoptPrimer(ctx, log, transport, refStore, layout.GitDir, opts.Origin, tracker, opts.Resume)
		metrics.ObservePhase("primer", primerStart)
		if err != nil {
			return err
		}
		if primerResult.Adopted {
			metrics.RecordPrimerOutcome("adopted")
		} else {
			metrics.RecordPrimerOutcome("skipped")
		}
	}

	advertised, err := transport.GetRefsList(ctx)
	if err != nil {
		if cerr := tracker.Cleanup(); cerr != nil {
			log.Warn("cleanup after ref list failure", "err", cerr)
		}
		return err
	}

	fetchspec := remote.fetchspecOrDefault(opts)
	tagRefspec := Refspec{Src: "refs/tags/*", Dst: "refs/tags/*", Force: true}

	plan, err := PlanRefs(advertised, RefPlanOptions{
		Refspec:      fetchspec,
		TagRefspec:   tagRefspec,
		SingleBranch: opts.singleBranch(),
		Branch:       opts.Branch,
		Mirror:       opts.Mirror,
	})
	if err != nil {
		return err
	}

	if !opts.Resume {
		if err := cfgWriter.WriteRemote(opts.Origin, src.Raw, fetchspec, opts.Mirror, layout.Bare); err != nil {
			return err
		}
	}

	fetchStart := time.Now()
	if err := transferObjects(ctx, log, layout, src, opts, transport, plan); err != nil {
		return err
	}
	metrics.ObservePhase("fetch", fetchStart)

	if primerResult.Adopted {
		if err := FinalizePrimer(refStore, primerResult); err != nil {
			log.Warn("primer finalization failed", "err", err)
		}
	}

	refInstallStart := time.Now()
	txn := refStore.BeginTransaction()
	for _, r := range plan.Mapped {
		if r.PeerName == "" || r.ObjectID == "" {
			continue
		}
		txn.Create(r.PeerName, r.ObjectID)
	}
	if err := txn.Commit(); err != nil {
		if cerr := tracker.Cleanup(); cerr != nil {
			log.Warn("cleanup after ref install failure", "err", cerr)
		}
		return err
	}

	if plan.RemoteHEAD != "" {
		if err := refStore.CreateSymref(fmt.Sprintf("refs/remotes/%s/HEAD", opts.Origin), remotePeerForHead(plan, opts.Origin)); err != nil {
			log.Warn("unable to create remote HEAD symref", "err", err)
		}
	}
	metrics.ObservePhase("ref_install", refInstallStart)

	if err := updateLocalHEAD(refStore, cfgWriter, layout, opts, plan); err != nil {
		if cerr := tracker.Cleanup(); cerr != nil {
			log.Warn("cleanup after head update failure", "err", cerr)
		}
		return err
	}

	if opts.Dissociate {
		if err := dissociate(ctx, log, layout.GitDir); err != nil {
			log.Warn("dissociate failed", "err", err)
		}
	}

	tracker.RefsInstalled()

	checkoutStart := time.Now()
	var checkoutErr error
	if !layout.Bare && !opts.NoCheckout {
		checkoutErr = checkoutWorkTree(ctx, log, layout, plan)
		if checkoutErr == nil && opts.Recursive {
			checkoutErr = updateSubmodules(ctx, log, layout.WorkTree)
		}
	}
	metrics.ObservePhase("checkout", checkoutStart)

	if checkoutErr != nil {
		result = "checkout_failed"
		return fmt.Errorf("%w: %v", ErrCheckout, checkoutErr)
	}

	tracker.Success()
	if err := removeResumeRecord(layout.GitDir); err != nil {
		log.Warn("unable to remove resume record", "err", err)
	}

	if opts.Resume {
		metrics.RecordResumeOutcome("completed")
	}
	result = "success"
	return nil
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func (rc RemoteConfig) fetchspecOrDefault(opts Options) Refspec {
	// Open question (spec §9): trust a recorded fetch pattern during
	// resume rather than re-validating it against current flags.
	if opts.Resume && rc.FetchPattern != "" {
		src, dst, ok := strings.Cut(strings.TrimPrefix(rc.FetchPattern, "+"), ":")
		if ok {
			return Refspec{Src: src, Dst: dst, Force: true}
		}
	}
	if opts.singleBranch() {
		isTag := strings.HasPrefix(opts.Branch, "refs/tags/")
		ref := opts.Branch
		if ref != "" && !strings.HasPrefix(ref, "refs/") {
			ref = "refs/heads/" + ref
		}
		return BuildSingleBranchFetchRefspec(opts.Origin, ref, isTag)
	}
	return BuildFetchRefspec(opts.Origin, "refs/heads/")
}

func remotePeerForHead(plan RefPlan, origin string) string {
	if ref, ok := plan.Mapped.ByName(plan.RemoteHEAD); ok && ref.PeerName != "" {
		return ref.PeerName
	}
	return "refs/remotes/" + origin + "/HEAD"
}

func transferObjects(ctx context.Context, log *slog.Logger, layout DestinationLayout, src SourceSpec, opts Options, transport Transport, plan RefPlan) error {
	if src.Local && opts.local() && !IsShallowSource(src.Resolved) {
		return LocalClone(LocalCloneOptions{
			SourceGitDir: src.Resolved,
			DestGitDir:   layout.GitDir,
			Shared:       opts.Shared,
			NoHardlinks:  opts.NoHardlinks,
		})
	}
	return transport.Fetch(ctx, plan.Mapped)
}

func gitInitRepo(ctx context.Context, log *slog.Logger, layout DestinationLayout, template string) error {
	args := []string{"init", "-q"}
	if layout.Bare {
		args = append(args, "--bare")
	}
	if template != "" {
		args = append(args, "--template", template)
	}
	switch {
	case layout.SeparateGitDir != "":
		args = append(args, "--separate-git-dir", layout.GitDir, layout.WorkTree)
	case layout.WorkTree != "":
		// creates <WorkTree>/.git, which is layout.GitDir
		args = append(args, layout.WorkTree)
	default:
		args = append(args, layout.GitDir)
	}
	_, err := runGitCommand(ctx, log, nil, "", args...)
	if err != nil {
		return fmt.Errorf("%w: unable to initialize destination repository: %v", ErrEnvironment, err)
	}
	return nil
}

func recoverRemoteConfig(store ConfigStore, layout DestinationLayout) (RemoteConfig, error) {
	info, err := store.RemoteInfo()
	if err != nil {
		return RemoteConfig{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	rc := RemoteConfig{Name: "origin", WorkTree: layout.WorkTree, Bare: layout.Bare}
	for k, v := range info {
		switch {
		case strings.HasSuffix(k, ".fetch"):
			rc.FetchPattern = v
			rc.Name = strings.TrimSuffix(strings.TrimPrefix(k, "remote."), ".fetch")
		case k == "core.bare":
			rc.Bare = v == "true"
		case strings.HasSuffix(k, ".mirror"):
			rc.Mirror = v == "true"
		}
	}
	return rc, nil
}

func addReferenceRepos(destGitDir string, refs []string) error {
	for _, ref := range refs {
		refGitDir := ref
		if fileExists(filepath.Join(ref, ".git")) && !dirExists(filepath.Join(ref, ".git")) {
			target, err := FollowGitdirIndirection(filepath.Join(ref, ".git"))
			if err != nil {
				return fmt.Errorf("%w: %v", ErrEnvironment, err)
			}
			refGitDir = target
		} else if dirExists(filepath.Join(ref, ".git")) {
			refGitDir = filepath.Join(ref, ".git")
		}

		abs, err := filepath.Abs(refGitDir)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrEnvironment, err)
		}

		if strings.Contains(filepath.ToSlash(abs), "/worktrees/") {
			return fmt.Errorf("%w: reference repository %q is a linked working tree, not a repository", ErrEnvironment, ref)
		}
		if IsShallowSource(abs) {
			return fmt.Errorf("%w: reference repository %q is shallow", ErrEnvironment, ref)
		}
		if fileExists(filepath.Join(abs, "info", "grafts")) {
			return fmt.Errorf("%w: reference repository %q has grafts", ErrEnvironment, ref)
		}

		if err := appendAlternates(filepath.Join(destGitDir, "objects"), []string{filepath.Join(abs, "objects")}); err != nil {
			return fmt.Errorf("%w: %v", ErrEnvironment, err)
		}
	}
	return nil
}

func updateLocalHEAD(refStore RefStore, cfgWriter *ConfigWriter, layout DestinationLayout, opts Options, plan RefPlan) error {
	target := plan.OurHEAD
	if target == "" {
		target = plan.RemoteHEAD
	}

	switch {
	case target == "":
		return nil

	case strings.HasPrefix(target, "refs/heads/"):
		// create the local branch at the advertised tip before pointing HEAD at it
		if ref, ok := plan.Mapped.ByName(target); ok && ref.ObjectID != "" {
			if err := refStore.UpdateRef(target, ref.ObjectID, false); err != nil {
				return err
			}
		}
		if err := refStore.CreateSymref("HEAD", target); err != nil {
			return err
		}
		branch := strings.TrimPrefix(target, "refs/heads/")
		return cfgWriter.WriteBranchTracking(opts.Origin, branch)

	default:
		ref, ok := plan.Mapped.ByName(target)
		if !ok || ref.ObjectID == "" {
			return nil
		}
		return refStore.UpdateRef("HEAD", ref.ObjectID, true)
	}
}

func dissociate(ctx context.Context, log *slog.Logger, gitDir string) error {
	args := []string{"--git-dir", gitDir, "repack", "-a", "-d"}
	if _, err := runGitCommand(ctx, log, nil, "", args...); err != nil {
		return fmt.Errorf("%w: %v", ErrEnvironment, err)
	}
	return os.Remove(filepath.Join(gitDir, "objects", "info", "alternates"))
}

func checkoutWorkTree(ctx context.Context, log *slog.Logger, layout DestinationLayout, plan RefPlan) error {
	args := []string{"--git-dir", layout.GitDir, "--work-tree", layout.WorkTree, "checkout", "-q", "HEAD", "--"}
	if _, err := runGitCommand(ctx, log, nil, layout.WorkTree, args...); err != nil {
		return err
	}
	return nil
}

func updateSubmodules(ctx context.Context, log *slog.Logger, workTree string) error {
	args := []string{"submodule", "update", "--init", "--recursive"}
	_, err := runGitCommand(ctx, log, nil, workTree, args...)
	return err
}
