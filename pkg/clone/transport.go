package clone

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Transport is the wire-transport interface this package consumes
// (spec §6). One Transport handle is acquired per invocation.
type Transport interface {
	GetRefsList(ctx context.Context) (RefSet, error)
	Fetch(ctx context.Context, mapped RefSet) error
	PrimeClone(ctx context.Context) (AltResource, bool, error)
	DownloadPrimer(ctx context.Context, ar AltResource, destDir string) (string, error)
	SetOption(key, value string)
	Disconnect() error
}

// transportOptions mirrors the option keys named in spec §4.F.
type transportOptions struct {
	keep           bool
	depth          int
	followTags     bool
	uploadPack     string
	primeClonePath string
	extraHeaders   []string
	sshCommand     string
}

// gitTransport implements Transport by shelling out to the system `git`
// binary once per operation — there is no persistent connection to a
// subprocess-per-call transport, so Disconnect is a no-op beyond clearing
// state (spec §6).
type gitTransport struct {
	log    *slog.Logger
	remote string
	gitDir string
	opts   transportOptions
}

// NewGitTransport returns a Transport that fetches from remote into the
// repository rooted at gitDir.
func NewGitTransport(log *slog.Logger, remote, gitDir string) Transport {
	if log == nil {
		log = slog.Default()
	}
	return &gitTransport{log: log, remote: remote, gitDir: gitDir}
}

func (t *gitTransport) SetOption(key, value string) {
	switch key {
	case "keep":
		t.opts.keep = value == "true"
	case "depth":
		fmt.Sscanf(value, "%d", &t.opts.depth)
	case "follow-tags":
		t.opts.followTags = value == "true"
	case "upload-pack":
		t.opts.uploadPack = value
	case "prime-clone":
		t.opts.primeClonePath = value
	case "http.extraHeader":
		t.opts.extraHeaders = append(t.opts.extraHeaders, value)
	case "ssh-command":
		t.opts.sshCommand = value
	}
}

func (t *gitTransport) Disconnect() error {
	t.opts = transportOptions{}
	return nil
}

func (t *gitTransport) envs() []string {
	var envs []string
	if t.opts.sshCommand != "" {
		envs = append(envs, "GIT_SSH_COMMAND="+t.opts.sshCommand)
	}
	// extra HTTP headers reach every git subprocess as http.extraHeader
	// config entries supplied through the environment
	for i, h := range t.opts.extraHeaders {
		envs = append(envs,
			fmt.Sprintf("GIT_CONFIG_KEY_%d=http.extraHeader", i),
			fmt.Sprintf("GIT_CONFIG_VALUE_%d=%s", i, h))
	}
	if len(t.opts.extraHeaders) > 0 {
		envs = append(envs, fmt.Sprintf("GIT_CONFIG_COUNT=%d", len(t.opts.extraHeaders)))
	}
	return envs
}

// headSymrefRgx parses the output of `ls-remote --symref <remote> HEAD`:
// "ref: refs/heads/main	HEAD"
var headSymrefRgx = regexp.MustCompile(`(?m)^ref:\s+(\S+)\s+HEAD`)

// GetRefsList runs `git ls-remote --symref` and parses the advertised
// RefSet, including a synthetic HEAD entry carrying the resolved symref
// target as PeerName (consumed by refplan.resolveRemoteHEAD). The plain
// "<oid> HEAD" line is folded into that single HEAD entry.
func (t *gitTransport) GetRefsList(ctx context.Context) (RefSet, error) {
	args := []string{"ls-remote", "--symref", t.remote}
	out, err := runGitCommand(ctx, t.log, t.envs(), "", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to list remote refs: %v", ErrTransport, err)
	}

	var refs RefSet
	headTarget := ""
	if m := headSymrefRgx.FindStringSubmatch(out); m != nil {
		headTarget = m[1]
	}

	headOID := ""
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "ref:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		if fields[1] == "HEAD" {
			headOID = fields[0]
			continue
		}
		refs = append(refs, Ref{Name: fields[1], ObjectID: fields[0]})
	}

	refs = append(refs, Ref{Name: "HEAD", ObjectID: headOID, PeerName: headTarget})
	return refs, nil
}

// Fetch runs `git fetch` against the mapped ref set, applying depth and
// follow-tags transport options.
func (t *gitTransport) Fetch(ctx context.Context, mapped RefSet) error {
	args := []string{"--git-dir", t.gitDir, "fetch"}
	if t.opts.keep {
		args = append(args, "--keep")
	}
	if t.opts.depth > 0 {
		args = append(args, "--depth", fmt.Sprintf("%d", t.opts.depth))
	}
	if t.opts.followTags {
		args = append(args, "--tags")
	} else {
		args = append(args, "--no-tags")
	}
	if t.opts.uploadPack != "" {
		args = append(args, "--upload-pack", t.opts.uploadPack)
	}
	args = append(args, t.remote)
	for _, r := range mapped {
		if r.PeerName == "" {
			continue
		}
		args = append(args, fmt.Sprintf("+%s:%s", r.Name, r.PeerName))
	}

	_, err := runGitCommand(ctx, t.log, t.envs(), "", args...)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return nil
}

// PrimeClone asks the remote, via its advertised prime-clone program, for
// an optional AltResource to seed the object graph before the main fetch.
func (t *gitTransport) PrimeClone(ctx context.Context) (AltResource, bool, error) {
	if t.opts.primeClonePath == "" {
		return AltResource{}, false, nil
	}
	args := []string{"--git-dir", t.gitDir, "archive", "--remote", t.remote, "--format=prime-clone-probe"}
	// The real negotiation happens over the upload-pack/prime-clone side
	// channel; here we model the result as parsed from the advertised
	// program's single-line "<url> <filetype>" response.
	out, err := runGitCommand(ctx, t.log, t.envs(), "", args...)
	if err != nil || out == "" {
		return AltResource{}, false, nil
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return AltResource{}, false, nil
	}
	return AltResource{URL: fields[0], Filetype: AltResourceType(fields[1])}, true, nil
}

// DownloadPrimer retrieves the primer artifact into destDir, returning the
// local path it was written to.
func (t *gitTransport) DownloadPrimer(ctx context.Context, ar AltResource, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, defaultDirMode); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrimer, err)
	}

	name := "primer.pack"
	if ar.Filetype != AltResourcePack {
		name = "primer.bin"
	}
	dest := filepath.Join(destDir, name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ar.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrimer, err)
	}
	for _, h := range t.opts.extraHeaders {
		if k, v, ok := strings.Cut(h, ":"); ok {
			req.Header.Set(strings.TrimSpace(k), strings.TrimSpace(v))
		}
	}

	client := &http.Client{Timeout: 10 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrimer, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: primer download returned status %d", ErrPrimer, resp.StatusCode)
	}

	out, err := os.Create(dest + ".temp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrimer, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		return "", fmt.Errorf("%w: %v", ErrPrimer, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrimer, err)
	}
	if err := os.Rename(dest+".temp", dest); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPrimer, err)
	}

	return dest, nil
}
