package clone

import "fmt"

// ConfigWriter materializes the remote definition into the destination's
// config store (spec §4.G).
type ConfigWriter struct {
	store ConfigStore
}

// NewConfigWriter returns a ConfigWriter backed by store.
func NewConfigWriter(store ConfigStore) *ConfigWriter {
	return &ConfigWriter{store: store}
}

// WriteRemote writes remote.<origin>.url, remote.<origin>.fetch, an
// optional remote.<origin>.mirror=true, and core.bare=true for bare
// destinations.
func (w *ConfigWriter) WriteRemote(origin, url string, fetchspec Refspec, mirror, bare bool) error {
	if err := w.store.Set(fmt.Sprintf("remote.%s.url", origin), url); err != nil {
		return fmt.Errorf("%w: %v", ErrRefStore, err)
	}
	if err := w.store.Set(fmt.Sprintf("remote.%s.fetch", origin), fetchspec.String()); err != nil {
		return fmt.Errorf("%w: %v", ErrRefStore, err)
	}
	if mirror {
		if err := w.store.Set(fmt.Sprintf("remote.%s.mirror", origin), "true"); err != nil {
			return fmt.Errorf("%w: %v", ErrRefStore, err)
		}
	}
	if bare {
		if err := w.store.Set("core.bare", "true"); err != nil {
			return fmt.Errorf("%w: %v", ErrRefStore, err)
		}
	}
	return nil
}

// WriteBranchTracking installs the tracking configuration for a local
// branch checked out from origin.
func (w *ConfigWriter) WriteBranchTracking(origin, branch string) error {
	if err := w.store.Set(fmt.Sprintf("branch.%s.remote", branch), origin); err != nil {
		return fmt.Errorf("%w: %v", ErrRefStore, err)
	}
	if err := w.store.Set(fmt.Sprintf("branch.%s.merge", branch), "refs/heads/"+branch); err != nil {
		return fmt.Errorf("%w: %v", ErrRefStore, err)
	}
	return nil
}

// WriteExtraConfig applies --config key=value overrides, in order.
func (w *ConfigWriter) WriteExtraConfig(kvs []string) error {
	for _, kv := range kvs {
		key, value, ok := splitKV(kv)
		if !ok {
			return fmt.Errorf("%w: malformed --config entry %q, want key=value", ErrValidation, kv)
		}
		if err := w.store.Set(key, value); err != nil {
			return fmt.Errorf("%w: %v", ErrRefStore, err)
		}
	}
	return nil
}

func splitKV(kv string) (string, string, bool) {
	for i := 0; i < len(kv); i++ {
		if kv[i] == '=' {
			return kv[:i], kv[i+1:], true
		}
	}
	return "", "", false
}

// BuildFetchRefspec computes the default fetch refspec for origin, mirrored
// against the source prefix (spec §4.G).
func BuildFetchRefspec(origin, srcPrefix string) Refspec {
	return Refspec{Src: srcPrefix + "*", Dst: "refs/remotes/" + origin + "/*", Force: true}
}

// BuildSingleBranchFetchRefspec computes the literal single-branch fetch
// refspec mapping for a branch or a tag.
func BuildSingleBranchFetchRefspec(origin, ref string, isTag bool) Refspec {
	if isTag {
		return Refspec{Src: ref, Dst: ref, Force: true}
	}
	branch := trimRefPrefix(ref, "refs/heads/")
	return Refspec{
		Src:   "refs/heads/" + branch,
		Dst:   "refs/remotes/" + origin + "/" + branch,
		Force: true,
	}
}

func trimRefPrefix(ref, prefix string) string {
	if len(ref) > len(prefix) && ref[:len(prefix)] == prefix {
		return ref[len(prefix):]
	}
	return ref
}
