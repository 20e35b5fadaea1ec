package clone

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults is the shape of an optional --defaults YAML file: fallback
// values for flags not given on the command line. Field names match the
// CLI flag names with dashes folded to underscores.
type Defaults struct {
	Bare           *bool    `yaml:"bare"`
	Mirror         *bool    `yaml:"mirror"`
	Local          *bool    `yaml:"local"`
	NoHardlinks    *bool    `yaml:"no_hardlinks"`
	Shared         *bool    `yaml:"shared"`
	Recursive      *bool    `yaml:"recursive"`
	Template       string   `yaml:"template"`
	References     []string `yaml:"reference"`
	Dissociate     *bool    `yaml:"dissociate"`
	Origin         string   `yaml:"origin"`
	UploadPack     string   `yaml:"upload_pack"`
	PrimeClonePath string   `yaml:"prime_clone"`
	Depth          int      `yaml:"depth"`
	SingleBranch   *bool    `yaml:"single_branch"`
	SeparateGitDir string   `yaml:"separate_git_dir"`
	ExtraConfig    []string `yaml:"config"`
	MetricsFile    string   `yaml:"metrics_file"`

	GithubAppID             string `yaml:"github_app_id"`
	GithubAppInstallationID string `yaml:"github_app_installation_id"`
	GithubAppPrivateKeyPath string `yaml:"github_app_private_key"`
	SSHKeyPath              string `yaml:"ssh_key"`
	SSHKnownHostsPath       string `yaml:"ssh_known_hosts"`
}

// LoadDefaults parses a YAML defaults file, mirroring the layered
// defaults-under-explicit-config convention this codebase's config loader
// uses for repository pool configuration.
func LoadDefaults(path string) (Defaults, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Defaults{}, fmt.Errorf("%w: unable to read defaults file: %v", ErrValidation, err)
	}

	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Defaults{}, fmt.Errorf("%w: unable to parse defaults file: %v", ErrValidation, err)
	}
	return d, nil
}

// ApplyDefaults fills in zero-valued fields of opts from d. Flags explicitly
// given on the command line always win; d only supplies fallbacks.
func ApplyDefaults(opts *Options, d Defaults) {
	if !opts.Bare && d.Bare != nil {
		opts.Bare = *d.Bare
	}
	if !opts.Mirror && d.Mirror != nil {
		opts.Mirror = *d.Mirror
	}
	if opts.Local == nil {
		opts.Local = d.Local
	}
	if !opts.NoHardlinks && d.NoHardlinks != nil {
		opts.NoHardlinks = *d.NoHardlinks
	}
	if !opts.Shared && d.Shared != nil {
		opts.Shared = *d.Shared
	}
	if !opts.Recursive && d.Recursive != nil {
		opts.Recursive = *d.Recursive
	}
	if opts.Template == "" {
		opts.Template = d.Template
	}
	if len(opts.References) == 0 {
		opts.References = d.References
	}
	if !opts.Dissociate && d.Dissociate != nil {
		opts.Dissociate = *d.Dissociate
	}
	if opts.Origin == "" {
		opts.Origin = d.Origin
	}
	if opts.UploadPack == "" {
		opts.UploadPack = d.UploadPack
	}
	if opts.PrimeClonePath == "" {
		opts.PrimeClonePath = d.PrimeClonePath
	}
	if opts.Depth == 0 {
		opts.Depth = d.Depth
	}
	if opts.SingleBranch == nil {
		opts.SingleBranch = d.SingleBranch
	}
	if opts.SeparateGitDir == "" {
		opts.SeparateGitDir = d.SeparateGitDir
	}
	if len(opts.ExtraConfig) == 0 {
		opts.ExtraConfig = d.ExtraConfig
	}
	if opts.MetricsFile == "" {
		opts.MetricsFile = d.MetricsFile
	}
	if opts.Auth.GithubAppID == "" {
		opts.Auth.GithubAppID = d.GithubAppID
	}
	if opts.Auth.GithubAppInstallationID == "" {
		opts.Auth.GithubAppInstallationID = d.GithubAppInstallationID
	}
	if opts.Auth.GithubAppPrivateKeyPath == "" {
		opts.Auth.GithubAppPrivateKeyPath = d.GithubAppPrivateKeyPath
	}
	if opts.Auth.SSHKeyPath == "" {
		opts.Auth.SSHKeyPath = d.SSHKeyPath
	}
	if opts.Auth.SSHKnownHostsPath == "" {
		opts.Auth.SSHKnownHostsPath = d.SSHKnownHostsPath
	}
}
