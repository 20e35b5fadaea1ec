package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/go-clonecore/gitclone/pkg/clone"
)

var log = slog.Default()

func main() {
	cmd := buildCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Error("exiting", "err", err)
		os.Exit(1)
	}
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:      "gitclone",
		Usage:     "resumable, primer-aware repository clone",
		ArgsUsage: "<repo> [<dir>]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "defaults", Usage: "YAML file supplying fallback values for flags not given on the command line"},

			&cli.BoolFlag{Name: "bare", Usage: "create a bare repository"},
			&cli.BoolFlag{Name: "mirror", Usage: "create a mirror clone (implies --bare)"},
			&cli.BoolFlag{Name: "local", Usage: "force the local-clone path for a local source", Value: true},
			&cli.BoolFlag{Name: "no-hardlinks", Usage: "copy objects instead of hardlinking them on the local-clone path"},
			&cli.BoolFlag{Name: "shared", Usage: "point at the source's objects via alternates instead of copying"},
			&cli.BoolFlag{Name: "recursive", Aliases: []string{"recurse-submodules"}, Usage: "initialize submodules after checkout"},
			&cli.StringFlag{Name: "template", Usage: "template directory passed to git init"},
			&cli.StringSliceFlag{Name: "reference", Usage: "borrow objects from a local reference repository (repeatable)"},
			&cli.BoolFlag{Name: "dissociate", Usage: "repack and drop alternates after the clone completes"},
			&cli.StringFlag{Name: "origin", Value: "origin", Usage: "name to give the remote"},
			&cli.StringFlag{Name: "branch", Usage: "checkout this branch or tag instead of the remote's HEAD"},
			&cli.StringFlag{Name: "upload-pack", Usage: "path of the remote git-upload-pack program"},
			&cli.StringFlag{Name: "prime-clone", Usage: "override the advertised prime-clone program path"},
			&cli.IntFlag{Name: "depth", Usage: "create a shallow clone with a history truncated to this many commits"},
			&cli.BoolFlag{Name: "single-branch", Usage: "clone only the tip of a single branch"},
			&cli.BoolFlag{Name: "resume", Usage: "resume an interrupted clone at <dir>"},
			&cli.StringFlag{Name: "separate-git-dir", Usage: "place the git directory elsewhere and link it from <dir>/.git"},
			&cli.StringSliceFlag{Name: "config", Usage: "set a config key=value in the new repository (repeatable)"},
			&cli.BoolFlag{Name: "ipv4", Aliases: []string{"4"}, Usage: "use IPv4 addresses only"},
			&cli.BoolFlag{Name: "ipv6", Aliases: []string{"6"}, Usage: "use IPv6 addresses only"},
			&cli.BoolFlag{Name: "progress", Usage: "report transfer progress"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "verbose logging"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "suppress non-error output"},
			&cli.BoolFlag{Name: "no-checkout", Aliases: []string{"n"}, Usage: "don't populate the working tree"},

			&cli.StringFlag{Name: "metrics-file", Usage: "write Prometheus text-format metrics to this path after the run"},
			&cli.StringFlag{Name: "github-app-id", Sources: cli.EnvVars("GITCLONE_GITHUB_APP_ID"), Usage: "GitHub App ID for minting an installation token"},
			&cli.StringFlag{Name: "github-app-installation-id", Sources: cli.EnvVars("GITCLONE_GITHUB_APP_INSTALLATION_ID")},
			&cli.StringFlag{Name: "github-app-private-key", Sources: cli.EnvVars("GITCLONE_GITHUB_APP_PRIVATE_KEY")},
			&cli.StringFlag{Name: "ssh-key", Sources: cli.EnvVars("GITCLONE_SSH_KEY")},
			&cli.StringFlag{Name: "ssh-known-hosts", Sources: cli.EnvVars("GITCLONE_SSH_KNOWN_HOSTS")},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("gitclone: missing <repo> argument")
	}

	opts := clone.Options{
		Bare:           cmd.Bool("bare"),
		Mirror:         cmd.Bool("mirror"),
		NoHardlinks:    cmd.Bool("no-hardlinks"),
		Shared:         cmd.Bool("shared"),
		Recursive:      cmd.Bool("recursive"),
		Template:       cmd.String("template"),
		References:     cmd.StringSlice("reference"),
		Dissociate:     cmd.Bool("dissociate"),
		Branch:         cmd.String("branch"),
		UploadPack:     cmd.String("upload-pack"),
		PrimeClonePath: cmd.String("prime-clone"),
		Depth:          int(cmd.Int("depth")),
		Resume:         cmd.Bool("resume"),
		SeparateGitDir: cmd.String("separate-git-dir"),
		ExtraConfig:    cmd.StringSlice("config"),
		NoCheckout:     cmd.Bool("no-checkout"),
		MetricsFile:    cmd.String("metrics-file"),
		Auth: clone.AuthOptions{
			GithubAppID:             cmd.String("github-app-id"),
			GithubAppInstallationID: cmd.String("github-app-installation-id"),
			GithubAppPrivateKeyPath: cmd.String("github-app-private-key"),
			SSHKeyPath:              cmd.String("ssh-key"),
			SSHKnownHostsPath:       cmd.String("ssh-known-hosts"),
		},
	}

	// --resume takes a single positional argument: the destination to
	// resume, not a source (the remote is recovered from its config).
	if opts.Resume {
		opts.Dest = cmd.Args().Get(0)
	} else {
		opts.Source = cmd.Args().Get(0)
		opts.Dest = cmd.Args().Get(1)
	}

	// left empty when not given so a --defaults file can supply it;
	// normalizeOptions falls back to "origin"
	if cmd.IsSet("origin") {
		opts.Origin = cmd.String("origin")
	}
	if cmd.IsSet("local") {
		v := cmd.Bool("local")
		opts.Local = &v
	}
	if cmd.IsSet("single-branch") {
		v := cmd.Bool("single-branch")
		opts.SingleBranch = &v
	}

	if df := cmd.String("defaults"); df != "" {
		d, err := clone.LoadDefaults(df)
		if err != nil {
			return err
		}
		clone.ApplyDefaults(&opts, d)
	}

	level := slog.LevelInfo
	switch {
	case cmd.Bool("verbose"):
		level = slog.Level(-8)
	case cmd.Bool("quiet"):
		level = slog.LevelWarn
	}
	log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	metrics := clone.NewMetrics()
	if err := clone.Clone(ctx, log, opts, metrics); err != nil {
		return err
	}
	return nil
}
