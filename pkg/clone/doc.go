// Package clone implements the orchestration core of a repository clone:
// destination planning, optional primer (alternate-resource) adoption,
// reference negotiation, object transfer, ref-table installation, HEAD
// resolution and working-tree checkout — including the on-disk discipline
// that makes an interrupted clone resumable.
//
// The implementation shells out to the system `git` binary for every
// repository mutation, in the style of [utilitywarehouse/git-mirror]; there
// is no vendored object-graph or packfile implementation here.
//
// # Logging
//
// Every exported entry point that runs git takes a *slog.Logger (nil falls
// back to slog.Default()) and logs git subprocess invocations at a 'trace' level
// (slog.Level(-8)), matching the verbosity convention used throughout this
// package's git subprocess helper.
//
// [utilitywarehouse/git-mirror]: https://github.com/utilitywarehouse/git-mirror
package clone
