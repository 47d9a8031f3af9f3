package preflight

import (
	"context"
	"net/http"
	"time"

	"subgen/internal/config"
)

// minFreeBytes is the workspace headroom below which the free-space check
// fails. Extracted WAV audio for a feature-length video is a few GiB.
const minFreeBytes = 2 << 30

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes every check for the given config. The translation check
// only contacts the network for providers that offer a free probe.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Workspace directory", cfg.Paths.WorkspaceDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckFreeSpace("Workspace free space", cfg.Paths.WorkspaceDir, minFreeBytes),
	}
	if cfg.Paths.WatchDir != "" {
		results = append(results, CheckDirectoryAccess("Watch directory", cfg.Paths.WatchDir))
	}
	results = append(results, CheckModels(cfg)...)
	results = append(results, CheckTranslation(ctx, cfg.Translation, &http.Client{Timeout: 10 * time.Second}))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}
