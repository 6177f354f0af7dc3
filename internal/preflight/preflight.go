package preflight

import (
	"context"
	"fmt"
	"os"

	"lingocast/internal/config"
)

// Result reports the outcome of a single readiness check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the environment checks for the given config. The LLM check
// only runs when includeAPI is set because it spends a request.
func RunAll(ctx context.Context, cfg *config.Config, includeAPI bool) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Checkpoint directory", cfg.Paths.CheckpointDir),
	}

	// The output directory is created per job, so only an existing one is checked.
	if _, err := os.Stat(cfg.Paths.OutputDir); err == nil {
		results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir))
	}

	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available || status.Optional}
		switch {
		case status.Available:
			result.Detail = status.Path
		case status.Optional:
			result.Detail = fmt.Sprintf("%s (optional)", status.Detail)
		default:
			result.Detail = status.Detail
		}
		results = append(results, result)
	}

	if includeAPI {
		results = append(results, CheckLLM(ctx, "Translation API", cfg.Translation))
	}
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
