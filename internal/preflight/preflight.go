package preflight

import (
	"context"

	"callqa/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Upload directory", cfg.Paths.UploadDir),
		CheckRules(cfg.Paths.RulesPath),
	}
	if cfg.Paths.PoliciesDir != "" {
		results = append(results, CheckOptionalDirectory("Policies directory", cfg.Paths.PoliciesDir))
	}
	if cfg.LLM.APIKey != "" {
		results = append(results, CheckLLM(ctx, "Judge LLM", cfg.LLM))
	}
	return results
}
