package app

import (
	"context"
	"errors"
	"fmt"

	"courtline/internal/config"
	"courtline/internal/repo"
)

// ResolveCase picks the case a command applies to. An explicit override wins;
// otherwise the workspace must hold exactly one case.
func ResolveCase(ctx context.Context, caseOverride string, r repo.Repo) (string, error) {
	if caseOverride != "" {
		if _, err := r.GetCase(ctx, caseOverride); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return "", fmt.Errorf("case %s not found", caseOverride)
			}
			return "", err
		}
		return caseOverride, nil
	}
	c, err := r.SingleCase(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", fmt.Errorf("no case in this workspace; run `courtline case new`")
		}
		return "", err
	}
	return c.ID, nil
}

// LoadConfig reads courtline.yml from the workspace, falling back to the
// built-in defaults when the file is absent.
func LoadConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(workspace)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", config.Path(workspace), err)
	}
	return cfg, nil
}
