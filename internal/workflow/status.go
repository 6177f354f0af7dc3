package workflow

import (
	"context"

	"lingocast/internal/stage"
)

// StageHealth asks every collaborator that can report readiness. Collaborators
// without a health check are omitted.
func (o *Orchestrator) StageHealth(ctx context.Context) map[string]stage.Health {
	named := []struct {
		name   string
		collab any
	}{
		{stage.Download.String(), o.collab.Downloader},
		{stage.Transcription.String(), o.collab.Transcriber},
		{stage.Translation.String(), o.collab.Translator},
		{stage.Rendering.String(), o.collab.Renderer},
	}
	health := make(map[string]stage.Health, len(named))
	for _, entry := range named {
		checker, ok := entry.collab.(stage.HealthChecker)
		if !ok || checker == nil {
			continue
		}
		health[entry.name] = checker.HealthCheck(ctx)
	}
	return health
}
