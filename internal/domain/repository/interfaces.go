package repository

import (
	"context"
	"time"

	"FinScreen/internal/domain/models"
)

// ResultArchive stores the rows of finished runs.
type ResultArchive interface {
	Archive(ctx context.Context, summary models.RunSummary, rows []models.ResultRow) error
}

// RunPublisher announces finished runs to other systems.
type RunPublisher interface {
	PublishRun(ctx context.Context, summary models.RunSummary) error
}

// Metrics records screening telemetry.
type Metrics interface {
	RecordScreenRun(outcome string, rows int, d time.Duration)
	RecordError(kind string)
}

// LoginRedirector sends the user back to the login flow once the session
// is gone.
type LoginRedirector interface {
	RedirectToLogin(ctx context.Context, reason string)
}

// StatusNotifier receives state, status and result events.
type StatusNotifier interface {
	Notify(ctx context.Context, ev models.Event)
}
