package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"FinScreen/internal/domain/models"
	"FinScreen/internal/domain/repository"
	"FinScreen/internal/services/results"
	xhttp "FinScreen/pkg/http"
	"FinScreen/pkg/logger"

	"github.com/google/uuid"
)

const sinkTimeout = 10 * time.Second

// SessionGuard gates runs on an authenticated, confirmed user.
type SessionGuard interface {
	RequireConfirmed() error
}

// ScreenAPI is the backend's screen call.
type ScreenAPI interface {
	ScreenStocks(ctx context.Context, params models.RunParams) ([]models.ResultRow, error)
}

// Sinks are optional consumers of finished runs. Nil members are skipped.
type Sinks struct {
	Archive   repository.ResultArchive
	Publisher repository.RunPublisher
	Metrics   repository.Metrics
	Notifier  repository.StatusNotifier
}

// Orchestrator runs the screener: idle -> validating -> running ->
// results_ready or failed. At most one run is in flight. Results are nil
// until the first dispatched run completes and an empty slice after a
// failed one.
type Orchestrator struct {
	mu         sync.Mutex
	state      models.RunState
	status     *models.Status
	results    []models.ResultRow
	selected   int
	runID      string
	generation uint64

	session  SessionGuard
	config   *ConfigStore
	resolver *SymbolResolver
	api      ScreenAPI
	sinks    Sinks
	log      *logger.Logger

	now   func() time.Time
	newID func() string
}

func NewOrchestrator(session SessionGuard, config *ConfigStore, resolver *SymbolResolver, api ScreenAPI, sinks Sinks, l *logger.Logger) *Orchestrator {
	if l == nil {
		l = logger.Nop()
	}
	return &Orchestrator{
		state:    models.StateIdle,
		selected: -1,
		session:  session,
		config:   config,
		resolver: resolver,
		api:      api,
		sinks:    sinks,
		log:      l.With(logger.String("component", "orchestrator")),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Run validates the form and, when every check passes, dispatches exactly
// one screen call. Local validation failures leave configuration and prior
// results untouched and return a warning-level error without any backend
// screen call.
func (o *Orchestrator) Run(ctx context.Context) (*models.RunSummary, error) {
	o.mu.Lock()
	if o.state.Busy() {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	cfg := o.config.Snapshot()
	if err := o.preflight(ctx, cfg); err != nil {
		o.failLocked(err)
		o.mu.Unlock()
		o.publishState(ctx)
		o.recordError("preflight")
		return nil, err
	}
	o.generation++
	gen := o.generation
	o.setStateLocked(models.StateValidating, models.LevelInfo, "Validating symbols...")
	o.mu.Unlock()
	o.publishState(ctx)
	defer o.abandon(ctx, gen)

	params, err := o.freeze(ctx, cfg)
	if err != nil {
		if o.finishPreflight(gen, err) {
			o.publishState(ctx)
		}
		o.recordError("validation")
		return nil, err
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		return nil, ErrRunSuperseded
	}
	runID := o.newID()
	o.runID = runID
	o.setStateLocked(models.StateRunning, models.LevelInfo, fmt.Sprintf("Screening %d symbols...", len(params.Symbols)))
	o.mu.Unlock()
	o.publishState(ctx)

	started := o.now()
	o.log.Info("screen run dispatched",
		logger.String("run_id", runID),
		logger.Int("symbols", len(params.Symbols)),
		logger.Strings("features", params.Features),
	)
	rows, screenErr := o.api.ScreenStocks(ctx, params)
	finished := o.now()

	summary := models.RunSummary{
		RunID:      runID,
		Params:     params,
		StartedAt:  started,
		FinishedAt: finished,
	}

	o.mu.Lock()
	if gen != o.generation {
		o.mu.Unlock()
		o.log.Info("discarding superseded run", logger.String("run_id", runID))
		return nil, ErrRunSuperseded
	}
	if screenErr != nil {
		o.results = []models.ResultRow{}
		o.selected = -1
		o.state = models.StateFailed
		o.setStatusLocked(models.LevelError, "Screening failed: "+xhttp.ErrorDetail(screenErr))
		summary.Outcome = models.OutcomeFailed
		summary.Error = xhttp.ErrorDetail(screenErr)
	} else {
		if rows == nil {
			rows = []models.ResultRow{}
		}
		o.results = rows
		o.selected = results.AutoSelect(rows)
		o.state = models.StateResultsReady
		summary.Outcome = models.OutcomeSuccess
		summary.Rows = len(rows)
		summary.Converged = countConverged(rows)
		if o.selected >= 0 {
			summary.Selected = rows[o.selected].Stock
		}
		if len(rows) == 0 {
			o.setStatusLocked(models.LevelInfo, "Screening finished with no results")
		} else {
			o.setStatusLocked(models.LevelSuccess, completionMessage(rows, summary.Converged))
		}
	}
	o.mu.Unlock()

	o.afterRun(ctx, summary, rows)

	if screenErr != nil {
		return &summary, ErrScreenFailed.Derive("Screening failed: " + xhttp.ErrorDetail(screenErr)).WithError(screenErr)
	}
	return &summary, nil
}

// preflight runs the synchronous guards that need no backend call.
func (o *Orchestrator) preflight(ctx context.Context, cfg models.ScreenerConfig) error {
	if o.session != nil {
		if err := o.session.RequireConfirmed(); err != nil {
			return err
		}
	}
	if len(cfg.Features) == 0 {
		return ErrNoFeatures
	}
	switch cfg.InputMethod {
	case models.InputIndex:
		if cfg.SelectedIndex == "" {
			return ErrNoIndex
		}
	default:
		if len(ParseFreeText(cfg.SymbolsText)) == 0 {
			return ErrNoSymbols
		}
	}
	params := paramsFor(cfg, nil)
	return xhttp.ValidateStructExcept(ctx, &params, "Symbols")
}

// freeze resolves and validates symbols and snapshots the parameters that
// will be sent verbatim.
func (o *Orchestrator) freeze(ctx context.Context, cfg models.ScreenerConfig) (models.RunParams, error) {
	symbols, err := o.resolver.ResolveAndValidate(ctx, cfg)
	if err != nil {
		return models.RunParams{}, err
	}
	params := paramsFor(cfg, symbols)
	if err := xhttp.ValidateStruct(ctx, &params); err != nil {
		return models.RunParams{}, err
	}
	return params, nil
}

func paramsFor(cfg models.ScreenerConfig, symbols []string) models.RunParams {
	return models.RunParams{
		Symbols:          symbols,
		Period:           cfg.Period,
		Interval:         cfg.Interval,
		Features:         append([]string(nil), cfg.Features...),
		WindowSize:       cfg.WindowSize,
		MaxStates:        cfg.MaxStates,
		TrainWindow:      cfg.TrainWindow,
		UseRollingWindow: cfg.UseRollingWindow,
		Slippage:         cfg.Slippage,
	}
}

// abandon fails a run of generation gen that is still validating or
// running when Run returns, which only happens when it unwinds abnormally.
func (o *Orchestrator) abandon(ctx context.Context, gen uint64) {
	o.mu.Lock()
	if gen != o.generation || !o.state.Busy() {
		o.mu.Unlock()
		return
	}
	o.state = models.StateFailed
	o.setStatusLocked(models.LevelError, "Screening run aborted unexpectedly")
	o.mu.Unlock()
	o.log.Error("run aborted", logger.Int64("generation", int64(gen)))
	o.publishState(ctx)
	o.recordError("aborted")
}

// finishPreflight records a validation failure unless the run was reset
// in the meantime. It reports whether state changed.
func (o *Orchestrator) finishPreflight(gen uint64, err error) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if gen != o.generation {
		return false
	}
	o.failLocked(err)
	return true
}

func (o *Orchestrator) failLocked(err error) {
	st := statusFor(err)
	o.state = models.StateFailed
	o.setStatusLocked(st.Level, st.Message)
	o.log.Warn("run rejected", logger.String("reason", st.Message))
}

func (o *Orchestrator) setStateLocked(s models.RunState, level, msg string) {
	o.state = s
	o.setStatusLocked(level, msg)
}

func (o *Orchestrator) setStatusLocked(level, msg string) {
	o.status = &models.Status{Level: level, Message: msg, At: o.now()}
}

func (o *Orchestrator) afterRun(ctx context.Context, summary models.RunSummary, rows []models.ResultRow) {
	if m := o.sinks.Metrics; m != nil {
		m.RecordScreenRun(summary.Outcome, summary.Rows, summary.Duration())
		if summary.Outcome == models.OutcomeFailed {
			m.RecordError("screen")
		}
	}

	o.log.Info("screen run finished",
		logger.String("run_id", summary.RunID),
		logger.String("outcome", summary.Outcome),
		logger.Int("rows", summary.Rows),
		logger.Int("converged", summary.Converged),
		logger.Duration("duration_ms", summary.Duration()),
	)

	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()
	if a := o.sinks.Archive; a != nil && summary.Outcome == models.OutcomeSuccess && len(rows) > 0 {
		if err := a.Archive(sinkCtx, summary, rows); err != nil {
			o.log.Error("archive run results", logger.String("run_id", summary.RunID), logger.Error(err))
			o.recordError("archive")
		}
	}
	if p := o.sinks.Publisher; p != nil {
		if err := p.PublishRun(sinkCtx, summary); err != nil {
			o.log.Error("publish run summary", logger.String("run_id", summary.RunID), logger.Error(err))
			o.recordError("publish")
		}
	}

	o.publishState(ctx)
	o.notify(ctx, models.EventResults, summary)
}

func (o *Orchestrator) recordError(kind string) {
	if o.sinks.Metrics != nil {
		o.sinks.Metrics.RecordError(kind)
	}
}

func (o *Orchestrator) publishState(ctx context.Context) {
	o.notify(ctx, models.EventState, o.Snapshot())
}

func (o *Orchestrator) notify(ctx context.Context, typ string, payload interface{}) {
	if o.sinks.Notifier == nil {
		return
	}
	o.sinks.Notifier.Notify(ctx, models.Event{Type: typ, Payload: payload, At: o.now()})
}

// Reset returns to idle and drops results. A run still in flight finishes
// silently and its outcome is discarded.
func (o *Orchestrator) Reset(ctx context.Context) {
	o.mu.Lock()
	o.generation++
	o.state = models.StateIdle
	o.status = nil
	o.results = nil
	o.selected = -1
	o.runID = ""
	o.mu.Unlock()
	o.publishState(ctx)
}

// DismissStatus clears the status banner.
func (o *Orchestrator) DismissStatus(ctx context.Context) {
	o.mu.Lock()
	o.status = nil
	o.mu.Unlock()
	o.publishState(ctx)
}

// Snapshot returns the current state for display.
func (o *Orchestrator) Snapshot() models.RunSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := models.RunSnapshot{
		State:  o.state,
		RunID:  o.runID,
		HasRun: o.results != nil,
		Rows:   len(o.results),
	}
	if o.status != nil {
		st := *o.status
		snap.Status = &st
	}
	if o.selected >= 0 && o.selected < len(o.results) {
		snap.Selected = o.results[o.selected].Stock
	}
	return snap
}

// Results returns a copy of the rows in backend order; nil before any run.
func (o *Orchestrator) Results() []models.ResultRow {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.results == nil {
		return nil
	}
	return append([]models.ResultRow{}, o.results...)
}

// Table returns the filtered and sorted view plus the selected stock when
// it is part of that view.
func (o *Orchestrator) Table(q results.Query) ([]models.ResultRow, string) {
	o.mu.Lock()
	rows := o.results
	selected := ""
	if o.selected >= 0 && o.selected < len(rows) {
		selected = rows[o.selected].Stock
	}
	o.mu.Unlock()

	view := results.Apply(rows, q)
	if selected != "" && results.IndexOf(view, selected) < 0 {
		selected = ""
	}
	return view, selected
}

// Select marks the row for stock as the detail row.
func (o *Orchestrator) Select(ctx context.Context, stock string) error {
	o.mu.Lock()
	i := results.IndexOf(o.results, stock)
	if i < 0 {
		o.mu.Unlock()
		return xhttp.NotFoundErrorf("no result row for %q", stock)
	}
	o.selected = i
	o.mu.Unlock()
	o.publishState(ctx)
	return nil
}

// Selected returns the detail row, or nil.
func (o *Orchestrator) Selected() *models.ResultRow {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.selected < 0 || o.selected >= len(o.results) {
		return nil
	}
	row := o.results[o.selected]
	return &row
}

// Export writes the filtered and sorted view as CSV.
func (o *Orchestrator) Export(w io.Writer, q results.Query) error {
	rows, _ := o.Table(q)
	if len(rows) == 0 {
		return ErrNoResults
	}
	return results.WriteCSV(w, rows)
}

func countConverged(rows []models.ResultRow) int {
	n := 0
	for _, r := range rows {
		if r.Converged {
			n++
		}
	}
	return n
}

func completionMessage(rows []models.ResultRow, converged int) string {
	failed := 0
	for _, r := range rows {
		if r.Error != "" {
			failed++
		}
	}
	msg := fmt.Sprintf("Screened %d stocks, %d converged", len(rows), converged)
	if failed > 0 {
		msg += fmt.Sprintf(", %d with errors", failed)
	}
	return msg
}

// IsWarning reports whether err is a local validation failure.
func IsWarning(err error) bool {
	var ae *xhttp.AppError
	return errors.As(err, &ae) && ae.Level == xhttp.LevelWarning
}
