package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"FinScreen/internal/domain/models"
	"FinScreen/internal/services/results"
)

type fakeAPI struct {
	mu          sync.Mutex
	serverCfg   *models.ServerConfig
	configErr   error
	saved       []models.ScreenerConfig
	indices     map[string]models.IndexEntry
	validateReq []models.ValidateSymbolsRequest
	invalid     map[string]string
	validateErr error
	screenRows  []models.ResultRow
	screenErr   error
	screenCalls atomic.Int32
	screenGate  chan struct{}
	lastParams  models.RunParams
}

func (f *fakeAPI) Config(context.Context) (*models.ServerConfig, error) {
	return f.serverCfg, f.configErr
}

func (f *fakeAPI) SaveConfig(_ context.Context, cfg models.ScreenerConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, cfg)
	return nil
}

func (f *fakeAPI) Indices(context.Context) (map[string]models.IndexEntry, error) {
	return f.indices, nil
}

func (f *fakeAPI) ValidateSymbols(_ context.Context, req models.ValidateSymbolsRequest) (*models.ValidateSymbolsResponse, error) {
	f.mu.Lock()
	f.validateReq = append(f.validateReq, req)
	f.mu.Unlock()
	if f.validateErr != nil {
		return nil, f.validateErr
	}
	resp := &models.ValidateSymbolsResponse{InvalidSymbols: map[string]string{}}
	for _, s := range req.Symbols {
		if reason, bad := f.invalid[s]; bad {
			resp.InvalidSymbols[s] = reason
			continue
		}
		resp.ValidSymbols = append(resp.ValidSymbols, s)
	}
	return resp, nil
}

func (f *fakeAPI) ScreenStocks(ctx context.Context, params models.RunParams) ([]models.ResultRow, error) {
	f.screenCalls.Add(1)
	f.mu.Lock()
	f.lastParams = params
	f.mu.Unlock()
	if f.screenGate != nil {
		select {
		case <-f.screenGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.screenRows, f.screenErr
}

type fakeSession struct{ err error }

func (s fakeSession) RequireConfirmed() error { return s.err }

type recordedRun struct {
	outcome string
	rows    int
}

type fakeSinks struct {
	mu        sync.Mutex
	runs      []recordedRun
	errors    []string
	archived  []models.RunSummary
	published []models.RunSummary
	events    []models.Event
}

func (s *fakeSinks) RecordScreenRun(outcome string, rows int, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, recordedRun{outcome, rows})
}

func (s *fakeSinks) RecordError(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, kind)
}

func (s *fakeSinks) Archive(_ context.Context, summary models.RunSummary, _ []models.ResultRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, summary)
	return nil
}

func (s *fakeSinks) PublishRun(_ context.Context, summary models.RunSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, summary)
	return nil
}

func (s *fakeSinks) Notify(_ context.Context, ev models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *fakeSinks) asSinks() Sinks {
	return Sinks{Archive: s, Publisher: s, Metrics: s, Notifier: s}
}

func row(raw map[string]interface{}) models.ResultRow {
	return results.NormalizeRow(raw)
}
