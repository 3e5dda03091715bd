package usecase

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"FinScreen/internal/domain/models"
	"FinScreen/internal/services/results"
	xhttp "FinScreen/pkg/http"
	"FinScreen/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type orchestratorFixture struct {
	api    *fakeAPI
	sinks  *fakeSinks
	config *ConfigStore
	orch   *Orchestrator
}

func newOrchestratorFixture(t *testing.T, session SessionGuard) *orchestratorFixture {
	t.Helper()
	ctx := context.Background()
	api := &fakeAPI{}
	sinks := &fakeSinks{}
	cs := NewConfigStore(storage.NewMemoryStore(), api, nil)
	require.NoError(t, cs.SetField(ctx, models.FieldInputMethod, models.InputFreeText))
	require.NoError(t, cs.SetField(ctx, models.FieldSymbolsText, "aapl, msft"))

	o := NewOrchestrator(session, cs, NewSymbolResolver(api, cs, nil), api, sinks.asSinks(), nil)
	o.newID = func() string { return "run-1" }
	return &orchestratorFixture{api: api, sinks: sinks, config: cs, orch: o}
}

func sampleRows() []models.ResultRow {
	return []models.ResultRow{
		row(map[string]interface{}{"Stock": "AAPL", "Recommendation": "HOLD", "Converged": false, "Total Return (%)": 4.5}),
		row(map[string]interface{}{"Stock": "MSFT", "Recommendation": "BUY", "Converged": true, "Total Return (%)": 12.1}),
	}
}

func TestOrchestrator_SuccessfulRun(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = sampleRows()

	summary, err := f.orch.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, models.OutcomeSuccess, summary.Outcome)
	assert.Equal(t, 2, summary.Rows)
	assert.Equal(t, 1, summary.Converged)
	assert.Equal(t, "MSFT", summary.Selected)

	snap := f.orch.Snapshot()
	assert.Equal(t, models.StateResultsReady, snap.State)
	assert.True(t, snap.HasRun)
	assert.Equal(t, "MSFT", snap.Selected)
	require.NotNil(t, snap.Status)
	assert.Equal(t, models.LevelSuccess, snap.Status.Level)

	assert.Equal(t, []string{"AAPL", "MSFT"}, f.api.lastParams.Symbols)
	assert.Equal(t, []string{"returns", "volatility"}, f.api.lastParams.Features)
	assert.Equal(t, 3, f.api.lastParams.MaxStates)

	assert.Len(t, f.sinks.archived, 1)
	assert.Len(t, f.sinks.published, 1)
	assert.Equal(t, []recordedRun{{models.OutcomeSuccess, 2}}, f.sinks.runs)
	assert.NotEmpty(t, f.sinks.events)
}

func TestOrchestrator_SelectsFirstRowWhenNoneConverged(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = []models.ResultRow{
		row(map[string]interface{}{"Stock": "AAPL", "Converged": false}),
		row(map[string]interface{}{"Stock": "MSFT", "Converged": "False"}),
	}

	_, err := f.orch.Run(context.Background())

	require.NoError(t, err)
	require.NotNil(t, f.orch.Selected())
	assert.Equal(t, "AAPL", f.orch.Selected().Stock)
}

func TestOrchestrator_ZeroRowsIsNotAnError(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = nil

	summary, err := f.orch.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, summary.Rows)
	snap := f.orch.Snapshot()
	assert.Equal(t, models.StateResultsReady, snap.State)
	assert.True(t, snap.HasRun)
	assert.Equal(t, models.LevelInfo, snap.Status.Level)
	assert.NotNil(t, f.orch.Results())
	assert.Empty(t, f.orch.Results())
	assert.Nil(t, f.orch.Selected())
	assert.Empty(t, f.sinks.archived)
}

func TestOrchestrator_RemoteFailureClearsResults(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = sampleRows()
	_, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	f.api.screenRows = nil
	f.api.screenErr = &xhttp.StatusError{StatusCode: http.StatusInternalServerError, Body: []byte(`{"error":"HMM fit exploded"}`)}
	summary, err := f.orch.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrScreenFailed)
	assert.True(t, xhttp.IsStatus(err, http.StatusInternalServerError))
	assert.Equal(t, models.OutcomeFailed, summary.Outcome)

	snap := f.orch.Snapshot()
	assert.Equal(t, models.StateFailed, snap.State)
	assert.Equal(t, models.LevelError, snap.Status.Level)
	assert.Equal(t, "Screening failed: HMM fit exploded", snap.Status.Message)
	assert.True(t, snap.HasRun)
	assert.NotNil(t, f.orch.Results())
	assert.Empty(t, f.orch.Results())
	assert.Contains(t, f.sinks.errors, "screen")
}

func TestOrchestrator_ValidationFailuresNeverScreen(t *testing.T) {
	tests := []struct {
		name    string
		session SessionGuard
		setup   func(t *testing.T, f *orchestratorFixture)
		wantErr error
	}{
		{
			name:    "not logged in",
			session: fakeSession{err: xhttp.UnauthorizedError("please log in").AsWarning()},
		},
		{
			name:    "no features",
			session: fakeSession{},
			setup: func(t *testing.T, f *orchestratorFixture) {
				require.NoError(t, f.config.SetField(context.Background(), models.FieldFeatures, []string{}))
			},
			wantErr: ErrNoFeatures,
		},
		{
			name:    "no symbols",
			session: fakeSession{},
			setup: func(t *testing.T, f *orchestratorFixture) {
				require.NoError(t, f.config.SetField(context.Background(), models.FieldSymbolsText, " , "))
			},
			wantErr: ErrNoSymbols,
		},
		{
			name:    "invalid symbols",
			session: fakeSession{},
			setup: func(t *testing.T, f *orchestratorFixture) {
				f.api.invalid = map[string]string{"MSFT": "delisted"}
			},
			wantErr: ErrInvalidSymbols,
		},
		{
			name:    "parameter out of range",
			session: fakeSession{},
			setup: func(t *testing.T, f *orchestratorFixture) {
				require.NoError(t, f.config.SetField(context.Background(), models.FieldMaxStates, 1))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture(t, tt.session)
			if tt.setup != nil {
				tt.setup(t, f)
			}
			before := f.config.Snapshot()

			summary, err := f.orch.Run(context.Background())

			require.Error(t, err)
			assert.Nil(t, summary)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.True(t, IsWarning(err))
			assert.EqualValues(t, 0, f.api.screenCalls.Load())
			assert.Equal(t, before, f.config.Snapshot())

			snap := f.orch.Snapshot()
			assert.Equal(t, models.StateFailed, snap.State)
			assert.Equal(t, models.LevelWarning, snap.Status.Level)
			assert.False(t, snap.HasRun)
		})
	}
}

func TestOrchestrator_ValidationFailureKeepsPriorResults(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = sampleRows()
	_, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.config.SetField(context.Background(), models.FieldSymbolsText, ""))
	_, err = f.orch.Run(context.Background())

	assert.ErrorIs(t, err, ErrNoSymbols)
	assert.Len(t, f.orch.Results(), 2)
	assert.EqualValues(t, 1, f.api.screenCalls.Load())
}

func TestOrchestrator_SingleRunInFlight(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = sampleRows()
	f.api.screenGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Run(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.api.screenCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, models.StateRunning, f.orch.Snapshot().State)

	_, err := f.orch.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(f.api.screenGate)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, f.api.screenCalls.Load())
	assert.Equal(t, models.StateResultsReady, f.orch.Snapshot().State)
}

func TestOrchestrator_ResetDiscardsInFlightRun(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = sampleRows()
	f.api.screenGate = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Run(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return f.api.screenCalls.Load() == 1 }, time.Second, 5*time.Millisecond)

	f.orch.Reset(context.Background())
	close(f.api.screenGate)

	assert.ErrorIs(t, <-done, ErrRunSuperseded)
	snap := f.orch.Snapshot()
	assert.Equal(t, models.StateIdle, snap.State)
	assert.False(t, snap.HasRun)
	assert.Nil(t, f.orch.Results())
}

func TestOrchestrator_TableAndSelection(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	f.api.screenRows = sampleRows()
	_, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	rows, selected := f.orch.Table(results.Query{SortKey: "total return (%)", Desc: true})
	require.Len(t, rows, 2)
	assert.Equal(t, "MSFT", rows[0].Stock)
	assert.Equal(t, "MSFT", selected)

	rows, selected = f.orch.Table(results.Query{Recommendations: []string{"HOLD"}})
	require.Len(t, rows, 1)
	assert.Empty(t, selected, "selection outside the view is not reported")

	require.NoError(t, f.orch.Select(context.Background(), "AAPL"))
	assert.Equal(t, "AAPL", f.orch.Selected().Stock)

	err = f.orch.Select(context.Background(), "TSLA")
	var ae *xhttp.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, http.StatusNotFound, ae.Status)
}

func TestOrchestrator_Export(t *testing.T) {
	f := newOrchestratorFixture(t, fakeSession{})
	var buf bytes.Buffer
	assert.ErrorIs(t, f.orch.Export(&buf, results.Query{}), ErrNoResults)

	f.api.screenRows = sampleRows()
	_, err := f.orch.Run(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.orch.Export(&buf, results.Query{Recommendations: []string{"BUY"}}))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "Stock,Recommendation,Converged"))
	assert.True(t, strings.HasPrefix(lines[1], "MSFT,BUY,"))
}

func TestOrchestrator_DispatchesSuffixedSymbols(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, fakeSession{})
	require.NoError(t, f.config.SetField(ctx, models.FieldSymbolsText, "tcs, infy"))
	require.NoError(t, f.config.SetField(ctx, models.FieldExchangeSuffix, ".NS"))
	f.api.screenRows = []models.ResultRow{
		row(map[string]interface{}{"Stock": "TCS.NS", "Converged": false, "Recommendation": "ERROR"}),
		row(map[string]interface{}{"Stock": "INFY.NS", "Converged": true, "Recommendation": "BUY"}),
	}

	_, err := f.orch.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"TCS.NS", "INFY.NS"}, f.api.lastParams.Symbols)
	assert.Equal(t, "INFY.NS", f.orch.Selected().Stock)
}

func TestOrchestrator_InvalidSymbolAbortsWithWarning(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, fakeSession{})
	require.NoError(t, f.config.SetField(ctx, models.FieldSymbolsText, "tcs, foo"))
	f.api.invalid = map[string]string{"FOO": "not found"}

	_, err := f.orch.Run(ctx)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "FOO")
	assert.EqualValues(t, 0, f.api.screenCalls.Load())
	assert.Equal(t, models.LevelWarning, f.orch.Snapshot().Status.Level)
}

type panickingScreen struct{}

func (panickingScreen) ScreenStocks(context.Context, models.RunParams) ([]models.ResultRow, error) {
	panic("screen client blew up")
}

func TestOrchestrator_AbnormalExitLeavesTerminalState(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, fakeSession{})
	f.orch.api = panickingScreen{}

	require.Panics(t, func() { _, _ = f.orch.Run(ctx) })

	snap := f.orch.Snapshot()
	assert.Equal(t, models.StateFailed, snap.State)
	assert.Equal(t, models.LevelError, snap.Status.Level)
	assert.Contains(t, f.sinks.errors, "aborted")

	f.orch.api = f.api
	f.api.screenRows = sampleRows()
	_, err := f.orch.Run(ctx)

	require.NoError(t, err)
	assert.Equal(t, models.StateResultsReady, f.orch.Snapshot().State)
}

func TestOrchestrator_ParametersCheckedBeforeBackend(t *testing.T) {
	ctx := context.Background()
	f := newOrchestratorFixture(t, fakeSession{})
	require.NoError(t, f.config.SetField(ctx, models.FieldMaxStates, 1))

	_, err := f.orch.Run(ctx)

	require.Error(t, err)
	assert.True(t, IsWarning(err))
	assert.Contains(t, err.Error(), "max_states")
	assert.Empty(t, f.api.validateReq)
	assert.EqualValues(t, 0, f.api.screenCalls.Load())
}
