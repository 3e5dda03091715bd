package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"FinScreen/internal/domain/models"
	xhttp "FinScreen/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{ access string }

func (s *staticTokens) AccessToken(context.Context) string           { return s.access }
func (s *staticTokens) RefreshToken(context.Context) string          { return "" }
func (s *staticTokens) SetAccessToken(context.Context, string) error { return nil }
func (s *staticTokens) Clear(context.Context) error                  { return nil }

func newBackend(t *testing.T, mux *http.ServeMux, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	base := srv.URL + "/api/"
	hc := xhttp.NewClient(
		xhttp.WithTokenStore(&staticTokens{access: "stored"}),
		xhttp.WithRefreshURL(RefreshURL(base, "")),
	)
	return NewClient(base, hc, opts, nil)
}

func TestClient_IndicesCachedUntilClearCache(t *testing.T) {
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/indices/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]models.IndexEntry{
			"NIFTY 50": {Symbols: []string{"TCS", "INFY"}, ExchangeSuffix: ".NS"},
		})
	})
	mux.HandleFunc("/api/clear_cache/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	c := newBackend(t, mux, Options{IndicesCacheTTL: time.Hour})
	ctx := context.Background()

	idx, err := c.Indices(ctx)
	require.NoError(t, err)
	assert.Equal(t, ".NS", idx["NIFTY 50"].ExchangeSuffix)
	_, err = c.Indices(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load())

	require.NoError(t, c.ClearCache(ctx))
	_, err = c.Indices(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
}

func TestClient_ScreenStocksNormalizesRows(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/screen_stocks/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer stored", r.Header.Get("Authorization"))
		var p models.RunParams
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, []string{"TCS.NS"}, p.Symbols)
		_, _ = w.Write([]byte(`{"results":[{"stock":"TCS.NS","converged":true,"recommendation":"hold"}]}`))
	})
	c := newBackend(t, mux, Options{})

	rows, err := c.ScreenStocks(context.Background(), models.RunParams{Symbols: []string{"TCS.NS"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TCS.NS", rows[0].Stock)
	assert.Equal(t, "HOLD", rows[0].Recommendation)
	assert.True(t, rows[0].Converged)
}

func TestClient_ObtainTokenIsAnonymous(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token/", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"No active account found with the given credentials"}`))
	})
	c := newBackend(t, mux, Options{})

	_, err := c.ObtainToken(context.Background(), "a@b.c", "nope")
	require.Error(t, err)
	assert.Equal(t, "No active account found with the given credentials", xhttp.ErrorDetail(err))
}

func TestClient_ConfirmEmailAndLogs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/confirm-email/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("token"))
		_, _ = w.Write([]byte(`{"message":"confirmed"}`))
	})
	mux.HandleFunc("/api/logs/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"logs":["fit TCS ok","fit INFY ok"]}`))
	})
	c := newBackend(t, mux, Options{})
	ctx := context.Background()

	require.NoError(t, c.ConfirmEmail(ctx, "tok-1"))

	logs, err := c.Logs(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fit TCS ok\nfit INFY ok", logs)
}

func TestDecodeRows(t *testing.T) {
	rows, err := decodeRows(json.RawMessage(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	rows, err = decodeRows(json.RawMessage(`[{"Stock":"A"}]`))
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = decodeRows(json.RawMessage(`"oops"`))
	assert.Error(t, err)
}
