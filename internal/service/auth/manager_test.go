package auth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"FinScreen/internal/domain/models"
	"FinScreen/internal/service/tokenstore"
	xhttp "FinScreen/pkg/http"
	"FinScreen/pkg/storage"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	user        *models.User
	statusErr   error
	tokenErr    error
	registerErr error
	pair        models.TokenPair
	statusCalls int
	confirmed   []string
}

func (f *fakeAPI) UserStatus(context.Context) (*models.User, error) {
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.user, nil
}

func (f *fakeAPI) UserStatusWithToken(_ context.Context, access string) (*models.User, error) {
	if access != f.pair.Access {
		return nil, &xhttp.StatusError{StatusCode: http.StatusUnauthorized}
	}
	return f.user, nil
}

func (f *fakeAPI) ObtainToken(context.Context, string, string) (*models.TokenPair, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	p := f.pair
	return &p, nil
}

func (f *fakeAPI) Register(context.Context, models.RegisterRequest) error { return f.registerErr }

func (f *fakeAPI) ConfirmEmail(_ context.Context, token string) error {
	f.confirmed = append(f.confirmed, token)
	f.user.IsActive = true
	return nil
}

type redirects struct{ reasons []string }

func (r *redirects) RedirectToLogin(_ context.Context, reason string) {
	r.reasons = append(r.reasons, reason)
}

func signedToken(t *testing.T) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 7}).SignedString([]byte("test"))
	require.NoError(t, err)
	return s
}

func setup(t *testing.T, api *fakeAPI) (*Manager, *tokenstore.Store, *redirects) {
	t.Helper()
	tokens := tokenstore.New(storage.NewMemoryStore(), nil)
	r := &redirects{}
	return NewManager(api, tokens, r, nil), tokens, r
}

func TestInitialize_NoTokenRedirects(t *testing.T) {
	api := &fakeAPI{}
	m, _, r := setup(t, api)

	require.NoError(t, m.Initialize(context.Background()))
	assert.Nil(t, m.User())
	assert.Len(t, r.reasons, 1)
	assert.Zero(t, api.statusCalls)
	assert.False(t, m.Session().Loading)
}

func TestInitialize_UndecodableTokenClearsSession(t *testing.T) {
	api := &fakeAPI{}
	m, tokens, _ := setup(t, api)
	ctx := context.Background()
	require.NoError(t, tokens.SetPair(ctx, models.TokenPair{Access: "not-a-jwt", Refresh: "r"}))

	require.NoError(t, m.Initialize(ctx))
	assert.Empty(t, tokens.Pair(ctx).Refresh)
	assert.Zero(t, api.statusCalls, "undecodable token never reaches the backend")
}

func TestInitialize_RestoresUser(t *testing.T) {
	api := &fakeAPI{user: &models.User{IsActive: true, Username: "asha"}}
	m, tokens, r := setup(t, api)
	ctx := context.Background()
	require.NoError(t, tokens.SetPair(ctx, models.TokenPair{Access: signedToken(t), Refresh: "r"}))

	require.NoError(t, m.Initialize(ctx))
	require.NotNil(t, m.User())
	assert.Equal(t, "asha", m.User().Username)
	assert.True(t, m.EmailConfirmed())
	assert.Empty(t, r.reasons)
}

func TestInitialize_BackendFailureClearsSession(t *testing.T) {
	api := &fakeAPI{statusErr: errors.New("connection refused")}
	m, tokens, _ := setup(t, api)
	ctx := context.Background()
	require.NoError(t, tokens.SetPair(ctx, models.TokenPair{Access: signedToken(t), Refresh: "r"}))

	assert.Error(t, m.Initialize(ctx))
	assert.Nil(t, m.User())
	assert.Equal(t, models.TokenPair{}, tokens.Pair(ctx))
	assert.False(t, m.Session().Loading)
}

func TestLogin_FailureLeavesPriorSession(t *testing.T) {
	api := &fakeAPI{
		user: &models.User{IsActive: true, Username: "asha"},
		pair: models.TokenPair{Access: "a1", Refresh: "r1"},
	}
	m, tokens, _ := setup(t, api)
	ctx := context.Background()

	_, err := m.Login(ctx, "asha@example.com", "pw")
	require.NoError(t, err)

	api.tokenErr = &xhttp.StatusError{StatusCode: http.StatusUnauthorized, Body: []byte(`{"detail":"No active account found"}`)}
	_, err = m.Login(ctx, "asha@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "No active account found", xhttp.ErrorDetail(err))

	assert.Equal(t, models.TokenPair{Access: "a1", Refresh: "r1"}, tokens.Pair(ctx))
	require.NotNil(t, m.User())
	assert.Equal(t, "asha", m.User().Username)
}

func TestRegister_FailureIsRegistrationFailed(t *testing.T) {
	api := &fakeAPI{registerErr: &xhttp.StatusError{StatusCode: http.StatusBadRequest, Body: []byte(`{"email":["already taken"]}`)}}
	m, _, _ := setup(t, api)

	_, err := m.Register(context.Background(), models.RegisterRequest{Username: "asha", Email: "a@b.c", Password: "password1"})
	assert.ErrorIs(t, err, ErrRegistrationFailed)
	assert.Equal(t, "email: already taken", xhttp.ErrorDetail(err))
}

func TestRegister_LogsIn(t *testing.T) {
	api := &fakeAPI{user: &models.User{Username: "asha"}, pair: models.TokenPair{Access: "a1", Refresh: "r1"}}
	m, tokens, _ := setup(t, api)

	u, err := m.Register(context.Background(), models.RegisterRequest{Username: "asha", Email: "a@b.c", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "asha", u.Username)
	assert.False(t, m.EmailConfirmed())
	assert.Equal(t, "a1", tokens.AccessToken(context.Background()))
	assert.ErrorIs(t, m.RequireConfirmed(), ErrEmailNotConfirmed)
}

func TestLogoutAndConfirmEmail(t *testing.T) {
	api := &fakeAPI{user: &models.User{Username: "asha"}, pair: models.TokenPair{Access: "a1", Refresh: "r1"}}
	m, tokens, _ := setup(t, api)
	ctx := context.Background()

	_, err := m.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)

	require.NoError(t, m.ConfirmEmail(ctx, "confirm-123"))
	assert.Equal(t, []string{"confirm-123"}, api.confirmed)
	assert.True(t, m.EmailConfirmed())
	assert.NoError(t, m.RequireConfirmed())

	m.Logout(ctx)
	assert.Nil(t, m.User())
	assert.False(t, m.EmailConfirmed())
	assert.Empty(t, tokens.AccessToken(ctx))
	assert.ErrorIs(t, m.RequireConfirmed(), ErrNotAuthenticated)
}

func TestHandleSessionExpired(t *testing.T) {
	api := &fakeAPI{user: &models.User{Username: "asha"}, pair: models.TokenPair{Access: "a1", Refresh: "r1"}}
	m, _, r := setup(t, api)
	ctx := context.Background()
	_, err := m.Login(ctx, "a@b.c", "pw")
	require.NoError(t, err)

	m.HandleSessionExpired(ctx, xhttp.ErrSessionExpired)
	assert.Nil(t, m.User())
	assert.Equal(t, []string{xhttp.ErrSessionExpired.Message}, r.reasons)
}
