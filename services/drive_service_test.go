package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"studentfiles/models"
	"studentfiles/storage/storagetest"
)

func newTokenServer(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		_ = r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "r1" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOAuthStrategyPersistsRefreshedToken(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	var calls int32
	srv := newTokenServer(t, &calls)

	expired := time.Now().Add(-time.Hour)
	teacher := storagetest.Teacher(t, store, func(tc *models.Teacher) {
		tc.AccessToken = "stale"
		tc.RefreshToken = "r1"
		tc.TokenExpiry = &expired
	})

	strategy := NewOAuthStrategy(&oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		Endpoint:     oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}, store)

	source, err := strategy.tokenSource(teacher)
	require.NoError(t, err)
	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh", token.AccessToken)

	_, err = source.Token()
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "a valid token is reused")

	stored, err := store.GetTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", stored.AccessToken)
	assert.Equal(t, "r1", stored.RefreshToken)
	require.NotNil(t, stored.TokenExpiry)
	assert.True(t, stored.TokenExpiry.After(time.Now()))
}

func TestOAuthStrategyLeavesValidTokenAlone(t *testing.T) {
	ctx := context.Background()
	store := storagetest.New(t)
	var calls int32
	srv := newTokenServer(t, &calls)

	valid := time.Now().Add(time.Hour)
	teacher := storagetest.Teacher(t, store, func(tc *models.Teacher) {
		tc.AccessToken = "current"
		tc.RefreshToken = "r1"
		tc.TokenExpiry = &valid
	})

	strategy := NewOAuthStrategy(&oauth2.Config{
		ClientID: "client",
		Endpoint: oauth2.Endpoint{TokenURL: srv.URL, AuthStyle: oauth2.AuthStyleInParams},
	}, store)
	source, err := strategy.tokenSource(teacher)
	require.NoError(t, err)
	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "current", token.AccessToken)
	assert.Zero(t, atomic.LoadInt32(&calls))

	stored, err := store.GetTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, "current", stored.AccessToken)
}

func TestOAuthStrategyWithoutClientUsesStoredAccessToken(t *testing.T) {
	ctx := context.Background()
	strategy := NewOAuthStrategy(nil, nil)

	source, err := strategy.tokenSource(&models.Teacher{ID: 1, AccessToken: "from-register"})
	require.NoError(t, err)
	token, err := source.Token()
	require.NoError(t, err)
	assert.Equal(t, "from-register", token.AccessToken)

	client, err := strategy.Client(ctx, &models.Teacher{ID: 1, AccessToken: "from-register"})
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = strategy.Client(ctx, &models.Teacher{ID: 2})
	assert.ErrorIs(t, err, ErrDriveUnavailable)
	_, err = strategy.Client(ctx, &models.Teacher{ID: 3, RefreshToken: "only-refresh"})
	assert.ErrorIs(t, err, ErrDriveUnavailable, "a refresh token is useless without a client")
}
