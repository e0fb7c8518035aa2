package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-relay/internal/application"
)

func authServer(t *testing.T, calls *atomic.Int64, status int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		require.Equal(t, "password", r.URL.Query().Get("grant_type"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": fmt.Sprintf("tok-%d", n)})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSignInRateLimited(t *testing.T) {
	var calls atomic.Int64
	srv := authServer(t, &calls, http.StatusOK)
	clock := &application.FixedClock{T: time.Unix(1000, 0)}
	m := NewSessionManager(srv.URL, "api-key", "a@b.c", "pw", time.Minute, clock)

	require.NoError(t, m.SignIn(context.Background()))
	require.NoError(t, m.SignIn(context.Background()))
	assert.Equal(t, int64(1), calls.Load(), "second attempt inside the window is skipped")
	assert.Equal(t, "tok-1", m.AccessToken())

	clock.Advance(61 * time.Second)
	require.NoError(t, m.SignIn(context.Background()))
	assert.Equal(t, int64(2), calls.Load(), "attempt after the window signs in again")
	assert.Equal(t, "tok-2", m.AccessToken())
}

func TestHandleErrorSwallowsLoginFailure(t *testing.T) {
	var calls atomic.Int64
	srv := authServer(t, &calls, http.StatusUnauthorized)
	clock := &application.FixedClock{T: time.Unix(1000, 0)}
	m := NewSessionManager(srv.URL, "api-key", "a@b.c", "bad-pw", time.Minute, clock)

	m.HandleError(context.Background())
	assert.Equal(t, int64(1), calls.Load())
	assert.Empty(t, m.AccessToken(), "system stays degraded, no token")

	// failed attempt still consumed the window
	m.HandleError(context.Background())
	assert.Equal(t, int64(1), calls.Load())

	clock.Advance(2 * time.Minute)
	m.HandleError(context.Background())
	assert.Equal(t, int64(2), calls.Load())
}

func TestSignInSingleFlightUnderConcurrency(t *testing.T) {
	var calls atomic.Int64
	srv := authServer(t, &calls, http.StatusOK)
	clock := &application.FixedClock{T: time.Unix(1000, 0)}
	m := NewSessionManager(srv.URL, "api-key", "a@b.c", "pw", time.Minute, clock)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.SignIn(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "exactly one sign-in per window")
}

func TestAccessTokenEmptyBeforeSignIn(t *testing.T) {
	m := NewSessionManager("http://unused", "api-key", "a@b.c", "pw", time.Minute, nil)
	assert.Empty(t, m.AccessToken())
}
