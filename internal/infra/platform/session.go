package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-relay/internal/application"
)

// Session is the short-lived authenticated credential state.
type Session struct {
	AccessToken string
	IssuedAt    time.Time
}

// SessionManager owns the credentials and the single process-wide session.
// Sign-in is rate-limited so bursts of failures cannot trigger a re-login
// storm; the mutex makes the limiter single-flight under concurrent callers.
type SessionManager struct {
	authURL     string
	apiKey      string
	email       string
	password    string
	minInterval time.Duration
	clock       application.Clock
	http        *http.Client

	mu          sync.Mutex
	session     Session
	lastAttempt time.Time
}

func NewSessionManager(baseURL, apiKey, email, password string, minInterval time.Duration, clock application.Clock) *SessionManager {
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &SessionManager{
		authURL:     strings.TrimRight(baseURL, "/") + "/auth/v1",
		apiKey:      apiKey,
		email:       email,
		password:    password,
		minInterval: minInterval,
		clock:       clock,
		http:        &http.Client{Timeout: 15 * time.Second},
	}
}

// AccessToken returns the current bearer credential, empty when no session
// has been established yet (callers fall back to the api key).
func (m *SessionManager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.AccessToken
}

// SignIn performs the password login handshake. An attempt inside the
// rate-limit window is skipped without error: the previous attempt, failed
// or not, already consumed this window.
func (m *SessionManager) SignIn(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if !m.lastAttempt.IsZero() && now.Sub(m.lastAttempt) < m.minInterval {
		return nil
	}
	m.lastAttempt = now

	log.Printf("platform login account=%s", m.email)
	session, err := m.passwordGrant(ctx)
	if err != nil {
		return err
	}
	session.IssuedAt = now
	m.session = session
	return nil
}

// HandleError is the recovery path invoked after an authentication-shaped
// downstream failure. It re-signs-in within the rate limit and swallows any
// error: auth failure must never crash the caller, the system stays degraded
// until a later sign-in succeeds.
func (m *SessionManager) HandleError(ctx context.Context) {
	if err := m.SignIn(ctx); err != nil {
		log.Printf("failed to sign in on error: %v", err)
	}
}

func (m *SessionManager) passwordGrant(ctx context.Context) (Session, error) {
	body, err := json.Marshal(map[string]string{
		"email":    m.email,
		"password": m.password,
	})
	if err != nil {
		return Session{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.authURL+"/token?grant_type=password", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}
	req.Header.Set("apiKey", m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		return Session{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Session{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Session{}, fmt.Errorf("login rejected: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return Session{}, fmt.Errorf("decode login response: %w", err)
	}
	if out.AccessToken == "" {
		return Session{}, fmt.Errorf("login response carried no access token")
	}
	return Session{AccessToken: out.AccessToken}, nil
}
