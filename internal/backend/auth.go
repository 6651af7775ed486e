package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/mekod/ledger/internal/logging"
)

// Refresh this close to expiry so a token does not die mid-request.
const expiryMargin = 30 * time.Second

// AuthClient talks to the project's auth endpoints and owns the current
// session for its connection identity. All methods are safe for concurrent
// use.
type AuthClient struct {
	http     *http.Client
	baseURL  string
	anonKey  string
	identity string
	store    SessionStore
	log      logging.Logger

	// refreshMu single-flights token refreshes: the refresh token is
	// single-use, so two callers racing the same exchange would burn it.
	refreshMu sync.Mutex

	mu        sync.Mutex
	session   *Session
	loaded    bool
	subs      map[int]*Subscription
	nextSubID int
}

func newAuthClient(baseURL, anonKey, identity string, httpClient *http.Client, store SessionStore, log logging.Logger) *AuthClient {
	return &AuthClient{
		http:     httpClient,
		baseURL:  baseURL,
		anonKey:  anonKey,
		identity: identity,
		store:    store,
		log:      log.With("component", "auth-client"),
		subs:     make(map[int]*Subscription),
	}
}

// GetSession returns the current session, or nil when the user is anonymous.
// An expired session is refreshed transparently; when the refresh is
// rejected the stale session is dropped and subscribers hear SignedOut.
// A dropped stale session is an anonymous state, not an error.
func (a *AuthClient) GetSession(ctx context.Context) (*Session, error) {
	a.mu.Lock()
	if !a.loaded {
		s, err := a.store.Load(a.identity)
		if err != nil {
			a.log.Warn(ctx, "session cache unreadable", "error", err)
		}
		a.session = s
		a.loaded = true
	}
	s := a.session
	a.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !s.Expired(time.Now(), expiryMargin) {
		return s, nil
	}
	return a.refreshCurrent(ctx)
}

// refreshCurrent exchanges the current refresh token for a fresh session.
// A caller that waited on refreshMu re-reads the session instead of spending
// the single-use token a second time, and a rejected exchange only signs out
// when the session it ran against is still the current one.
func (a *AuthClient) refreshCurrent(ctx context.Context) (*Session, error) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	a.mu.Lock()
	s := a.session
	a.mu.Unlock()

	if s == nil {
		return nil, nil
	}
	if !s.Expired(time.Now(), expiryMargin) {
		return s, nil
	}

	refreshed, err := a.refresh(ctx, s.RefreshToken)
	if err != nil {
		if a.dropSessionIf(s.RefreshToken) {
			a.log.Info(ctx, "session refresh rejected, dropping session", "error", err)
			a.emit(EventSignedOut, nil)
			return nil, nil
		}
		// A sign-in replaced the session while the exchange was in flight;
		// report whatever is current now.
		a.mu.Lock()
		cur := a.session
		a.mu.Unlock()
		return cur, nil
	}

	a.setSession(refreshed)
	a.emit(EventTokenRefreshed, refreshed)
	return refreshed, nil
}

// SignInWithPassword exchanges credentials for a session and announces
// SignedIn on success.
func (a *AuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var session Session
	if err := a.post(ctx, "/auth/v1/token?grant_type=password", body, &session); err != nil {
		return nil, err
	}

	a.setSession(&session)
	a.emit(EventSignedIn, &session)
	return &session, nil
}

// SignUp registers a new user. When the project auto-confirms email
// addresses the response carries a session and the user is signed in
// immediately; otherwise the returned session is nil and the user must
// confirm before signing in.
func (a *AuthClient) SignUp(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}

	var session Session
	if err := a.post(ctx, "/auth/v1/signup", body, &session); err != nil {
		return nil, err
	}

	if session.AccessToken == "" {
		return nil, nil
	}

	a.setSession(&session)
	a.emit(EventSignedIn, &session)
	return &session, nil
}

// SignOut revokes the session server-side (best effort) and always clears
// local state, announcing SignedOut. The remote call failing does not keep
// the user signed in locally.
func (a *AuthClient) SignOut(ctx context.Context) error {
	a.mu.Lock()
	s := a.session
	a.mu.Unlock()

	if s != nil {
		if err := a.postAuthorized(ctx, "/auth/v1/logout", s.AccessToken); err != nil {
			a.log.Warn(ctx, "remote sign-out failed, clearing local session anyway", "error", err)
		}
	}

	a.dropSession()
	a.emit(EventSignedOut, nil)
	return nil
}

// OnAuthStateChange registers fn for subsequent auth-state events. See
// Subscription for the teardown contract.
func (a *AuthClient) OnAuthStateChange(fn AuthStateFunc) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextSubID
	a.nextSubID++

	sub := &Subscription{fn: fn}
	sub.remove = func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
	a.subs[id] = sub
	return sub
}

// accessToken returns the token to authorize row requests with: the user's
// access token when signed in, the anon key otherwise.
func (a *AuthClient) accessToken() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		return a.session.AccessToken
	}
	return a.anonKey
}

func (a *AuthClient) setSession(s *Session) {
	a.mu.Lock()
	a.session = s
	a.loaded = true
	a.mu.Unlock()

	if err := a.store.Save(a.identity, s); err != nil {
		a.log.Warn(context.Background(), "persisting session failed", "error", err)
	}
}

func (a *AuthClient) dropSession() {
	a.mu.Lock()
	a.session = nil
	a.loaded = true
	a.mu.Unlock()

	if err := a.store.Clear(a.identity); err != nil {
		a.log.Warn(context.Background(), "clearing session cache failed", "error", err)
	}
}

// dropSessionIf clears the session only while it still carries the given
// refresh token. Reports whether anything was dropped.
func (a *AuthClient) dropSessionIf(refreshToken string) bool {
	a.mu.Lock()
	if a.session == nil || a.session.RefreshToken != refreshToken {
		a.mu.Unlock()
		return false
	}
	a.session = nil
	a.loaded = true
	a.mu.Unlock()

	if err := a.store.Clear(a.identity); err != nil {
		a.log.Warn(context.Background(), "clearing session cache failed", "error", err)
	}
	return true
}

// emit fans an event out to current subscribers. Callbacks run outside the
// client lock so they may call back into the client.
func (a *AuthClient) emit(event AuthEvent, session *Session) {
	a.mu.Lock()
	subs := make([]*Subscription, 0, len(a.subs))
	for _, sub := range a.subs {
		subs = append(subs, sub)
	}
	a.mu.Unlock()

	for _, sub := range subs {
		sub.dispatch(event, session)
	}
}

func (a *AuthClient) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	body := map[string]string{"refresh_token": refreshToken}

	var session Session
	if err := a.post(ctx, "/auth/v1/token?grant_type=refresh_token", body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// post sends an anon-key-authorized JSON request and decodes the response
// into out (which may be nil).
func (a *AuthClient) post(ctx context.Context, path string, body any, out any) error {
	return a.doPost(ctx, path, a.anonKey, body, out)
}

// postAuthorized sends a request authorized with the given access token.
func (a *AuthClient) postAuthorized(ctx context.Context, path, token string) error {
	return a.doPost(ctx, path, token, nil, nil)
}

func (a *AuthClient) doPost(ctx context.Context, path, token string, body any, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("apikey", a.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// decodeError maps a failed HTTP response to *Error. Auth and row endpoints
// use different shapes; pick whatever message is present.
func decodeError(resp *http.Response) error {
	var raw struct {
		Code             any    `json:"code"`
		Message          string `json:"message"`
		Msg              string `json:"msg"`
		ErrorField       string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(data, &raw)

	e := &Error{Status: resp.StatusCode}
	if code, ok := raw.Code.(string); ok {
		e.Code = code
	}
	for _, msg := range []string{raw.Message, raw.Msg, raw.ErrorDescription, raw.ErrorField} {
		if msg != "" {
			e.Message = msg
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}
