// Package coachapitest provides an in-memory coach backend for tests.
package coachapitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/myrjola/runcoach/internal/coach"
)

type account struct {
	id       int
	password string
}

// Backend mimics the endpoints of the coach backend. Profile submission marks verification pending; tests move
// the jobs along with [Backend.SetState] and [Backend.SetVerification].
type Backend struct {
	server *httptest.Server
	secret []byte

	mu           sync.Mutex
	accounts     map[string]account
	states       map[int]coach.UserState
	verification map[int]coach.VerificationStatus
	verifyFault  map[int]string
	profiles     map[int]coach.UserProfileInput
	calls        map[string]int
	// TokenTTL is the lifetime of issued tokens.
	TokenTTL time.Duration
}

// NewBackend starts a backend that is shut down when t finishes.
func NewBackend(t testing.TB) *Backend {
	t.Helper()
	b := &Backend{
		secret:       []byte("coachapitest-secret"),
		accounts:     make(map[string]account),
		states:       make(map[int]coach.UserState),
		verification: make(map[int]coach.VerificationStatus),
		verifyFault:  make(map[int]string),
		profiles:     make(map[int]coach.UserProfileInput),
		calls:        make(map[string]int),
		TokenTTL:     time.Hour,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /register", b.register)
	mux.HandleFunc("POST /login", b.login)
	mux.HandleFunc("GET /me", b.authed(b.me))
	mux.HandleFunc("GET /user/state", b.authed(b.userState))
	mux.HandleFunc("POST /profiles", b.authed(b.createProfile))
	mux.HandleFunc("POST /profiles/proceed", b.authed(b.proceed))
	mux.HandleFunc("GET /profiles/verification", b.authed(b.getVerification))
	b.server = httptest.NewServer(b.count(mux))
	t.Cleanup(b.server.Close)
	return b
}

// URL is the base URL of the backend.
func (b *Backend) URL() string {
	return b.server.URL
}

// AddUser registers an account directly and returns its id.
func (b *Backend) AddUser(email, password string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.addUserLocked(email, password)
}

func (b *Backend) addUserLocked(email, password string) int {
	id := len(b.accounts) + 1
	b.accounts[email] = account{id: id, password: password}
	return id
}

// Token issues a token for email that expires after ttl. A negative ttl yields an expired token.
func (b *Backend) Token(email string, ttl time.Duration) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sign(b.accounts[email].id, ttl)
}

func (b *Backend) sign(id int, ttl time.Duration) string {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.Itoa(id),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

// SetState replaces the user state of email.
func (b *Backend) SetState(email string, state coach.UserState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[b.accounts[email].id] = state
}

// State returns the user state of email.
func (b *Backend) State(email string) coach.UserState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[b.accounts[email].id]
}

// SetVerification replaces the verification polling response of email and clears a fault set by
// [Backend.FailVerification].
func (b *Backend) SetVerification(email string, status coach.VerificationStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.accounts[email].id
	b.verification[id] = status
	delete(b.verifyFault, id)
}

// FailVerification makes the verification endpoint of email answer 500 with detail.
func (b *Backend) FailVerification(email, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifyFault[b.accounts[email].id] = detail
}

// Profile returns the last profile submitted by email.
func (b *Backend) Profile(email string) (coach.UserProfileInput, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[b.accounts[email].id]
	return p, ok
}

// Calls returns how many requests hit pattern, for example "GET /user/state".
func (b *Backend) Calls(pattern string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[pattern]
}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": "Field required"}},
		})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.accounts[body.Email]; ok {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	id := b.addUserLocked(body.Email, body.Password)
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "email": body.Email})
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid form")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[r.PostForm.Get("username")]
	if !ok || acc.password != r.PostForm.Get("password") {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": b.sign(acc.id, b.TokenTTL), "token_type": "bearer"})
}

func (b *Backend) authed(next func(w http.ResponseWriter, r *http.Request, userID int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(header[len(prefix):], &claims, func(*jwt.Token) (any, error) {
			return b.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		id, err := strconv.Atoi(claims.Subject)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next(w, r, id)
	}
}

func (b *Backend) me(w http.ResponseWriter, _ *http.Request, userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for email, acc := range b.accounts {
		if acc.id == userID {
			writeJSON(w, http.StatusOK, map[string]any{"id": acc.id, "email": email})
			return
		}
	}
	writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
}

func (b *Backend) userState(w http.ResponseWriter, _ *http.Request, userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.states[userID])
}

func (b *Backend) createProfile(w http.ResponseWriter, r *http.Request, userID int) {
	var in coach.UserProfileInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]string{{"msg": err.Error()}},
		})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.profiles[userID] = in
	state := b.states[userID]
	state.HasProfile = true
	state.VerificationStatus = coach.StatusPending
	state.VerificationResult = nil
	state.MacroplanStatus = coach.StatusNone
	state.WeeklyPlanStatus = coach.StatusNone
	b.states[userID] = state
	b.verification[userID] = coach.VerificationStatus{Status: coach.StatusPending}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Profile saved", "verification_status": "pending"})
}

func (b *Backend) proceed(w http.ResponseWriter, _ *http.Request, userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	state, ok := b.states[userID]
	if !ok || !state.HasProfile {
		writeDetail(w, http.StatusNotFound, "No profile found")
		return
	}
	state.MacroplanStatus = coach.StatusPending
	b.states[userID] = state
	writeJSON(w, http.StatusOK, map[string]string{"message": "Plan generation started"})
}

func (b *Backend) getVerification(w http.ResponseWriter, _ *http.Request, userID int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if detail, ok := b.verifyFault[userID]; ok {
		writeDetail(w, http.StatusInternalServerError, detail)
		return
	}
	status, ok := b.verification[userID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "No profile found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
