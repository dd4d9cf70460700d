package http

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/relaychat/relaychat-server/internal/auth"
	"github.com/relaychat/relaychat-server/internal/config"
	"github.com/relaychat/relaychat-server/internal/core"
	"github.com/relaychat/relaychat-server/internal/store"
	"github.com/relaychat/relaychat-server/internal/store/sqlite"
)

// testEnv bundles a fully wired server with the pieces tests poke at
// directly.
type testEnv struct {
	ts       *httptest.Server
	registry *core.Registry
	store    store.Store
}

// startTestServer wires registry, pipeline, auth and store over an in-memory
// database and serves them through httptest.
func startTestServer(t *testing.T) *testEnv {
	t.Helper()

	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	jwtConfig := &auth.JWTConfig{
		Secret: []byte("test-secret-change-me"),
		Issuer: "test",
		TTL:    time.Hour,
	}
	authService := auth.NewService(st, jwtConfig)

	logger := zerolog.Nop()
	registry := core.NewRegistry(&logger)
	pipeline := core.NewPipeline(registry, st, &logger)

	cfg := config.Config{
		Addr:              ":0",
		ReadHeaderTimeout: time.Second,
		ShutdownTimeout:   time.Second,
	}

	server := NewServer(registry, pipeline, authService, st, cfg, &logger)
	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, registry: registry, store: st}
}

// signupUser registers a user through the API and returns the issued token.
func (env *testEnv) signupUser(t *testing.T, username, password string) string {
	t.Helper()

	body, _ := json.Marshal(SignupRequest{Username: username, Password: password})
	resp, err := env.ts.Client().Post(env.ts.URL+"/api/signup", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("signup request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("signup %q: unexpected status %d", username, resp.StatusCode)
	}

	var auth AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	if auth.Token == "" {
		t.Fatalf("signup %q: empty token", username)
	}
	return auth.Token
}

// waitForCount polls until the channel has the expected number of
// subscribers, failing after a deadline. WebSocket registration happens
// server-side after the client handshake returns, so tests synchronize on
// the registry before sending.
func (env *testEnv) waitForCount(t *testing.T, key core.ChannelKey, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if env.registry.Count(key) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("channel %+v never reached %d subscribers", key, want)
}
