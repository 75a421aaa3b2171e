package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/codepad/apperr"
	"github.com/isdmx/codepad/config"
	"github.com/isdmx/codepad/gateway"
	"github.com/isdmx/codepad/logger"
	"github.com/isdmx/codepad/marketplace"
	"github.com/isdmx/codepad/mcpserver"
	"github.com/isdmx/codepad/project"
	"github.com/isdmx/codepad/session"
)

// fakeController mimics the container controller's /start and /stop endpoints
type fakeController struct {
	mu         sync.Mutex
	next       int
	started    map[string]string
	stopped    []string
	stopStatus int
}

func newFakeController() *fakeController {
	return &fakeController{started: make(map[string]string), stopStatus: http.StatusOK}
}

func (c *fakeController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	switch r.URL.Path {
	case "/start":
		c.next++
		id := fmt.Sprintf("c%d", c.next)
		c.started[id] = body["user_id"]
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"container_id": id,
			"editor_url":   "https://editor.example/" + id,
		})
	case "/stop":
		c.stopped = append(c.stopped, body["container_id"])
		w.WriteHeader(c.stopStatus)
	default:
		http.NotFound(w, r)
	}
}

func (c *fakeController) stops() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.stopped...)
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Server:     config.ServerConfig{Transport: "stdio", HTTPPort: 8080},
		Controller: config.ControllerConfig{BaseURL: baseURL, ProjectID: "test_project", MaxResponseBytes: 2000, RequestTimeoutSec: 5},
		Session: config.SessionConfig{
			ExpirySec:      300,
			StopOnShutdown: true,
			Cleanup:        config.CleanupConfig{MaxRetries: 2, InitialBackoffMS: 10, MaxBackoffSec: 1},
		},
		Marketplace: config.MarketplaceConfig{SeedSamples: true},
		Metrics:     config.MetricsConfig{Addr: ":9090"},
		Logging:     config.LoggingConfig{Mode: "development", Level: "debug"},
	}
}

func newManager(t *testing.T, cfg *config.Config, reg prometheus.Registerer, opts ...session.Option) *session.Manager {
	t.Helper()
	log := zaptest.NewLogger(t)
	initial, maxDelay := cfg.GetCleanupBackoff()
	gw := gateway.New(log, gateway.WithTimeout(cfg.GetRequestTimeout()))

	opts = append(opts, session.WithMetrics(session.NewMetrics(reg)))
	return session.NewManager(log, session.Config{
		ControllerURL:         cfg.Controller.BaseURL,
		ProjectID:             cfg.Controller.ProjectID,
		MaxResponseBytes:      cfg.Controller.MaxResponseBytes,
		Expiry:                cfg.GetSessionExpiry(),
		StopOnShutdown:        cfg.Session.StopOnShutdown,
		CleanupMaxRetries:     cfg.Session.Cleanup.MaxRetries,
		CleanupInitialBackoff: initial,
		CleanupMaxBackoff:     maxDelay,
	}, gw, session.NewRegistry(), opts...)
}

// TestIntegrationConfigLogger tests that a loaded configuration produces a working logger
func TestIntegrationConfigLogger(t *testing.T) {
	cfg := testConfig("http://localhost:5000")

	testLogger, err := logger.NewFromConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, testLogger)

	testLogger.Info("Integration test started")
	_ = testLogger.Sync()
}

// TestIntegrationSessionLifecycle drives the manager through the real gateway against a fake controller
func TestIntegrationSessionLifecycle(t *testing.T) {
	controller := newFakeController()
	srv := httptest.NewServer(controller)
	defer srv.Close()

	cfg := testConfig(srv.URL + "/")
	reg := prometheus.NewRegistry()
	m := newManager(t, cfg, reg)
	ctx := context.Background()

	editorURL, err := m.Start(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "https://editor.example/c1", editorURL)

	h, ok := m.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, "c1", h.ContainerID)

	state, ok := m.State("c1")
	require.True(t, ok)
	assert.Equal(t, session.StateLive, state)

	msg, err := m.Stop(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, session.StopConfirmation, msg)
	assert.Equal(t, []string{"c1"}, controller.stops())

	_, ok = m.Lookup("alice")
	assert.False(t, ok)

	// Stopping again is accepted by the controller and still succeeds.
	msg, err = m.Stop(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, session.StopConfirmation, msg)

	assert.InDelta(t, 1, counterTotal(t, reg, "codepad_sessions_started_total"), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "codepad_sessions_started_total"))
	require.NoError(t, m.Shutdown(ctx))
}

// TestIntegrationControllerRejection checks that non-200 replies surface as controller rejections
func TestIntegrationControllerRejection(t *testing.T) {
	controller := newFakeController()
	controller.stopStatus = http.StatusNotFound
	srv := httptest.NewServer(controller)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	m := newManager(t, cfg, prometheus.NewRegistry())

	_, err := m.Stop(context.Background(), "c42")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindControllerRejected))
	assert.Equal(t, http.StatusNotFound, apperr.StatusOf(err))
	assert.Contains(t, err.Error(), "non-200 status code: 404")
}

// TestIntegrationGatewayUnreachable checks that a dead controller yields a transport failure
func TestIntegrationGatewayUnreachable(t *testing.T) {
	srv := httptest.NewServer(newFakeController())
	url := srv.URL
	srv.Close()

	m := newManager(t, testConfig(url), prometheus.NewRegistry())

	_, err := m.Start(context.Background(), "alice")
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindGatewayUnreachable))
	assert.Empty(t, m.Sessions())
}

// TestIntegrationExpiry checks that an expired session is stopped without a caller
func TestIntegrationExpiry(t *testing.T) {
	controller := newFakeController()
	srv := httptest.NewServer(controller)
	defer srv.Close()

	cfg := testConfig(srv.URL)

	// Shorten the five minute window so the timer fires during the test.
	sched := session.NewTimerScheduler()
	defer sched.Stop()
	m := newManager(t, cfg, prometheus.NewRegistry(), session.WithScheduler(&shortScheduler{Scheduler: sched, delay: 20 * time.Millisecond}))

	_, err := m.Start(context.Background(), "alice")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(controller.stops()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"c1"}, controller.stops())
	assert.Eventually(t, func() bool {
		return len(m.Sessions()) == 0
	}, time.Second, 10*time.Millisecond)
}

// TestIntegrationMCPServer drives tools over JSON-RPC on the real manager and stores
func TestIntegrationMCPServer(t *testing.T) {
	controller := newFakeController()
	srv := httptest.NewServer(controller)
	defer srv.Close()

	cfg := testConfig(srv.URL)
	log := zaptest.NewLogger(t)
	m := newManager(t, cfg, prometheus.NewRegistry())

	templates := marketplace.NewStore()
	n, err := templates.SeedSamples()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	s, err := mcpserver.New(cfg, log, m, project.NewMemoryStore(), templates)
	require.NoError(t, err)

	var listed struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	rpc(t, s, "tools/list", map[string]any{}, &listed)
	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.Len(t, names, 19)
	assert.Subset(t, names, []string{"start_session", "stop_session", "create_project", "search_templates", "rate_template"})

	text, isError := callTool(t, s, "start_session", map[string]any{"user_id": "alice"})
	require.False(t, isError, text)
	assert.Equal(t, "https://editor.example/c1", text)

	text, isError = callTool(t, s, "stop_session", map[string]any{"container_id": "c1"})
	require.False(t, isError, text)
	assert.Equal(t, session.StopConfirmation, text)

	text, isError = callTool(t, s, "rate_template", map[string]any{"template_id": "tpl_missing", "rating": 3})
	assert.True(t, isError)
	assert.Contains(t, text, "not found")

	require.NoError(t, m.Shutdown(context.Background()))
}

// TestIntegrationShutdownStopsSessions checks that live sessions are released on shutdown
func TestIntegrationShutdownStopsSessions(t *testing.T) {
	controller := newFakeController()
	srv := httptest.NewServer(controller)
	defer srv.Close()

	m := newManager(t, testConfig(srv.URL), prometheus.NewRegistry())
	ctx := context.Background()

	_, err := m.Start(ctx, "alice")
	require.NoError(t, err)
	_, err = m.Start(ctx, "bob")
	require.NoError(t, err)

	require.NoError(t, m.Shutdown(ctx))
	assert.ElementsMatch(t, []string{"c1", "c2"}, controller.stops())
	assert.Empty(t, m.Sessions())
}

// shortScheduler shrinks every delay so expiry can be observed quickly
type shortScheduler struct {
	session.Scheduler
	delay time.Duration
}

func (s *shortScheduler) Schedule(key string, delay time.Duration, fn func()) {
	if delay > s.delay {
		delay = s.delay
	}
	s.Scheduler.Schedule(key, delay, fn)
}

// counterTotal sums every series of the named counter family
func counterTotal(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range f.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

// rpc sends one JSON-RPC request to the MCP server and decodes its result into out
func rpc(t *testing.T, s *mcpserver.MCPServer, method string, params map[string]any, out any) {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	require.NoError(t, err)

	reply, err := json.Marshal(s.GetMCPServer().HandleMessage(context.Background(), raw))
	require.NoError(t, err)

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(reply, &envelope))
	require.Nil(t, envelope.Error, "rpc %s failed", method)
	require.NoError(t, json.Unmarshal(envelope.Result, out))
}

func callTool(t *testing.T, s *mcpserver.MCPServer, name string, args map[string]any) (string, bool) {
	t.Helper()
	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	}
	rpc(t, s, "tools/call", map[string]any{"name": name, "arguments": args}, &result)
	require.NotEmpty(t, result.Content)
	return result.Content[0].Text, result.IsError
}
