package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/apify-webhook-monitor/internal/app"
	"github.com/JakeFAU/apify-webhook-monitor/internal/config"
	"github.com/JakeFAU/apify-webhook-monitor/internal/webhook"
)

func TestMain(m *testing.M) {
	newApp = func(cfg config.Config) (*app.App, error) {
		return app.New(cfg, zap.NewNop()), nil
	}
	os.Exit(m.Run())
}

// fakeApify serves run status, dataset items and actor metadata.
type fakeApify struct {
	status string
	items  string
}

func (f fakeApify) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != "tok" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	switch r.URL.Path {
	case "/actor-runs/abc123":
		fmt.Fprintf(w, `{"data":{"id":"abc123","status":%q,"defaultDatasetId":"ds1"}}`, f.status)
	case "/datasets/ds1/items":
		fmt.Fprint(w, f.items)
	case "/acts/actor1":
		fmt.Fprint(w, `{"data":{"id":"actor1","name":"apollo-scraper"}}`)
	default:
		http.NotFound(w, r)
	}
}

type hookCapture struct {
	mu       sync.Mutex
	status   int
	payloads []map[string]any
	agents   []string
}

func (h *hookCapture) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var decoded map[string]any
	_ = json.Unmarshal(body, &decoded)
	h.mu.Lock()
	h.payloads = append(h.payloads, decoded)
	h.agents = append(h.agents, r.UserAgent())
	status := h.status
	h.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (h *hookCapture) setStatus(status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.status = status
}

func (h *hookCapture) snapshot() ([]map[string]any, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.payloads...), append([]string(nil), h.agents...)
}

type env struct {
	cfgPath string
	hook    *hookCapture
}

func newEnv(t *testing.T, apifyHandler http.Handler, token string) env {
	t.Helper()
	apifySrv := httptest.NewServer(apifyHandler)
	t.Cleanup(apifySrv.Close)
	hook := &hookCapture{}
	hookSrv := httptest.NewServer(hook)
	t.Cleanup(hookSrv.Close)

	cfg := fmt.Sprintf(`
apify:
  base_url: %s
  token: %q
  actor_id: actor1
webhook:
  url: %s/hook
  require_https: false
monitor:
  poll_interval_seconds: 1
  max_attempts: 2
  oneshot_max_attempts: 2
server:
  address: %s
storage:
  provider: memory
logging:
  development: false
`, apifySrv.URL, token, hookSrv.URL, apifySrv.URL)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return env{cfgPath: path, hook: hook}
}

func execute(t *testing.T, e env, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	err := run(root, append([]string{"--config", e.cfgPath}, args...))
	return out.String(), err
}

func TestWatch_MissingRunID(t *testing.T) {
	e := newEnv(t, fakeApify{status: "SUCCEEDED", items: "[]"}, "tok")
	_, err := execute(t, e)
	require.ErrorIs(t, err, errRunIDRequired)
}

func TestWatch_InvalidRunID(t *testing.T) {
	e := newEnv(t, fakeApify{status: "SUCCEEDED", items: "[]"}, "tok")
	_, err := execute(t, e, "abc-123")
	require.ErrorContains(t, err, "invalid run ID")
}

func TestWatch_MissingCredentials(t *testing.T) {
	e := newEnv(t, fakeApify{status: "SUCCEEDED", items: "[]"}, "")
	_, err := execute(t, e, "abc123")
	require.ErrorContains(t, err, "configuration incomplete")
}

func TestWatch_DeliversDataset(t *testing.T) {
	e := newEnv(t, fakeApify{status: "SUCCEEDED", items: `[{"name":"a"},{"name":"b"}]`}, "tok")

	out, err := execute(t, e, "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "2 records delivered")

	payloads, agents := e.hook.snapshot()
	require.Len(t, payloads, 1)
	assert.Equal(t, webhook.UserAgentAutoMonitor, agents[0])
	meta := payloads[0]["metadata"].(map[string]any)
	assert.Equal(t, true, meta["success"])
	assert.Equal(t, float64(2), meta["totalRecords"])
	assert.Equal(t, webhook.SenderAutoMonitor, meta["sender"])
}

func TestWatch_FailedRun(t *testing.T) {
	e := newEnv(t, fakeApify{status: "FAILED"}, "tok")

	out, err := execute(t, e, "abc123")
	require.Error(t, err)
	assert.Contains(t, out, "failure reported")

	payloads, _ := e.hook.snapshot()
	require.Len(t, payloads, 1)
	assert.Equal(t, false, payloads[0]["metadata"].(map[string]any)["success"])
}

func TestRun_ClosesAppWhenCommandFails(t *testing.T) {
	e := newEnv(t, fakeApify{status: "FAILED"}, "tok")

	var built *app.App
	prev := newApp
	newApp = func(cfg config.Config) (*app.App, error) {
		built = app.New(cfg, zap.NewNop())
		return built, nil
	}
	t.Cleanup(func() { newApp = prev })

	_, err := execute(t, e, "abc123")
	require.Error(t, err)
	require.NotNil(t, built)
	assert.True(t, built.Closed())
}

func TestSend_RequiresSucceededRun(t *testing.T) {
	e := newEnv(t, fakeApify{status: "RUNNING"}, "tok")

	_, err := execute(t, e, "send", "abc123")
	require.ErrorContains(t, err, "did not succeed")
	payloads, _ := e.hook.snapshot()
	assert.Empty(t, payloads)
}

func TestSend_DeliversEmptyDataset(t *testing.T) {
	e := newEnv(t, fakeApify{status: "SUCCEEDED", items: "[]"}, "tok")

	out, err := execute(t, e, "send", "abc123")
	require.NoError(t, err)
	assert.Contains(t, out, "Sent 0 records")

	payloads, agents := e.hook.snapshot()
	require.Len(t, payloads, 1)
	assert.Equal(t, webhook.UserAgentSender, agents[0])
	assert.Equal(t, []any{}, payloads[0]["data"])
}

func TestSend_WebhookRejects(t *testing.T) {
	e := newEnv(t, fakeApify{status: "SUCCEEDED", items: `[{"name":"a"}]`}, "tok")
	e.hook.setStatus(http.StatusBadGateway)

	_, err := execute(t, e, "send", "abc123")
	var de *webhook.DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, http.StatusBadGateway, de.StatusCode)
}

func TestCheck(t *testing.T) {
	e := newEnv(t, fakeApify{}, "tok")

	out, err := execute(t, e, "check")
	require.NoError(t, err)
	assert.Contains(t, out, "PASS webhook")
	assert.Contains(t, out, "PASS actor actor1 (apollo-scraper)")

	payloads, agents := e.hook.snapshot()
	require.Len(t, payloads, 1)
	assert.Equal(t, true, payloads[0]["test"])
	assert.Equal(t, webhook.UserAgentConnectivityCheck, agents[0])
}

func TestCheck_ReportsFailures(t *testing.T) {
	e := newEnv(t, fakeApify{}, "tok")
	e.hook.setStatus(http.StatusInternalServerError)

	out, err := execute(t, e, "check")
	require.ErrorIs(t, err, errCheckFailed)
	assert.Contains(t, out, "FAIL webhook")
	assert.Contains(t, out, "PASS actor")
}
