package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"auticare/app/agent"
	"auticare/app/bot"
	"auticare/config"
	"auticare/memory"
	"auticare/metrics"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	tokenCounter = agent.EstimateMessages
}

const recordsCSV = `patient_id,patient_name,gender,patient_data,suggestion
992,John Doe,Male,"Autism level 1, speech delay",Speech therapy twice a week
17,Pamela Smith,Female,ADHD with anxiety,Behavioral therapy
`

const knowledgeText = "Early signs of autism include limited eye contact and delayed speech. " +
	"Speech therapy helps children build communication skills. " +
	"Occupational therapy supports sensory processing and daily living skills."

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	records := filepath.Join(dir, "records.csv")
	doc := filepath.Join(dir, "guide.txt")
	require.NoError(t, os.WriteFile(records, []byte(recordsCSV), 0o644))
	require.NoError(t, os.WriteFile(doc, []byte(knowledgeText), 0o644))

	return &config.Config{
		Pipeline:      "graph",
		MemorySize:    memory.DefaultSize,
		RecordsFile:   records,
		KnowledgeFile: doc,
		LLM:           config.LLMConfig{Timeout: time.Second, MaxTokens: 128, PromptTokenBudget: 6000},
		Loader: config.LoaderConfig{
			SourceDir:    filepath.Join(dir, "source"),
			ChunkSize:    500,
			MinChunkSize: 10,
		},
	}
}

func testApp(t *testing.T) (*fiber.App, *config.Config) {
	t.Helper()
	cfg := testConfig(t)
	m := metrics.New()
	deps, err := Bootstrap(context.Background(), cfg, m, quiet)
	require.NoError(t, err)
	t.Cleanup(deps.Close)
	return NewApp(deps, m, cfg.Loader.SourceDir, quiet), cfg
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	app, _ := testApp(t)
	status, body := do(t, app, "GET", "/api/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ready", body["doctor_chatbot"])
	assert.Equal(t, "ready", body["patient_chatbot"])
}

func TestDoctorChatFlow(t *testing.T) {
	app, _ := testApp(t)

	status, body := do(t, app, "POST", "/api/doctor/chat", `{"message":"Hello Doctor!"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, bot.DoctorGreeting, body["response"])
	assert.NotEmpty(t, body["timestamp"])

	status, body = do(t, app, "POST", "/api/doctor/chat", `{"message":"patient id 992"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body["response"], "John Doe")

	_, body = do(t, app, "GET", "/api/doctor/memory", "")
	assert.Contains(t, body["memory"], "You asked: patient id 992")

	_, body = do(t, app, "POST", "/api/doctor/clear-memory", "")
	assert.Equal(t, memory.ClearedReply, body["message"])

	_, body = do(t, app, "GET", "/api/doctor/memory", "")
	assert.Equal(t, memory.EmptyMessage, body["memory"])
}

func TestChatRejectsBadInput(t *testing.T) {
	app, _ := testApp(t)
	cases := []struct {
		path, body, want string
	}{
		{"/api/doctor/chat", `{"message":"   "}`, "Message cannot be empty"},
		{"/api/patient/chat", `{"message":""}`, "Message cannot be empty"},
		{"/api/user/chat", `{}`, "Message cannot be empty"},
		{"/api/doctor/chat", `{"message":`, "invalid JSON request"},
	}
	for _, c := range cases {
		status, body := do(t, app, "POST", c.path, c.body)
		assert.Equal(t, http.StatusBadRequest, status, c.body)
		assert.Equal(t, false, body["success"])
		assert.Equal(t, c.want, body["error"])
	}
}

func TestPatientAndUserChat(t *testing.T) {
	app, _ := testApp(t)
	for _, path := range []string{"/api/patient/chat", "/api/user/chat"} {
		status, body := do(t, app, "POST", path, `{"message":"hi","history":[{"role":"user","content":"earlier"}]}`)
		assert.Equal(t, http.StatusOK, status)
		assert.Equal(t, bot.PatientGreeting, body["response"])
		_, hasTimestamp := body["timestamp"]
		assert.False(t, hasTimestamp)
	}

	_, body := do(t, app, "POST", "/api/patient/chat", `{"message":"does occupational therapy help"}`)
	assert.Contains(t, body["response"], "Occupational therapy supports sensory processing")
}

func TestPatientSearch(t *testing.T) {
	app, _ := testApp(t)

	status, body := do(t, app, "GET", "/api/doctor/patients/search?q=pamela%20smith&k=1", "")
	require.Equal(t, http.StatusOK, status)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	assert.Contains(t, results[0], "Pamela Smith")

	status, _ = do(t, app, "GET", "/api/doctor/patients/search?k=1", "")
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProvidersWithoutKeys(t *testing.T) {
	app, _ := testApp(t)
	status, body := do(t, app, "GET", "/api/providers", "")
	assert.Equal(t, http.StatusOK, status)
	bots := body["bots"].(map[string]any)
	assert.Empty(t, bots["doctor"])
	assert.Empty(t, bots["patient"])
}

func upload(t *testing.T, app *fiber.App, name, content string) int {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/api/knowledge/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestKnowledgeUpload(t *testing.T) {
	app, cfg := testApp(t)

	assert.Equal(t, http.StatusOK, upload(t, app, "guide.pdf", "%PDF-1.4"))
	data, err := os.ReadFile(filepath.Join(cfg.Loader.SourceDir, "guide.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))

	partials, _ := filepath.Glob(filepath.Join(cfg.Loader.SourceDir, ".*"))
	assert.Empty(t, partials)

	assert.Equal(t, http.StatusBadRequest, upload(t, app, "run.exe", "MZ"))
}

func TestMetricsExposed(t *testing.T) {
	app, _ := testApp(t)
	do(t, app, "GET", "/api/health", "")

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), `auticare_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestUnknownPipeline(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pipeline = "tree"
	_, err := Bootstrap(context.Background(), cfg, metrics.New(), quiet)
	assert.Error(t, err)
}

type panicIndex struct{}

func (panicIndex) Search(context.Context, string, int) ([]string, error) {
	panic("index driver bug")
}

func TestPanicsDoNotEscape(t *testing.T) {
	cfg := testConfig(t)
	m := metrics.New()
	deps, err := Bootstrap(context.Background(), cfg, m, quiet)
	require.NoError(t, err)
	t.Cleanup(deps.Close)
	deps.Patient.Knowledge = panicIndex{}

	app := NewApp(deps, m, cfg.Loader.SourceDir, quiet)
	status, body := do(t, app, "POST", "/api/patient/chat", `{"message":"why do routines matter?"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, bot.GenericErrorReply, body["response"])

	app.Get("/api/boom", func(*fiber.Ctx) error { panic("handler bug") })
	status, body = do(t, app, "GET", "/api/boom", "")
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
}
