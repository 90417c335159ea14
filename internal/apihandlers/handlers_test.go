package apihandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memcat/internal/app"
	"memcat/internal/config"
	"memcat/internal/costtracker"
	"memcat/internal/llm"
	"memcat/internal/models"
	"memcat/pkg/categorizer"
)

// scriptedClient answers every request with reply, or fails when fail is set.
type scriptedClient struct {
	reply string
	fail  atomic.Bool
}

func (s *scriptedClient) GenerateResponse(context.Context, []categorizer.Message, categorizer.ResponseFormat, float64) (string, error) {
	if s.fail.Load() {
		return "", errors.New("connection reset by peer")
	}
	return s.reply, nil
}
func (s *scriptedClient) Name() string  { return "openai" }
func (s *scriptedClient) Model() string { return "scripted" }

func newTestRouter(t *testing.T, client *scriptedClient) (*gin.Engine, *app.App) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Database.URL = "sqlite://:memory:"
	cfg.Categorization.OpenaiApiKey = "sk-test"
	cfg.Categorization.Cache.Enabled = false
	cfg.Categorization.Retry = categorizer.RetryPolicy{MaxAttempts: 2, Multiplier: 1, Min: 1, Max: 1, Unit: time.Millisecond}
	build := func(context.Context, config.CategorizationConfig, costtracker.Tracker) (llm.Client, error) {
		return client, nil
	}
	a, err := app.NewApp(context.Background(), cfg, app.Options{Builder: build})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })

	router := gin.New()
	RegisterRoutes(router, NewAPIHandler(a))
	return router, a
}

func doJSON(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type memoryEnvelope struct {
	Data models.Memory `json:"data"`
}

func createMemory(t *testing.T, router http.Handler, content string) models.Memory {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/api/v1/memories", `{"content":"`+content+`","user_id":"alice"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var env memoryEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func TestCreateMemory(t *testing.T) {
	router, _ := newTestRouter(t, &scriptedClient{reply: `{"categories": ["Health", " fitness "]}`})

	m := createMemory(t, router, "ran a half marathon")
	assert.Equal(t, "ran a half marathon", m.Content)
	assert.Equal(t, "alice", m.UserID)
	assert.Equal(t, []string{"fitness", "health"}, m.Categories)
}

func TestCreateMemory_BadRequest(t *testing.T) {
	router, _ := newTestRouter(t, &scriptedClient{reply: `{"categories": []}`})

	w := doJSON(t, router, http.MethodPost, "/api/v1/memories", `{"user_id":"alice"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"bad_request"`)

	w = doJSON(t, router, http.MethodPost, "/api/v1/memories", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateMemory_ModelDownStillCreates(t *testing.T) {
	client := &scriptedClient{}
	client.fail.Store(true)
	router, _ := newTestRouter(t, client)

	m := createMemory(t, router, "remember the milk")
	assert.Empty(t, m.Categories)
}

func TestMemoryEndpoints(t *testing.T) {
	router, _ := newTestRouter(t, &scriptedClient{reply: "```json\n{\"categories\": [\"travel\"]}\n```"})
	m := createMemory(t, router, "booked flights to Tokyo")
	path := "/api/v1/memories/" + m.ID.String()

	w := doJSON(t, router, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"categories":["travel"]`)

	w = doJSON(t, router, http.MethodGet, "/api/v1/memories?category=travel&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Items []models.Memory `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, m.ID, list.Items[0].ID)

	w = doJSON(t, router, http.MethodPut, path, `{"content":"booked flights to Osaka"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Osaka")

	w = doJSON(t, router, http.MethodPost, path+"/categorize", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"categories":["travel"]`)

	w = doJSON(t, router, http.MethodPost, path+"/archive", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"archived"`)

	w = doJSON(t, router, http.MethodPut, path, `{"content":"too late"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"not_found"`)
}

func TestMemoryEndpoints_BadInput(t *testing.T) {
	router, _ := newTestRouter(t, &scriptedClient{reply: `{"categories": []}`})

	w := doJSON(t, router, http.MethodGet, "/api/v1/memories/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/memories?limit=-3", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodGet, "/api/v1/memories?state=frozen", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/v1/memories/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategorizeMemory_ExhaustedIsBadGateway(t *testing.T) {
	client := &scriptedClient{reply: `{"categories": ["work"]}`}
	router, _ := newTestRouter(t, client)
	m := createMemory(t, router, "weekly sync moved")

	client.fail.Store(true)
	w := doJSON(t, router, http.MethodPost, "/api/v1/memories/"+m.ID.String()+"/categorize", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "retries exhausted")
}

func TestCategorizeText(t *testing.T) {
	client := &scriptedClient{reply: `Sure! {"categories": ["Finance"]}`}
	router, _ := newTestRouter(t, client)

	w := doJSON(t, router, http.MethodPost, "/api/v1/categorize", `{"text":"paid the rent"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":["finance"],"status":"ok"}`, w.Body.String())

	client.reply = `{"labels": ["finance"]}`
	w = doJSON(t, router, http.MethodPost, "/api/v1/categorize", `{"text":"paid the rent"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":[],"status":"schema_violation"}`, w.Body.String())

	client.fail.Store(true)
	w = doJSON(t, router, http.MethodPost, "/api/v1/categorize", `{"text":"paid the rent"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"categories":[],"status":"exhausted"}`, w.Body.String())

	w = doJSON(t, router, http.MethodPost, "/api/v1/categorize", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCategoriesAndUsage(t *testing.T) {
	router, a := newTestRouter(t, &scriptedClient{reply: `{"categories": ["work", "family"]}`})
	createMemory(t, router, "took the kids to the office")
	createMemory(t, router, "family dinner")

	w := doJSON(t, router, http.MethodGet, "/api/v1/categories", "")
	require.Equal(t, http.StatusOK, w.Code)
	var cats struct {
		Items []models.Category `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cats))
	require.Len(t, cats.Items, 2)
	assert.Equal(t, "family", cats.Items[0].Name)
	assert.Equal(t, int64(2), cats.Items[0].MemoryCount)

	require.NoError(t, a.CostTracker.Record(context.Background(), costtracker.Usage{
		Provider: "openai", Model: "scripted", Operation: models.ServiceTypeCategorization, InputTokens: 10, OutputTokens: 2,
	}))
	w = doJSON(t, router, http.MethodGet, "/api/v1/usage", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, strings.Count(w.Body.String(), `"provider_name":"openai"`))

	w = doJSON(t, router, http.MethodGet, "/api/v1/usage/summary", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_input_tokens":10`)
}

func TestHealth(t *testing.T) {
	router, a := newTestRouter(t, &scriptedClient{})
	w := doJSON(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, a.Store.Close())
	w = doJSON(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
