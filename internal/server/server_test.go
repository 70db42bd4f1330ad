package server_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "taskboard/docs"
	"taskboard/internal/config"
	"taskboard/internal/server"
	"taskboard/internal/storage"
	"taskboard/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:      "test-secret",
		JWTExpiry:      time.Hour,
		PublicBaseURL:  "http://localhost:8080",
		UploadTimeout:  time.Second,
		MaxUploadBytes: 1 << 20,
		CORSOrigins:    []string{"*"},
	}
}

func setupRouter(t *testing.T) *gin.Engine {
	return setupRouterWith(t, testConfig())
}

func setupRouterWith(t *testing.T, cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	return server.NewRouter(cfg, server.Deps{DB: testutil.NewDB(t), Store: store})
}

func call(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

type authBody struct {
	ID    string `json:"id"`
	Token string `json:"token"`
}

func register(t *testing.T, r *gin.Engine, name, email, role string) authBody {
	t.Helper()
	resp := call(t, r, http.MethodPost, "/api/users", "", map[string]string{
		"name": name, "email": email, "password": "password123", "role": role,
	})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())
	var body authBody
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	r := setupRouter(t)

	resp := call(t, r, http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"ok"}`, resp.Body.String())
}

func TestRoutes_EndToEnd(t *testing.T) {
	r := setupRouter(t)

	manager := register(t, r, "Mia Manager", "mia@example.com", "manager")
	worker := register(t, r, "Wes Worker", "wes@example.com", "")

	login := call(t, r, http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "WES@example.com", "password": "password123",
	})
	require.Equal(t, http.StatusOK, login.Code)

	users := call(t, r, http.MethodGet, "/api/users/get-users", manager.Token, nil)
	require.Equal(t, http.StatusOK, users.Code)
	assert.Contains(t, users.Body.String(), "wes@example.com")
	assert.NotContains(t, users.Body.String(), "mia@example.com")

	created := call(t, r, http.MethodPost, "/api/tasks", manager.Token, map[string]string{
		"title":       "Ship it",
		"description": "Deploy to production",
		"assignedTo":  worker.ID,
		"status":      "pending",
		"priority":    "medium",
		"dueDate":     "2026-12-24",
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var task struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &task))

	forbidden := call(t, r, http.MethodPost, "/api/tasks", worker.Token, map[string]string{})
	assert.Equal(t, http.StatusForbidden, forbidden.Code)

	toggled := call(t, r, http.MethodPut, "/api/tasks/"+task.ID+"?status=in-progress", worker.Token, map[string]string{"status": "in-progress"})
	require.Equal(t, http.StatusOK, toggled.Code)
	assert.Contains(t, toggled.Body.String(), `"newValue":"in-progress"`)

	list := call(t, r, http.MethodGet, "/api/tasks?myTasks=true", worker.Token, nil)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), task.ID)

	deleted := call(t, r, http.MethodDelete, "/api/tasks/"+task.ID, manager.Token, nil)
	assert.Equal(t, http.StatusOK, deleted.Code)
	assert.JSONEq(t, `{"message":"Task removed"}`, deleted.Body.String())

	unauthenticated := call(t, r, http.MethodGet, "/api/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, unauthenticated.Code)
}

func TestRoutes_Swagger(t *testing.T) {
	r := setupRouter(t)

	resp := call(t, r, http.MethodGet, "/swagger/doc.json", "", nil)

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "/api/tasks")
}

func TestRoutes_StatusUpdateRejectsOversizedUpload(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 2000
	r := setupRouterWith(t, cfg)

	manager := register(t, r, "Mia Manager", "mia@example.com", "manager")
	worker := register(t, r, "Wes Worker", "wes@example.com", "")
	created := call(t, r, http.MethodPost, "/api/tasks", manager.Token, map[string]string{
		"title":       "Ship it",
		"description": "Deploy to production",
		"assignedTo":  worker.ID,
		"status":      "pending",
		"priority":    "medium",
		"dueDate":     "2026-12-24",
	})
	require.Equal(t, http.StatusCreated, created.Code, created.Body.String())
	var task struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &task))

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("attachments", "dump.bin")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 10<<10))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPut, "/api/tasks/"+task.ID+"?status=completed", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+worker.Token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	assert.Contains(t, resp.Body.String(), "Request body too large")

	after := call(t, r, http.MethodGet, "/api/tasks/"+task.ID, worker.Token, nil)
	require.Equal(t, http.StatusOK, after.Code)
	var body struct {
		Status      string            `json:"status"`
		Attachments []json.RawMessage `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(after.Body.Bytes(), &body))
	assert.Equal(t, "pending", body.Status)
	assert.Empty(t, body.Attachments)
}
