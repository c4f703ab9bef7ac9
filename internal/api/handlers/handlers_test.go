package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportdesk/backend/internal/corpus"
	"github.com/supportdesk/backend/internal/escalation"
	"github.com/supportdesk/backend/internal/matcher"
	"github.com/supportdesk/backend/internal/middleware/validation"
	"github.com/supportdesk/backend/internal/query"
	"github.com/supportdesk/backend/internal/storage/models"
	"github.com/supportdesk/backend/internal/storage/sqlite"
)

type testServer struct {
	app   *fiber.App
	store *escalation.Store
	repo  *sqlite.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	idx, err := corpus.NewIndex([]corpus.Pair{
		{Response: "Reset your password via settings."},
		{Response: "Refunds take 5 business days."},
	})
	require.NoError(t, err)
	m, err := matcher.New(idx, matcher.DefaultThreshold)
	require.NoError(t, err)

	repo, err := sqlite.NewClient(filepath.Join(t.TempDir(), "queries.db"), 1000)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	require.NoError(t, repo.InitSchema())

	store := escalation.NewStore(repo)
	engine := query.NewEngine(m, store)

	queryHandler := NewQueryHandler(engine)
	staffHandler := NewStaffHandler(store, escalation.NewWorkflow(repo))

	app := fiber.New()
	app.Use(validation.ContentType(validation.Config{}))

	api := app.Group("/api/v1")
	api.Post("/ask", validation.Ask(validation.Config{}), queryHandler.HandleAsk)

	staff := api.Group("/staff")
	staff.Get("/queries", staffHandler.ListPending)
	staff.Get("/queries/:id", staffHandler.GetQuery)
	staff.Post("/queries/:id/resolve", validation.Resolve(validation.Config{}), staffHandler.Resolve)

	return &testServer{app: app, store: store, repo: repo}
}

func (s *testServer) do(t *testing.T, method, path, body string) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHandleAsk_Matched(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/v1/ask",
		`{"question":"How do I reset my password?","email":"a@example.com"}`)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Reset your password via settings.", body["answer"])
	assert.Equal(t, true, body["matched"])
	assert.Equal(t, false, body["escalated"])
	assert.NotContains(t, body, "escalation_id")

	pending, err := s.store.ListPending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHandleAsk_Escalated(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/v1/ask",
		`{"question":"Where is my parcel?","email":"b@example.com"}`)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, query.EscalatedAnswer, body["answer"])
	assert.Equal(t, true, body["escalated"])
	assert.EqualValues(t, 1, body["escalation_id"])

	pending, err := s.store.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Where is my parcel?", pending[0].Question)
	assert.Equal(t, "b@example.com", pending[0].Email)
}

func TestHandleAsk_EmptyQuestionEscalates(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, fiber.MethodPost, "/api/v1/ask", `{"question":"","email":"c@example.com"}`)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["escalated"])
}

func TestHandleAsk_MarkupQuestionEscalates(t *testing.T) {
	s := newTestServer(t)
	question := `my page shows <script>alert(1)</script> after onclick= fires`

	req := httptest.NewRequest(fiber.MethodPost, "/api/v1/ask",
		strings.NewReader(`{"question":"my page shows \u003cscript\u003ealert(1)\u003c/script\u003e after onclick= fires","email":"m@example.com"}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "<script>")

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, true, body["escalated"])
	assert.Equal(t, question, body["question"])

	pending, err := s.store.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, question, pending[0].Question)
}

func TestHandleAsk_InvalidEmail(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.do(t, fiber.MethodPost, "/api/v1/ask", `{"question":"refund?","email":"nope"}`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestHandleAsk_StorageFailure(t *testing.T) {
	s := newTestServer(t)
	require.NoError(t, s.repo.Close())

	status, body := s.do(t, fiber.MethodPost, "/api/v1/ask",
		`{"question":"Where is my parcel?","email":"b@example.com"}`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, body, "answer")
	assert.Contains(t, body, "error")
}

func TestStaffHandler_ListAndResolve(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	first, err := s.store.Create(ctx, "Where is my parcel?", "b@example.com")
	require.NoError(t, err)
	_, err = s.store.Create(ctx, "Can I change my plan?", "d@example.com")
	require.NoError(t, err)

	status, body := s.do(t, fiber.MethodGet, "/api/v1/staff/queries", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["count"])

	status, body = s.do(t, fiber.MethodPost, "/api/v1/staff/queries/1/resolve",
		`{"resolution":"Shipped yesterday","flag":"shipping"}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["escalated"])
	assert.Equal(t, models.StateResolved.String(), body["state"])
	assert.Equal(t, "Shipped yesterday", body["resolution"])
	assert.Equal(t, "shipping", body["flag"])

	status, body = s.do(t, fiber.MethodGet, "/api/v1/staff/queries/1", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, first.ID, body["id"])
	assert.Equal(t, false, body["escalated"])

	status, body = s.do(t, fiber.MethodGet, "/api/v1/staff/queries", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["count"])
}

func TestStaffHandler_Errors(t *testing.T) {
	s := newTestServer(t)

	t.Run("unknown id", func(t *testing.T) {
		status, _ := s.do(t, fiber.MethodGet, "/api/v1/staff/queries/99", "")
		assert.Equal(t, http.StatusNotFound, status)

		status, _ = s.do(t, fiber.MethodPost, "/api/v1/staff/queries/99/resolve",
			`{"resolution":"x","flag":"y"}`)
		assert.Equal(t, http.StatusNotFound, status)
	})

	t.Run("malformed id", func(t *testing.T) {
		status, _ := s.do(t, fiber.MethodGet, "/api/v1/staff/queries/abc", "")
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("blank resolution", func(t *testing.T) {
		_, err := s.store.Create(context.Background(), "q", "e@example.com")
		require.NoError(t, err)

		status, _ := s.do(t, fiber.MethodPost, "/api/v1/staff/queries/1/resolve",
			`{"resolution":"  ","flag":"general"}`)
		assert.Equal(t, http.StatusBadRequest, status)

		record, err := s.store.Get(context.Background(), 1)
		require.NoError(t, err)
		assert.True(t, record.Escalated())
	})
}
