package registry

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ehealth-tools/registry-sync/internal/sync/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClient_List(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"legal_entity_id": r.URL.Query().Get("legal_entity_id"),
			"page":            r.URL.Query().Get("page"),
			"page_size":       r.URL.Query().Get("page_size"),
			"employee_id":     r.URL.Query().Get("employee_id"),
		}

		assert.Equal(t, "/api/declarations", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"data": [
				{"id": "decl-1", "status": "active"},
				{"id": "decl-2", "status": "terminated"},
				{"status": "no id, skipped"}
			],
			"paging": {"page_number": 1, "total_pages": 3}
		}`))
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL, Timeout: 5 * time.Second, PageSize: 50}, testLogger())

	page, err := client.List(context.Background(), "token-1", domain.KindDeclaration, "le-uuid", "emp-uuid", 1)
	require.NoError(t, err)

	assert.Equal(t, "Bearer token-1", gotAuth)
	assert.Equal(t, "le-uuid", gotQuery["legal_entity_id"])
	assert.Equal(t, "1", gotQuery["page"])
	assert.Equal(t, "50", gotQuery["page_size"])
	assert.Equal(t, "emp-uuid", gotQuery["employee_id"])

	require.Len(t, page.Items, 2)
	assert.Equal(t, "decl-1", page.Items[0].ID)
	assert.Equal(t, "decl-2", page.Items[1].ID)
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 3, page.TotalPages)
	assert.True(t, page.IsNotLast())
}

func TestClient_List_NoScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("employee_id"))
		w.Write([]byte(`{"data": [], "paging": {"page_number": 1, "total_pages": 1}}`))
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	page, err := client.List(context.Background(), "token", domain.KindEmployee, "le-uuid", "", 1)
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.IsNotLast())
}

func TestClient_List_UnknownKind(t *testing.T) {
	client := NewClient(&Config{BaseURL: "http://unused"}, testLogger())

	_, err := client.List(context.Background(), "token", domain.EntityKind("bogus"), "le-uuid", "", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUnknownCategory)
}

func TestClient_Detail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/employees/emp-9", r.URL.Path)
		w.Write([]byte(`{"data": {"id": "emp-9", "position": "P1"}}`))
	}))
	defer srv.Close()

	client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

	detail, err := client.Detail(context.Background(), "token", domain.KindEmployee, "emp-9")
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(detail, &decoded))
	assert.Equal(t, "emp-9", decoded["id"])
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	t.Run("connection failure", func(t *testing.T) {
		// A closed server produces a transport-level error.
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		client := NewClient(&Config{BaseURL: srv.URL, Timeout: time.Second}, testLogger())

		_, err := client.List(context.Background(), "token", domain.KindEmployee, "le-uuid", "", 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConnection)
	})

	t.Run("validation rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error": {"message": "invalid page", "invalid": [{"entry": "$.page"}]}}`))
		}))
		defer srv.Close()

		client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

		_, err := client.List(context.Background(), "token", domain.KindEmployee, "le-uuid", "", 1)
		require.Error(t, err)

		var respErr *ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, http.StatusUnprocessableEntity, respErr.StatusCode)
		assert.Equal(t, "invalid page", respErr.Message)
		assert.True(t, respErr.Validation())
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		client := NewClient(&Config{BaseURL: srv.URL}, testLogger())

		_, err := client.Detail(context.Background(), "token", domain.KindEmployee, "emp-1")
		require.Error(t, err)

		var respErr *ResponseError
		require.ErrorAs(t, err, &respErr)
		assert.Equal(t, http.StatusInternalServerError, respErr.StatusCode)
		assert.False(t, respErr.Validation())
	})
}
