package spoolman_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/spoolsync/internal/spoolman"
	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/planner"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := spoolman.New("not-a-url", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestFetchSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/v1/profiles", r.URL.Path)
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"profiles": [
            {"id": "pla-red", "parent_id": "pla-base", "properties": {"material": "PLA"}, "tags": ["pla"], "last_modified": 1700000000},
            {"id": "pla-base", "properties": {"material": "PLA"}, "last_modified": 1690000000}
        ]}`))
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "sekrit")
	require.NoError(t, err)

	snapshot, err := backend.FetchSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snapshot, 2)
	assert.Equal(t, profiles.ID("pla-base"), snapshot[0].ID)
	assert.Equal(t, profiles.ID("pla-red"), snapshot[1].ID)
	assert.Equal(t, profiles.ID("pla-base"), snapshot[1].ParentID)
	assert.Equal(t, int64(1700000000), snapshot[1].Revision)
	assert.Equal(t, profiles.OriginRemote, snapshot[1].Origin)
	assert.Equal(t, "PLA", snapshot[1].Properties["material"].Value)
}

func TestFetchSnapshotServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "")
	require.NoError(t, err)

	_, err = backend.FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
}

func TestApplyCreate(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/profiles", r.URL.Path)
		gotKey = r.Header.Get("Idempotency-Key")

		var body struct {
			ID         string            `json:"id"`
			ParentID   string            `json:"parent_id"`
			Properties map[string]string `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "pla-red", body.ID)
		assert.Equal(t, "pla-base", body.ParentID)
		assert.Equal(t, "#FF0000", body.Properties["default_filament_colour"])

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "")
	require.NoError(t, err)

	op := planner.NewOperation("pla-red", "pla-base", planner.KindCreate, map[string]string{
		"default_filament_colour": "#FF0000",
	})
	require.NoError(t, backend.Apply(context.Background(), op))
	assert.Equal(t, op.Key, gotKey)
}

func TestApplyUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/v1/profiles/pla-red", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "")
	require.NoError(t, err)

	op := planner.NewOperation("pla-red", "", planner.KindUpdate, map[string]string{"material": "PLA"})
	require.NoError(t, backend.Apply(context.Background(), op))
}

func TestApplyDeleteIdempotent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "")
	require.NoError(t, err)

	op := planner.NewOperation("gone", "", planner.KindDelete, nil)
	assert.NoError(t, backend.Apply(context.Background(), op), "deleting an absent profile is not an error")
}

func TestApplyRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "schema mismatch", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "")
	require.NoError(t, err)

	op := planner.NewOperation("pla-red", "", planner.KindUpdate, map[string]string{"material": "PLA"})
	err = backend.Apply(context.Background(), op)
	require.Error(t, err)
	assert.True(t, errors.IsOperationRejected(err))

	var backendErr *errors.BackendError
	require.ErrorAs(t, err, &backendErr)
	assert.Equal(t, http.StatusUnprocessableEntity, backendErr.StatusCode)
	assert.Equal(t, "schema mismatch", backendErr.Message)
	assert.False(t, backendErr.Retryable())
}

func TestApplyRateLimitRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "")
	require.NoError(t, err)

	op := planner.NewOperation("pla-red", "", planner.KindUpdate, map[string]string{"material": "PLA"})
	err = backend.Apply(context.Background(), op)
	require.Error(t, err)
	assert.True(t, errors.IsBackendUnavailable(err))
	assert.False(t, errors.IsOperationRejected(err))
}

func TestCustomHeaderAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sekrit", r.Header.Get("X-Api-Key"))
		_, _ = w.Write([]byte(`{"profiles": []}`))
	}))
	defer server.Close()

	backend, err := spoolman.New(server.URL, "sekrit", spoolman.WithAuth(&spoolman.HeaderAuth{Header: "X-Api-Key"}))
	require.NoError(t, err)

	_, err = backend.FetchSnapshot(context.Background())
	require.NoError(t, err)
}
