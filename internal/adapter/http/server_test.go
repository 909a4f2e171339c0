package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/aeroclimate/takeoff-humidity/internal/adapter/http"
	"github.com/aeroclimate/takeoff-humidity/internal/domain"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockLog struct {
	events []domain.MilestoneEvent
	err    error
}

func (m *mockLog) RecentMilestones(_ context.Context, _ uint64) ([]domain.MilestoneEvent, error) {
	return m.events, m.err
}

func newTestServer(readyErr error, log *mockLog) *httpadapter.Server {
	if log == nil {
		log = &mockLog{}
	}
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, log, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("pipeline ingestion has not completed a run yet"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Contains(t, body["error"], "ingestion")
}

func TestStatuszListsMilestones(t *testing.T) {
	now := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	log := &mockLog{events: []domain.MilestoneEvent{
		{ID: 9, Kind: domain.ClassificationCompleted, Detail: "12 rows", LoadDate: now},
		{ID: 8, Kind: domain.IngestionCompleted, Detail: "40 rows", LoadDate: now},
	}}

	srv := newTestServer(nil, log)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Milestones []struct {
			ID     int64  `json:"id"`
			Kind   string `json:"kind"`
			Detail string `json:"detail"`
		} `json:"milestones"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Milestones, 2)
	assert.Equal(t, "classification.completed", body.Milestones[0].Kind)
	assert.Equal(t, "12 rows", body.Milestones[0].Detail)
	assert.Equal(t, int64(8), body.Milestones[1].ID)
}

func TestStatuszReturns500WhenLogUnavailable(t *testing.T) {
	srv := newTestServer(nil, &mockLog{err: errors.New("connection refused")})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/statusz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
