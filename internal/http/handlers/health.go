package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
)

// Readiness component states.
const (
	componentOK      = "ok"
	componentPending = "pending"
)

// SnapshotProvider reports whether a snapshot has been installed.
type SnapshotProvider interface {
	Snapshot() *dlna.Snapshot
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	version   string
	startTime time.Time
	snapshots SnapshotProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, snapshots SnapshotProvider) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		snapshots: snapshots,
	}
}

// LivezInput is the input for the liveness endpoint.
type LivezInput struct{}

// LivezResponse is the liveness body.
type LivezResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// LivezOutput is the output for the liveness endpoint.
type LivezOutput struct {
	Body LivezResponse
}

// ReadyzInput is the input for the readiness endpoint.
type ReadyzInput struct{}

// ReadyzResponse is the readiness body.
type ReadyzResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// ReadyzOutput is the output for the readiness endpoint.
type ReadyzOutput struct {
	Body ReadyzResponse
}

// Register registers the health routes with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getLivez",
		Method:      http.MethodGet,
		Path:        "/livez",
		Summary:     "Liveness check",
		Tags:        []string{"System"},
	}, h.GetLivez)

	huma.Register(api, huma.Operation{
		OperationID: "getReadyz",
		Method:      http.MethodGet,
		Path:        "/readyz",
		Summary:     "Readiness check",
		Description: "Ready once a capability snapshot has been installed",
		Tags:        []string{"System"},
	}, h.GetReadyz)
}

// GetLivez reports that the process is serving.
func (h *HealthHandler) GetLivez(_ context.Context, _ *LivezInput) (*LivezOutput, error) {
	return &LivezOutput{Body: LivezResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.startTime).Truncate(time.Second).String(),
	}}, nil
}

// GetReadyz reports whether a snapshot is available.
func (h *HealthHandler) GetReadyz(_ context.Context, _ *ReadyzInput) (*ReadyzOutput, error) {
	state := componentPending
	if h.snapshots != nil && h.snapshots.Snapshot() != nil {
		state = componentOK
	}

	status := "ready"
	if state != componentOK {
		status = "not_ready"
	}

	return &ReadyzOutput{Body: ReadyzResponse{
		Status:     status,
		Components: map[string]string{"snapshot": state},
	}}, nil
}
