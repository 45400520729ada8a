// Package handlers provides the watch server API handlers.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
	"github.com/jmylchreest/dlnaprobe/internal/http/middleware"
	"github.com/jmylchreest/dlnaprobe/internal/negotiator"
	"github.com/jmylchreest/dlnaprobe/internal/observability"
	"github.com/jmylchreest/dlnaprobe/pkg/npt"
)

// SnapshotSource is the session state the snapshot endpoints read.
type SnapshotSource interface {
	Snapshot() *dlna.Snapshot
	Target() *negotiator.Target
	Exchange(ctx context.Context, startNPT time.Duration, startByte uint64) (*dlna.Snapshot, error)
}

// SnapshotHandler serves the installed capability snapshot.
type SnapshotHandler struct {
	source SnapshotSource
}

// NewSnapshotHandler creates a new snapshot handler.
func NewSnapshotHandler(source SnapshotSource) *SnapshotHandler {
	return &SnapshotHandler{source: source}
}

// SnapshotResponse wraps a snapshot with the resource it describes.
type SnapshotResponse struct {
	URI      string         `json:"uri" doc:"Resource URI with credentials redacted"`
	Snapshot *dlna.Snapshot `json:"snapshot"`
}

// GetSnapshotInput is the input for the snapshot endpoint.
type GetSnapshotInput struct{}

// GetSnapshotOutput is the output for the snapshot endpoint.
type GetSnapshotOutput struct {
	Body SnapshotResponse
}

// RefreshSnapshotInput carries the optional seek hint of a refresh.
type RefreshSnapshotInput struct {
	NPT  string `query:"npt" doc:"Start position hint as NPT, e.g. 1:02:03.5 or 62.5"`
	Byte uint64 `query:"byte" doc:"Start position hint as a byte offset"`
}

// RefreshSnapshotOutput is the output for the refresh endpoint.
type RefreshSnapshotOutput struct {
	Body SnapshotResponse
}

// Register registers the snapshot routes with the API.
func (h *SnapshotHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getSnapshot",
		Method:      http.MethodGet,
		Path:        "/api/v1/snapshot",
		Summary:     "Get capability snapshot",
		Description: "Returns the most recently installed capability snapshot",
		Tags:        []string{"Snapshot"},
	}, h.GetSnapshot)

	huma.Register(api, huma.Operation{
		OperationID: "refreshSnapshot",
		Method:      http.MethodPost,
		Path:        "/api/v1/snapshot/refresh",
		Summary:     "Refresh capability snapshot",
		Description: "Runs a HEAD exchange now, optionally with a start position hint",
		Tags:        []string{"Snapshot"},
	}, h.Refresh)
}

// GetSnapshot returns the installed snapshot.
func (h *SnapshotHandler) GetSnapshot(ctx context.Context, _ *GetSnapshotInput) (*GetSnapshotOutput, error) {
	snap := h.source.Snapshot()
	if snap == nil {
		return nil, huma.Error503ServiceUnavailable("no capability snapshot available yet")
	}
	annotateSnapshot(ctx, snap)
	return &GetSnapshotOutput{Body: h.response(snap)}, nil
}

// Refresh runs an exchange and returns the resulting snapshot.
func (h *SnapshotHandler) Refresh(ctx context.Context, input *RefreshSnapshotInput) (*RefreshSnapshotOutput, error) {
	var startNPT time.Duration
	if input.NPT != "" {
		d, err := npt.Parse(input.NPT)
		if err != nil {
			return nil, huma.Error400BadRequest("invalid npt hint", err)
		}
		startNPT = d
	}

	h.annotateTarget(ctx)
	snap, err := h.source.Exchange(ctx, startNPT, input.Byte)
	if err != nil {
		return nil, exchangeError(err)
	}
	annotateSnapshot(ctx, snap)
	return &RefreshSnapshotOutput{Body: h.response(snap)}, nil
}

// annotateTarget adds the negotiated resource to the request log line.
func (h *SnapshotHandler) annotateTarget(ctx context.Context) {
	if target := h.source.Target(); target != nil {
		middleware.AddLogAttrs(ctx, slog.String("target", net.JoinHostPort(target.Host, strconv.Itoa(target.Port))))
	}
}

func annotateSnapshot(ctx context.Context, snap *dlna.Snapshot) {
	if snap.ExchangeID != "" {
		middleware.AddLogAttrs(ctx, slog.String("exchange_id", snap.ExchangeID))
	}
}

func (h *SnapshotHandler) response(snap *dlna.Snapshot) SnapshotResponse {
	resp := SnapshotResponse{Snapshot: snap}
	if target := h.source.Target(); target != nil {
		resp.URI = observability.RedactURL(target.URI)
	}
	return resp
}

func exchangeError(err error) error {
	switch {
	case errors.Is(err, negotiator.ErrNoURI):
		return huma.Error503ServiceUnavailable("no resource configured", err)
	case errors.Is(err, negotiator.ErrBadStatus):
		return huma.Error502BadGateway("media server rejected HEAD request", err)
	default:
		return huma.Error502BadGateway("HEAD exchange failed", err)
	}
}
