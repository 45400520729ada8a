package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/dlnaprobe/internal/dlna"
	"github.com/jmylchreest/dlnaprobe/internal/negotiator"
)

// CapabilitySource answers capability queries from the installed snapshot.
type CapabilitySource interface {
	Duration(format dlna.Format) (int64, error)
	Seeking(format dlna.Format) (negotiator.Range, error)
	SupportedRates() ([]dlna.Playspeed, error)
	DecryptionPlan() (negotiator.DecryptionPlan, error)
	Rate() float64
}

// CapabilitiesHandler serves derived seek and rate capabilities.
type CapabilitiesHandler struct {
	source CapabilitySource
}

// NewCapabilitiesHandler creates a new capabilities handler.
func NewCapabilitiesHandler(source CapabilitySource) *CapabilitiesHandler {
	return &CapabilitiesHandler{source: source}
}

// SeekCapability describes seeking in one format. Omitted when the server
// does not support that operation.
type SeekCapability struct {
	Start    int64 `json:"start"`
	End      int64 `json:"end"`
	Duration int64 `json:"duration"`
}

// DecryptionResponse is the decryption plan.
type DecryptionResponse struct {
	Required bool   `json:"required"`
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port"`
}

// CapabilitiesResponse summarizes what the resource supports.
type CapabilitiesResponse struct {
	Rate       float64            `json:"rate" doc:"Current playback rate"`
	Playspeeds []dlna.Playspeed   `json:"playspeeds"`
	Bytes      *SeekCapability    `json:"bytes,omitempty" doc:"Byte offsets"`
	Time       *SeekCapability    `json:"time,omitempty" doc:"Nanoseconds"`
	Decryption DecryptionResponse `json:"decryption"`
}

// GetCapabilitiesInput is the input for the capabilities endpoint.
type GetCapabilitiesInput struct{}

// GetCapabilitiesOutput is the output for the capabilities endpoint.
type GetCapabilitiesOutput struct {
	Body CapabilitiesResponse
}

// Register registers the capability routes with the API.
func (h *CapabilitiesHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getCapabilities",
		Method:      http.MethodGet,
		Path:        "/api/v1/capabilities",
		Summary:     "Get seek and rate capabilities",
		Description: "Returns seekable ranges, durations, playspeeds and the decryption plan",
		Tags:        []string{"Snapshot"},
	}, h.GetCapabilities)
}

// GetCapabilities derives the capability summary.
func (h *CapabilitiesHandler) GetCapabilities(_ context.Context, _ *GetCapabilitiesInput) (*GetCapabilitiesOutput, error) {
	rates, err := h.source.SupportedRates()
	if err != nil {
		if errors.Is(err, negotiator.ErrNoSnapshot) {
			return nil, huma.Error503ServiceUnavailable("no capability snapshot available yet")
		}
		return nil, huma.Error500InternalServerError("failed to read playspeeds", err)
	}

	plan, err := h.source.DecryptionPlan()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to read decryption plan", err)
	}

	return &GetCapabilitiesOutput{Body: CapabilitiesResponse{
		Rate:       h.source.Rate(),
		Playspeeds: rates,
		Bytes:      h.seekCapability(dlna.FormatBytes),
		Time:       h.seekCapability(dlna.FormatTime),
		Decryption: DecryptionResponse{
			Required: plan.Required,
			Host:     plan.Host,
			Port:     plan.Port,
		},
	}}, nil
}

func (h *CapabilitiesHandler) seekCapability(format dlna.Format) *SeekCapability {
	r, err := h.source.Seeking(format)
	if err != nil {
		return nil
	}
	d, err := h.source.Duration(format)
	if err != nil {
		return nil
	}
	return &SeekCapability{Start: r.Start, End: r.End, Duration: d}
}
