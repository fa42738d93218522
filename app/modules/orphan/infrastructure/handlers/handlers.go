// Package orphanhandlers wires orphan resolution to chart events.
package orphanhandlers

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill/message"

	orphanservice "github.com/clearlamp/clearlamp/app/modules/orphan/application"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Handlers reacts to chart additions by re-running orphan resolution.
type Handlers struct {
	service orphanservice.Service
	logger  *slog.Logger
}

func NewHandlers(service orphanservice.Service, logger *slog.Logger) *Handlers {
	return &Handlers{service: service, logger: logger}
}

// Register subscribes to chart batch notifications on the given bus.
func (h *Handlers) Register(ctx context.Context, bus shared.EventBus) error {
	return bus.Subscribe(ctx, "chart", shared.SubjectChartBatchAdded, h.handleChartBatchAdded)
}

func (h *Handlers) handleChartBatchAdded(ctx context.Context, msg *message.Message) error {
	var payload shared.ChartBatchAddedPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		h.logger.ErrorContext(ctx, "Failed to decode chart batch payload",
			slog.String("message_id", msg.UUID),
			slog.Any("error", err),
		)
		// Malformed payloads are not retryable.
		return nil
	}

	report, err := h.service.ResolveAll(ctx)
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "Orphans re-resolved after chart batch",
		slog.String("game", string(payload.Game)),
		slog.String("playtype", string(payload.Playtype)),
		slog.Int("charts", len(payload.ChartIDs)),
		slog.Int("resolved", report.Resolved),
	)
	return nil
}
