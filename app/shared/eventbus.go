package shared

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EventBus is the cross-module notification surface. Payloads are
// JSON-marshaled; subjects are dot-separated and routed to JetStream streams
// by prefix.
type EventBus interface {
	Publish(ctx context.Context, subject string, payload any) error
	Subscribe(ctx context.Context, streamName, subject string, handler func(ctx context.Context, msg *message.Message) error) error
	CreateStream(ctx context.Context, streamName, subject string) error
	Close() error
}

// Event subjects published by the core.
const (
	SubjectImportFinished  = "import.finished"
	SubjectChartBatchAdded = "chart.batch.added"
)

// ImportFinishedPayload announces a completed import run.
type ImportFinishedPayload struct {
	ImportID    ImportID `json:"importID"`
	UserID      UserID   `json:"userID"`
	Game        Game     `json:"game"`
	Playtype    Playtype `json:"playtype"`
	ScoreCount  int      `json:"scoreCount"`
	ErrorCount  int      `json:"errorCount"`
	OrphanCount int      `json:"orphanCount"`
}

// ChartBatchAddedPayload announces newly synced charts, prompting orphan
// re-resolution.
type ChartBatchAddedPayload struct {
	Game     Game      `json:"game"`
	Playtype Playtype  `json:"playtype"`
	ChartIDs []ChartID `json:"chartIDs"`
}
