package importqueue

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"

	importservice "github.com/clearlamp/clearlamp/app/modules/importer/application"
)

// ImportWorker executes queued import jobs. Per-user serialization is
// enforced inside ProcessImport by an advisory lock, so worker concurrency
// only needs to bound total load, not ordering.
type ImportWorker struct {
	river.WorkerDefaults[ImportJob]
	service importservice.Service
	logger  *slog.Logger
}

func NewImportWorker(service importservice.Service, logger *slog.Logger) *ImportWorker {
	return &ImportWorker{service: service, logger: logger}
}

func (w *ImportWorker) Work(ctx context.Context, job *river.Job[ImportJob]) error {
	doc := job.Args.Document
	imp, err := w.service.ProcessImport(ctx, doc)
	if err != nil {
		w.logger.ErrorContext(ctx, "Import job failed",
			slog.Int64("job_id", job.ID),
			slog.String("user_id", string(doc.UserID)),
			slog.Any("error", err),
		)
		return err
	}
	w.logger.InfoContext(ctx, "Import job completed",
		slog.Int64("job_id", job.ID),
		slog.String("import_id", string(imp.ImportID)),
		slog.Int("scores", len(imp.ScoreIDs)),
	)
	return nil
}
