package importservice

import (
	"context"
	"errors"
	"hash/fnv"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"golang.org/x/sync/errgroup"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	importdb "github.com/clearlamp/clearlamp/app/modules/importer/infrastructure/repositories"
	scoreservice "github.com/clearlamp/clearlamp/app/modules/score/application"
	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// ProcessImport runs one ingestion end to end. Chart resolution and
// canonicalization are read-only and run up front; every mutation happens in
// a single transaction serialized per user by an advisory lock, so two
// concurrent imports for the same user cannot interleave their session and
// PB updates.
func (s *ImportService) ProcessImport(ctx context.Context, doc shared.ImportDocument) (*importdb.Import, error) {
	return withTelemetry(s, ctx, "ProcessImport", func(ctx context.Context) (*importdb.Import, error) {
		if doc.UserID == "" || doc.Game == "" || doc.Playtype == "" {
			return nil, ErrInvalidDocument
		}

		imp := &importdb.Import{
			ImportID:        shared.ImportID(uuid.NewString()),
			UserID:          doc.UserID,
			Game:            doc.Game,
			Playtype:        doc.Playtype,
			ImportType:      doc.ImportType,
			Service:         doc.Service,
			TimeStarted:     time.Now().UnixMilli(),
			ScoreIDs:        []shared.ScoreID{},
			CreatedSessions: []shared.SessionID{},
			Errors:          []shared.ImportError{},
		}
		if err := s.repo.InsertImport(ctx, s.db, imp); err != nil {
			return nil, err
		}

		entries := normalizeEntries(doc)
		charts, err := s.resolveCharts(ctx, entries)
		if err != nil {
			return nil, err
		}

		meta := scoreservice.EntryMeta{
			UserID:     doc.UserID,
			Service:    doc.Service,
			ImportType: doc.ImportType,
		}

		canonical, orphanIdx := s.canonicalizeEntries(ctx, meta, entries, charts, imp)

		err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(?)", userLockKey(doc.UserID)).Exec(ctx); err != nil {
				return err
			}

			for _, idx := range orphanIdx {
				if _, err := s.orphans.CreateOrphan(ctx, tx, meta, doc.Game, doc.Playtype, entries[idx]); err != nil {
					return err
				}
				imp.OrphanCount++
				imp.Errors = append(imp.Errors, shared.ImportError{
					EntryIndex: idx,
					Reason:     "chart could not be resolved",
					Orphaned:   true,
				})
			}

			inserted, err := s.scores.PersistScores(ctx, tx, canonical)
			if err != nil {
				return err
			}
			imp.ScoreIDs = inserted

			byID := make(map[shared.ScoreID]*scoredb.Score, len(canonical))
			for _, sc := range canonical {
				byID[sc.ScoreID] = sc
			}

			pairs := distinctPairs(inserted, byID)
			report, err := s.pbs.ReconcileMany(ctx, tx, pairs)
			if err != nil {
				return err
			}
			for _, f := range report.Failed {
				s.logger.WarnContext(ctx, "PB reconciliation failed for pair",
					slog.String("user_id", string(f.Pair.UserID)),
					slog.String("chart_id", string(f.Pair.ChartID)),
					slog.String("reason", f.Reason),
				)
			}
			for _, f := range report.RankingFailed {
				s.logger.WarnContext(ctx, "Chart ranking refresh failed",
					slog.String("chart_id", string(f.ChartID)),
					slog.String("reason", f.Reason),
				)
			}
			if _, err := s.pbs.AutoCoerceLampFields(ctx, tx, pairs); err != nil {
				return err
			}

			for _, id := range inserted {
				sc := byID[id]
				sessionID, created, err := s.sessions.AttachScore(ctx, tx, sc)
				if err != nil {
					return err
				}
				if created {
					imp.CreatedSessions = append(imp.CreatedSessions, sessionID)
				}
			}

			slices.SortFunc(imp.Errors, func(a, b shared.ImportError) int {
				return a.EntryIndex - b.EntryIndex
			})
			imp.TimeFinished = time.Now().UnixMilli()
			return s.repo.FinalizeImport(ctx, tx, imp)
		})
		if err != nil {
			return nil, err
		}

		if err := s.eventBus.Publish(ctx, shared.SubjectImportFinished, shared.ImportFinishedPayload{
			ImportID:    imp.ImportID,
			UserID:      imp.UserID,
			Game:        imp.Game,
			Playtype:    imp.Playtype,
			ScoreCount:  len(imp.ScoreIDs),
			ErrorCount:  len(imp.Errors),
			OrphanCount: imp.OrphanCount,
		}); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish import.finished",
				slog.String("import_id", string(imp.ImportID)),
				slog.Any("error", err),
			)
		}

		s.logger.InfoContext(ctx, "Import processed",
			slog.String("import_id", string(imp.ImportID)),
			slog.String("user_id", string(imp.UserID)),
			slog.Int("scores", len(imp.ScoreIDs)),
			slog.Int("errors", len(imp.Errors)),
			slog.Int("orphans", imp.OrphanCount),
		)
		return imp, nil
	})
}

// normalizeEntries fills in the entry-level chart refs with the document's
// game and playtype when the source omitted them.
func normalizeEntries(doc shared.ImportDocument) []shared.ImportEntry {
	entries := make([]shared.ImportEntry, len(doc.Entries))
	for i, e := range doc.Entries {
		if e.Chart.Game == "" {
			e.Chart.Game = doc.Game
		}
		if e.Chart.Playtype == "" {
			e.Chart.Playtype = doc.Playtype
		}
		entries[i] = e
	}
	return entries
}

func (s *ImportService) resolveCharts(ctx context.Context, entries []shared.ImportEntry) (map[string]*chartdb.Chart, error) {
	seen := make(map[string]struct{}, len(entries))
	refs := make([]shared.ChartRef, 0, len(entries))
	for _, e := range entries {
		key := e.Chart.Key()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		refs = append(refs, e.Chart)
	}
	if len(refs) == 0 {
		return map[string]*chartdb.Chart{}, nil
	}

	resolveCtx := ctx
	if s.resolveTimeout > 0 {
		var cancel context.CancelFunc
		resolveCtx, cancel = context.WithTimeout(ctx, s.resolveTimeout)
		defer cancel()
	}
	charts, err := s.chartRepo.ResolveRefs(resolveCtx, s.db, refs)
	if err != nil {
		// The resolve deadline firing leaves every ref unresolved; the
		// affected entries take the orphan path instead of failing the
		// import. Only the caller's own deadline stays fatal.
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "Chart resolution timed out, leaving all refs unresolved",
				slog.Int("refs", len(refs)),
			)
			return map[string]*chartdb.Chart{}, nil
		}
		return nil, err
	}
	return charts, nil
}

// canonicalizeEntries fans entries out over a bounded worker group. Entry
// failures never fail the run; they land on the Import record. Returns the
// canonicalized scores (deduplicated by content ID) and the indices of
// entries whose chart is missing.
func (s *ImportService) canonicalizeEntries(
	ctx context.Context,
	meta scoreservice.EntryMeta,
	entries []shared.ImportEntry,
	charts map[string]*chartdb.Chart,
	imp *importdb.Import,
) ([]*scoredb.Score, []int) {
	results := make([]*scoredb.Score, len(entries))
	entryErrs := make([]error, len(entries))
	var orphanIdx []int

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.entryWorkers)
	for i, entry := range entries {
		chart, ok := charts[entry.Chart.Key()]
		if !ok {
			orphanIdx = append(orphanIdx, i)
			continue
		}
		g.Go(func() error {
			sc, err := s.scores.CanonicalizeEntry(gctx, meta, entry, chart)
			if err != nil {
				entryErrs[i] = err
				return nil
			}
			results[i] = sc
			return nil
		})
	}
	// Workers only record failures, so Wait cannot return an error.
	_ = g.Wait()

	seen := make(map[shared.ScoreID]struct{}, len(entries))
	canonical := make([]*scoredb.Score, 0, len(entries))
	for i := range entries {
		if entryErrs[i] != nil {
			imp.Errors = append(imp.Errors, shared.ImportError{
				EntryIndex: i,
				Reason:     entryErrs[i].Error(),
			})
			continue
		}
		sc := results[i]
		if sc == nil {
			continue
		}
		if _, ok := seen[sc.ScoreID]; ok {
			continue
		}
		seen[sc.ScoreID] = struct{}{}
		canonical = append(canonical, sc)
	}
	return canonical, orphanIdx
}

func distinctPairs(inserted []shared.ScoreID, byID map[shared.ScoreID]*scoredb.Score) []shared.UserChartPair {
	seen := make(map[shared.UserChartPair]struct{}, len(inserted))
	pairs := make([]shared.UserChartPair, 0, len(inserted))
	for _, id := range inserted {
		sc, ok := byID[id]
		if !ok {
			continue
		}
		pair := shared.UserChartPair{UserID: sc.UserID, ChartID: sc.ChartID}
		if _, ok := seen[pair]; ok {
			continue
		}
		seen[pair] = struct{}{}
		pairs = append(pairs, pair)
	}
	return pairs
}

// userLockKey maps a user to a stable advisory-lock key so all imports for
// one user serialize on the same lock.
func userLockKey(userID shared.UserID) int64 {
	h := fnv.New64a()
	h.Write([]byte("import:"))
	h.Write([]byte(userID))
	return int64(h.Sum64())
}
