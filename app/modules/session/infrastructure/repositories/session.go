package sessiondb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/clearlamp/clearlamp/app/shared"
)

// SessionDBImpl handles database operations for sessions.
type SessionDBImpl struct {
	DB *bun.DB
}

var _ Repository = (*SessionDBImpl)(nil)

func (r *SessionDBImpl) idb(db bun.IDB) bun.IDB {
	if db != nil {
		return db
	}
	return r.DB
}

func (r *SessionDBImpl) GetSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) (*Session, error) {
	session := new(Session)
	err := r.idb(db).NewSelect().
		Model(session).
		Where("session_id = ?", sessionID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to fetch session %s: %w", sessionID, err)
	}
	return session, nil
}

func (r *SessionDBImpl) FindOpenSession(ctx context.Context, db bun.IDB, userID shared.UserID, game shared.Game, playtype shared.Playtype, t int64, gap time.Duration) (*Session, error) {
	gapMS := gap.Milliseconds()
	session := new(Session)
	err := r.idb(db).NewSelect().
		Model(session).
		Where("user_id = ?", userID).
		Where("game = ?", game).
		Where("playtype = ?", playtype).
		Where("time_started <= ?", t+gapMS).
		Where("time_ended >= ?", t-gapMS).
		Order("time_ended DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find open session for user %s: %w", userID, err)
	}
	return session, nil
}

func (r *SessionDBImpl) FindSessionWithScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) (*Session, error) {
	// Marshalled rather than interpolated so the containment literal stays
	// valid JSON whatever the ID contains.
	needle, err := json.Marshal([]shared.ScoreID{scoreID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode score id %s: %w", scoreID, err)
	}
	session := new(Session)
	err = r.idb(db).NewSelect().
		Model(session).
		Where("score_ids @> ?", string(needle)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to find session containing score %s: %w", scoreID, err)
	}
	return session, nil
}

func (r *SessionDBImpl) InsertSession(ctx context.Context, db bun.IDB, session *Session) error {
	_, err := r.idb(db).NewInsert().
		Model(session).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", session.SessionID, err)
	}
	return nil
}

func (r *SessionDBImpl) UpdateSession(ctx context.Context, db bun.IDB, session *Session) error {
	res, err := r.idb(db).NewUpdate().
		Model(session).
		Column("time_started", "time_ended", "score_ids", "calculated_data").
		Where("session_id = ?", session.SessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update session %s: %w", session.SessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (r *SessionDBImpl) DeleteSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) error {
	_, err := r.idb(db).NewDelete().
		Model((*Session)(nil)).
		Where("session_id = ?", sessionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}
