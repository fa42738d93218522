package sessionservice

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	scoredb "github.com/clearlamp/clearlamp/app/modules/score/infrastructure/repositories"
	sessiondb "github.com/clearlamp/clearlamp/app/modules/session/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// AttachScore joins a just-imported score to its session.
func (s *SessionService) AttachScore(ctx context.Context, db bun.IDB, score *scoredb.Score) (shared.SessionID, bool, error) {
	type attachResult struct {
		sessionID shared.SessionID
		created   bool
	}
	res, err := withTelemetry(s, ctx, "AttachScore", func(ctx context.Context) (attachResult, error) {
		if score.TimeAchieved == nil {
			// No timestamp means no time bucket to place the play in.
			return attachResult{}, nil
		}
		t := *score.TimeAchieved

		session, err := s.repo.FindOpenSession(ctx, db, score.UserID, score.Game, score.Playtype, t, s.idleGap)
		if err != nil && !errors.Is(err, sessiondb.ErrSessionNotFound) {
			return attachResult{}, err
		}

		if session == nil || errors.Is(err, sessiondb.ErrSessionNotFound) {
			session = &sessiondb.Session{
				SessionID:   shared.SessionID(uuid.NewString()),
				UserID:      score.UserID,
				Game:        score.Game,
				Playtype:    score.Playtype,
				TimeStarted: t,
				TimeEnded:   t,
				ScoreIDs:    []shared.ScoreID{score.ScoreID},
			}
			session.CalculatedData = s.calculate(ctx, db, session)
			if err := s.repo.InsertSession(ctx, db, session); err != nil {
				return attachResult{}, err
			}
			return attachResult{session.SessionID, true}, nil
		}

		if !session.Contains(score.ScoreID) {
			session.ScoreIDs = append(session.ScoreIDs, score.ScoreID)
		}
		if t < session.TimeStarted {
			session.TimeStarted = t
		}
		if t > session.TimeEnded {
			session.TimeEnded = t
		}
		session.CalculatedData = s.calculate(ctx, db, session)
		if err := s.repo.UpdateSession(ctx, db, session); err != nil {
			return attachResult{}, err
		}
		return attachResult{session.SessionID, false}, nil
	})
	if err != nil {
		return "", false, err
	}
	return res.sessionID, res.created, nil
}

// DetachScore removes a score from its session. An empty session is deleted;
// a session whose aggregates cannot be recomputed is destroyed rather than
// left stale.
func (s *SessionService) DetachScore(ctx context.Context, db bun.IDB, scoreID shared.ScoreID) error {
	_, err := withTelemetry(s, ctx, "DetachScore", func(ctx context.Context) (struct{}, error) {
		session, err := s.repo.FindSessionWithScore(ctx, db, scoreID)
		if err != nil {
			if errors.Is(err, sessiondb.ErrSessionNotFound) {
				return struct{}{}, nil
			}
			return struct{}{}, err
		}

		remaining := session.ScoreIDs[:0:0]
		for _, id := range session.ScoreIDs {
			if id != scoreID {
				remaining = append(remaining, id)
			}
		}
		session.ScoreIDs = remaining

		if len(session.ScoreIDs) == 0 {
			return struct{}{}, s.repo.DeleteSession(ctx, db, session.SessionID)
		}

		if err := s.recalculateMembers(ctx, db, session); err != nil {
			s.logger.WarnContext(ctx, "Session recompute failed, destroying session",
				slog.String("session_id", string(session.SessionID)),
				slog.Any("error", err),
			)
			return struct{}{}, s.repo.DeleteSession(ctx, db, session.SessionID)
		}
		return struct{}{}, s.repo.UpdateSession(ctx, db, session)
	})
	return err
}

// RecalculateSession recomputes aggregates for one session in place.
func (s *SessionService) RecalculateSession(ctx context.Context, db bun.IDB, sessionID shared.SessionID) error {
	_, err := withTelemetry(s, ctx, "RecalculateSession", func(ctx context.Context) (struct{}, error) {
		session, err := s.repo.GetSession(ctx, db, sessionID)
		if err != nil {
			return struct{}{}, err
		}
		if err := s.recalculateMembers(ctx, db, session); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, s.repo.UpdateSession(ctx, db, session)
	})
	return err
}

// recalculateMembers refreshes calculated data and the time window from the
// session's member scores. A member that cannot be loaded is an
// inconsistency, not a tolerable miss.
func (s *SessionService) recalculateMembers(ctx context.Context, db bun.IDB, session *sessiondb.Session) error {
	scores, err := s.scoreRepo.GetScoresByIDs(ctx, db, session.ScoreIDs)
	if err != nil {
		return err
	}
	if len(scores) != len(session.ScoreIDs) {
		return errors.New("session references scores that no longer exist")
	}

	start, end := session.TimeStarted, session.TimeEnded
	for i := range scores {
		if scores[i].TimeAchieved == nil {
			continue
		}
		t := *scores[i].TimeAchieved
		if t < start {
			start = t
		}
		if t > end {
			end = t
		}
	}
	session.TimeStarted, session.TimeEnded = start, end
	session.CalculatedData = s.calculateFromScores(scores, len(session.ScoreIDs))
	return nil
}

// calculate loads member scores and derives aggregates; a load failure
// produces all-null aggregates rather than failing an attach.
func (s *SessionService) calculate(ctx context.Context, db bun.IDB, session *sessiondb.Session) shared.SessionCalculated {
	scores, err := s.scoreRepo.GetScoresByIDs(ctx, db, session.ScoreIDs)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to load session members for aggregation",
			slog.String("session_id", string(session.SessionID)),
			slog.Any("error", err),
		)
		return shared.SessionCalculated{}
	}
	return s.calculateFromScores(scores, len(session.ScoreIDs))
}

// calculateFromScores computes the three aggregates. Each is nil unless the
// session holds at least topN scores; a biased small-sample mean is worse
// than no number at all.
func (s *SessionService) calculateFromScores(scores []scoredb.Score, memberCount int) shared.SessionCalculated {
	if memberCount < s.topN {
		return shared.SessionCalculated{}
	}

	var ratings, lampRatings, combined []float64
	for i := range scores {
		r := scores[i].CalculatedData[RatingKey]
		l := scores[i].CalculatedData[LampRatingKey]
		if r != nil {
			ratings = append(ratings, *r)
		}
		if l != nil {
			lampRatings = append(lampRatings, *l)
		}
		switch {
		case r != nil && l != nil:
			combined = append(combined, max(*r, *l))
		case r != nil:
			combined = append(combined, *r)
		case l != nil:
			combined = append(combined, *l)
		}
	}

	return shared.SessionCalculated{
		ScorePerf: s.topNMean(ratings),
		LampPerf:  s.topNMean(lampRatings),
		Perf:      s.topNMean(combined),
	}
}

// topNMean returns the mean of the N largest values, or nil when fewer than
// N values exist.
func (s *SessionService) topNMean(values []float64) *float64 {
	if len(values) < s.topN {
		return nil
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(values)))
	sum := 0.0
	for _, v := range values[:s.topN] {
		sum += v
	}
	mean := sum / float64(s.topN)
	return &mean
}
