package shared

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Scalar identifier types. Kept as distinct types so signatures stay
// self-describing across module boundaries.
type (
	UserID    string
	ScoreID   string
	ChartID   string
	SongID    string
	ImportID  string
	SessionID string

	Game     string
	Playtype string

	Lamp  string
	Grade string
)

// GPT is a game+playtype pair, the unit everything per-game hangs off of
// (rating algorithms, session grouping, chart namespaces).
type GPT string

func MakeGPT(game Game, playtype Playtype) GPT {
	return GPT(fmt.Sprintf("%s:%s", game, playtype))
}

// ScoreData is the derived per-play payload. The judgement and optional maps
// vary by game; everything else is common to every GPT.
type ScoreData struct {
	Score      float64        `json:"score"`
	Percent    float64        `json:"percent"`
	Lamp       Lamp           `json:"lamp"`
	LampIndex  int            `json:"lampIndex"`
	Grade      Grade          `json:"grade"`
	GradeIndex int            `json:"gradeIndex"`
	Judgements map[string]int `json:"judgements,omitempty"`
	Optional   map[string]any `json:"optional,omitempty"`
}

// CalculatedData maps rating-algorithm name to its value. A nil value means
// the algorithm could not produce a number for this play; the distinction
// between nil and zero is load-bearing for ranking.
type CalculatedData map[string]*float64

// Clone returns a copy safe to mutate without aliasing the source map.
func (c CalculatedData) Clone() CalculatedData {
	if c == nil {
		return nil
	}
	out := make(CalculatedData, len(c))
	for k, v := range c {
		if v == nil {
			out[k] = nil
			continue
		}
		val := *v
		out[k] = &val
	}
	return out
}

// ComposedFrom records which real plays a personal best was assembled from.
// ScorePB and LampPB are identical when one play dominates both axes.
type ComposedFrom struct {
	ScorePB ScoreID `json:"scorePB"`
	LampPB  ScoreID `json:"lampPB"`
}

// RankingData is the denormalized chart-ranking position of a personal best.
type RankingData struct {
	Rank  int `json:"rank"`
	OutOf int `json:"outOf"`
}

// SessionCalculated holds the rolling aggregates for a session. Each field is
// nil until the session has enough plays to produce an unbiased mean.
type SessionCalculated struct {
	ScorePerf *float64 `json:"scorePerf"`
	LampPerf  *float64 `json:"lampPerf"`
	Perf      *float64 `json:"perf"`
}

// ChartRef is the opaque identifying information a source supplies for a
// chart. Resolution tries ID first, then the per-service hash.
type ChartRef struct {
	ID       ChartID  `json:"chartID,omitempty"`
	Hash     string   `json:"hash,omitempty"`
	Game     Game     `json:"game"`
	Playtype Playtype `json:"playtype"`
}

// Key returns the lookup key used for batch chart resolution.
func (r ChartRef) Key() string {
	if r.ID != "" {
		return "id:" + string(r.ID)
	}
	return fmt.Sprintf("hash:%s:%s:%s", r.Game, r.Playtype, r.Hash)
}

// UserChartPair identifies one reconciliation unit.
type UserChartPair struct {
	UserID  UserID
	ChartID ChartID
}

// ImportEntry is one parsed play inside an import document. The raw parsers
// live outside this system; by the time an entry arrives here it has this
// generic shape regardless of source format.
type ImportEntry struct {
	Chart        ChartRef       `json:"chart"`
	Score        float64        `json:"score"`
	Percent      float64        `json:"percent"`
	Lamp         Lamp           `json:"lamp"`
	TimeAchieved *int64         `json:"timeAchieved"` // unix ms, nil when the source has no timestamp
	Judgements   map[string]int `json:"judgements,omitempty"`
	Optional     map[string]any `json:"optional,omitempty"`
}

// ImportDocument is one ingestion request for one user from one service.
type ImportDocument struct {
	Service    string        `json:"service"`
	ImportType string        `json:"importType"`
	UserID     UserID        `json:"userID"`
	Game       Game          `json:"game"`
	Playtype   Playtype      `json:"playtype"`
	Entries    []ImportEntry `json:"entries"`
}

// ImportError records one failed entry within an import. An import is never a
// single pass/fail boolean; callers get the itemized outcomes.
type ImportError struct {
	EntryIndex int    `json:"entryIndex"`
	Reason     string `json:"reason"`
	Orphaned   bool   `json:"orphaned"`
}

// DeriveScoreID produces a stable content-derived score identifier so that
// re-importing identical play data is an upsert no-op.
func DeriveScoreID(userID UserID, chartID ChartID, score float64, lamp Lamp, timeAchieved *int64) ScoreID {
	ts := int64(-1)
	if timeAchieved != nil {
		ts = *timeAchieved
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%.6f|%s|%d", userID, chartID, score, lamp, ts))
	return ScoreID("S" + hex.EncodeToString(sum[:20]))
}
