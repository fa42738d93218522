package ratings

import (
	"fmt"
	"sort"
	"sync"

	chartdb "github.com/clearlamp/clearlamp/app/modules/chart/infrastructure/repositories"
	"github.com/clearlamp/clearlamp/app/shared"
)

// Draft is the raw play data handed to a provider before derivation.
type Draft struct {
	Score        float64
	Percent      float64
	Lamp         shared.Lamp
	Judgements   map[string]int
	Optional     map[string]any
	TimeAchieved *int64
}

// Derived is everything a provider computes from a draft play. Providers must
// be pure and deterministic for the same inputs; personal-best re-derivation
// depends on it.
type Derived struct {
	Grade      shared.Grade
	GradeIndex int
	LampIndex  int
	Calculated shared.CalculatedData
}

// Provider computes grade, lamp ordinal and rating scalars for one GPT.
type Provider interface {
	Evaluate(chart *chartdb.Chart, draft Draft) (Derived, error)
	// LampOnlyKeys names the calculated keys whose value is defined purely
	// in terms of the lamp, so the reconciler knows which keys to take from
	// the lamp PB when composing.
	LampOnlyKeys() []string
	// LampIndex maps a lamp to its ordinal for this GPT without a full
	// evaluation. Unknown lamps return a negative ordinal.
	LampIndex(lamp shared.Lamp) int
}

// Registry maps GPTs to providers. It is constructed explicitly and passed
// into the canonicalizer and the reconciler; there is no package-level
// default, so tests can substitute fakes freely.
type Registry struct {
	mu        sync.RWMutex
	providers map[shared.GPT]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[shared.GPT]Provider)}
}

// Register installs a provider for a GPT, replacing any previous one.
func (r *Registry) Register(gpt shared.GPT, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[gpt] = p
}

// Get returns the provider for a GPT.
func (r *Registry) Get(gpt shared.GPT) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[gpt]
	if !ok {
		return nil, fmt.Errorf("no rating provider registered for %s", gpt)
	}
	return p, nil
}

// GPTs lists registered GPTs in stable order.
func (r *Registry) GPTs() []shared.GPT {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]shared.GPT, 0, len(r.providers))
	for gpt := range r.providers {
		out = append(out, gpt)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
