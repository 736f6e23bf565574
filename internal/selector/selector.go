// Package selector picks de-duplicated catalog tracks for every stage of a mood arc.
//
// Each stage widens its tolerance until enough candidates match, samples them at
// random, and tops up from the whole catalog when still short. The requested count
// is guaranteed whenever the catalog is large enough; closeness to the stage target
// is not.
package selector

import (
	"context"
	"math/rand/v2"

	"github.com/justestif/moodarc/internal/catalog"
	"github.com/justestif/moodarc/internal/logging"
	"github.com/justestif/moodarc/internal/metrics"
	"github.com/justestif/moodarc/internal/mood"
)

// Track count bounds for one selection.
const (
	MinTracks     = 10
	MaxTracks     = 60
	DefaultTracks = 30
)

// Default tolerance schedule.
const (
	DefaultBaseTolerance = 0.12
	DefaultMaxTolerance  = 0.28
	DefaultStep          = 0.04
)

// NoStage tags picks made without an arc.
const NoStage = -1

// ClampTracks bounds a requested track count to [MinTracks, MaxTracks].
func ClampTracks(n int) int {
	return max(MinTracks, min(MaxTracks, n))
}

// Selector picks tracks from an immutable catalog. It holds no per-run state and
// is safe for concurrent use.
type Selector struct {
	catalog *catalog.Catalog
	baseTol float64
	maxTol  float64
	step    float64

	seed   uint64
	seeded bool
}

// Option configures a Selector.
type Option func(*Selector)

// WithSeed makes every run draw from a PCG source seeded with seed, so results
// are reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Selector) {
		s.seed = seed
		s.seeded = true
	}
}

// WithTolerances overrides the tolerance schedule. Invalid values are ignored.
func WithTolerances(base, maxTol, step float64) Option {
	return func(s *Selector) {
		if base <= 0 || maxTol < base || step <= 0 {
			return
		}
		s.baseTol, s.maxTol, s.step = base, maxTol, step
	}
}

// New returns a Selector over c.
func New(c *catalog.Catalog, opts ...Option) *Selector {
	s := &Selector{
		catalog: c,
		baseTol: DefaultBaseTolerance,
		maxTol:  DefaultMaxTolerance,
		step:    DefaultStep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Pick is one selected track and the zero-based arc stage it was chosen for.
type Pick struct {
	Track catalog.Track
	Stage int
}

// StageStats describes how one stage was filled.
type StageStats struct {
	Stage      int
	Want       int
	Got        int
	Tolerance  float64
	Candidates int
	Fallbacks  []string
}

// Result is an ordered selection. Picks are grouped by stage in arc order.
type Result struct {
	Picks     []Pick
	Requested int
	Stages    int
	Stats     []StageStats
}

// Short returns how many tracks the selection is missing, or 0 if it is full.
func (r Result) Short() int {
	return max(0, r.Requested-len(r.Picks))
}

// StageCounts returns the number of picks per stage, indexed by stage.
func (r Result) StageCounts() []int {
	counts := make([]int, r.Stages)
	for _, p := range r.Picks {
		if p.Stage >= 0 && p.Stage < r.Stages {
			counts[p.Stage]++
		}
	}
	return counts
}

// Tracks returns the picked tracks in order.
func (r Result) Tracks() []catalog.Track {
	out := make([]catalog.Track, len(r.Picks))
	for i, p := range r.Picks {
		out[i] = p.Track
	}
	return out
}

// StageQuotas splits total across stages: every stage gets total/stages (at least 1)
// and the first total%stages stages get one more.
func StageQuotas(total, stages int) []int {
	if stages <= 0 {
		return nil
	}
	perStage := max(1, total/stages)
	remainder := total - perStage*stages

	quotas := make([]int, stages)
	for i := range quotas {
		quotas[i] = perStage
		if i < remainder {
			quotas[i]++
		}
	}
	return quotas
}

// PickTracksForArc selects total tracks (clamped to [MinTracks, MaxTracks]) across
// the stages of arc. An empty arc yields a uniform random sample tagged NoStage.
// No track key appears twice in the result. A result shorter than requested means
// the catalog ran out of unused tracks.
func (s *Selector) PickTracksForArc(ctx context.Context, arc []mood.Vector, total int) Result {
	total = ClampTracks(total)
	r := s.newRun()

	var res Result
	if len(arc) == 0 {
		res = r.sampleUniform(total)
	} else {
		res = Result{Stages: len(arc)}
		quotas := StageQuotas(total, len(arc))
		for i, target := range arc {
			res.Requested += quotas[i]
			tracks, stats := r.selectStage(target, quotas[i])
			stats.Stage = i
			for _, t := range tracks {
				res.Picks = append(res.Picks, Pick{Track: t, Stage: i})
			}
			res.Stats = append(res.Stats, stats)
			metrics.RecordStage(stats.Tolerance, stats.Fallbacks...)

			logging.Ctx(ctx).Debug().
				Int("stage", i).
				Int("want", stats.Want).
				Int("got", stats.Got).
				Float64("tolerance", stats.Tolerance).
				Int("candidates", stats.Candidates).
				Strs("fallbacks", stats.Fallbacks).
				Msg("stage selected")
		}
	}

	metrics.RecordSelection(res.Requested, len(res.Picks))
	if short := res.Short(); short > 0 {
		logging.Ctx(ctx).Warn().
			Int("requested", res.Requested).
			Int("selected", len(res.Picks)).
			Int("catalog_size", s.catalog.Len()).
			Msg("selection under-filled, catalog exhausted")
	}
	return res
}

// run holds the state of one selection. It must not outlive or be shared beyond
// a single PickTracksForArc call.
type run struct {
	*Selector
	rng  *rand.Rand
	used map[string]struct{}
}

func (s *Selector) newRun() *run {
	var src rand.Source
	if s.seeded {
		src = rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15)
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &run{
		Selector: s,
		rng:      rand.New(src),
		used:     make(map[string]struct{}),
	}
}

// claim marks t as used and reports whether it was free.
func (r *run) claim(t catalog.Track) bool {
	key := t.Key()
	if _, taken := r.used[key]; taken {
		return false
	}
	r.used[key] = struct{}{}
	return true
}

// selectStage picks up to want unused tracks near target.
func (r *run) selectStage(target mood.Vector, want int) ([]catalog.Track, StageStats) {
	stats := StageStats{Want: want, Tolerance: r.baseTol}
	if want <= 0 {
		return nil, stats
	}

	tol := r.baseTol
	pool := r.catalog.Filter(target, tol)
	for k := 1; len(pool) < want && tol < r.maxTol; k++ {
		tol = min(r.maxTol, r.baseTol+float64(k)*r.step)
		pool = r.catalog.Filter(target, tol)
	}
	stats.Tolerance = tol
	stats.Candidates = len(pool)
	if tol > r.baseTol {
		stats.Fallbacks = append(stats.Fallbacks, metrics.FallbackWidened)
	}

	if len(pool) == 0 {
		pool = r.allIndices()
		stats.Fallbacks = append(stats.Fallbacks, metrics.FallbackWholeCatalog)
	}

	out := make([]catalog.Track, 0, want)

	// Partial Fisher-Yates: positions [0,i) hold the draws so far.
	sampleSize := min(len(pool), max(want*4, want+20))
	for i := 0; i < sampleSize && len(out) < want; i++ {
		j := i + r.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		if t := r.catalog.At(pool[i]); r.claim(t) {
			out = append(out, t)
		}
	}

	if len(out) < want {
		stats.Fallbacks = append(stats.Fallbacks, metrics.FallbackTopUp)
		n := r.catalog.Len()
		for attempts := want * 10; len(out) < want && attempts > 0; attempts-- {
			if t := r.catalog.At(r.rng.IntN(n)); r.claim(t) {
				out = append(out, t)
			}
		}
		// Blind draws miss the last few free rows of a tight catalog; sweep
		// the rest in random order so only true exhaustion under-fills.
		if len(out) < want {
			rest := r.allIndices()
			for i := 0; i < len(rest) && len(out) < want; i++ {
				j := i + r.rng.IntN(len(rest)-i)
				rest[i], rest[j] = rest[j], rest[i]
				if t := r.catalog.At(rest[i]); r.claim(t) {
					out = append(out, t)
				}
			}
		}
	}

	stats.Got = len(out)
	return out, stats
}

// sampleUniform draws up to total distinct tracks from the whole catalog.
func (r *run) sampleUniform(total int) Result {
	want := min(total, r.catalog.Len())
	res := Result{Requested: total}

	pool := r.allIndices()
	for i := 0; i < len(pool) && len(res.Picks) < want; i++ {
		j := i + r.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		if t := r.catalog.At(pool[i]); r.claim(t) {
			res.Picks = append(res.Picks, Pick{Track: t, Stage: NoStage})
		}
	}
	return res
}

func (r *run) allIndices() []int {
	idx := make([]int, r.catalog.Len())
	for i := range idx {
		idx[i] = i
	}
	return idx
}
