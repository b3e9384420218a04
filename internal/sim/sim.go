package sim

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"backstage/internal/models"
)

// Metrics
var (
	dailyRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backstage_sim_daily_runs_total", Help: "Daily simulation passes"},
	)
	eventsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backstage_sim_events_total", Help: "Industry events generated"},
		[]string{"type"},
	)
	npcReleases = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backstage_sim_npc_releases_total", Help: "Songs released by simulated artists"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(dailyRuns, eventsGenerated, npcReleases)
}

// Tuning constants. Outputs of every randomized derivation are clamped to
// the documented ranges; a neutral constant stands in for any artist field
// that was never set.
const (
	driftPerDay     = 0.05
	trendHighWater  = 0.9
	trendLowWater   = 0.1
	durationJitter  = 0.2
	trendHistoryCap = 90
	moodMin         = 0.2
	moodMax         = 0.8
	neutralLevel    = 0.5
)

// IndustrySim procedurally evolves genre trends, aggregate market mood and
// narrative industry events. It is driven by the clock's daily tick and owns
// only its namespaced slice of state, exposed through GetState/SetState.
type IndustrySim struct {
	mu  sync.Mutex
	rng *rand.Rand

	trends  map[string]*models.TrendState
	history []models.TrendHistoryEntry // capped ring, oldest evicted first
	mood    float64
	buzz    models.Buzz
	events  []models.IndustryEvent
	artists []models.NPCArtist
	labels  []models.Label

	lastSimDay  string // gate: the daily pass runs at most once per simulated day
	eventChance float64
	seq         int

	// Outputs accrued since the last drain; the game pulls these into its
	// entity maps on the weekly boundary.
	releases []models.Song
	news     []models.NewsItem
}

// New seeds a simulation. seed 0 means time-seeded (live play); tests pass a
// fixed seed for reproducible worlds.
func New(seed int64, eventChance float64) *IndustrySim {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if eventChance <= 0 {
		eventChance = 0.08
	}

	s := &IndustrySim{
		rng:         rand.New(rand.NewSource(seed)),
		trends:      make(map[string]*models.TrendState),
		mood:        0.5,
		eventChance: eventChance,
	}

	for genre := range genreTemplates {
		s.trends[genre] = s.freshTrend(genre, 0.5)
	}
	s.seedRoster()
	return s
}

// RunDaily is the once-per-simulated-day pass. Gating is keyed purely to the
// simulated calendar: pausing the game for real days advances nothing.
func (s *IndustrySim) RunDaily(date time.Time) error {
	day := date.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()

	if day == s.lastSimDay {
		return nil
	}
	s.lastSimDay = day
	dailyRuns.Inc()

	s.updateTrends(day)
	s.updateArtists(day)
	s.updateMood()
	s.regenerateBuzz()
	s.decayEventsLocked(1)
	s.maybeGenerateEventLocked(date)
	return nil
}

// DecayEvents reduces every active event's remaining duration by the elapsed
// simulated days and drops the expired ones.
func (s *IndustrySim) DecayEvents(elapsedDays float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decayEventsLocked(elapsedDays)
}

func (s *IndustrySim) decayEventsLocked(elapsedDays float64) {
	alive := s.events[:0]
	for _, e := range s.events {
		e.DaysLeft -= elapsedDays
		if e.DaysLeft > 0 {
			alive = append(alive, e)
		}
	}
	s.events = alive
}

// updateMood blends the average trend strength with a bounded random walk.
func (s *IndustrySim) updateMood() {
	var sum float64
	for _, t := range s.trends {
		sum += t.Strength
	}
	avg := 0.5
	if len(s.trends) > 0 {
		avg = sum / float64(len(s.trends))
	}

	noise := (s.rng.Float64() - 0.5) * 0.08
	s.mood = clamp(0.6*s.mood+0.4*avg+noise, moodMin, moodMax)
}

func (s *IndustrySim) regenerateBuzz() {
	genre := s.randomGenre()
	s.buzz = models.Buzz{
		Topic:     fmt.Sprintf("%s is everywhere right now", genre),
		Intensity: clamp(s.trends[genre].Strength+0.2*s.rng.Float64(), 0, 1),
		DaysLeft:  1,
	}
}

// --- Read accessors (copies; callers never see internal slices) ---

func (s *IndustrySim) Mood() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mood
}

func (s *IndustrySim) CurrentBuzz() models.Buzz {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buzz
}

func (s *IndustrySim) Trends() map[string]models.TrendState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.TrendState, len(s.trends))
	for g, t := range s.trends {
		out[g] = *t
	}
	return out
}

// TrendStrength returns a genre's current strength, neutral for unknown genres.
func (s *IndustrySim) TrendStrength(genre string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.trends[genre]; ok {
		return t.Strength
	}
	return neutralLevel
}

func (s *IndustrySim) ActiveEvents() []models.IndustryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.IndustryEvent(nil), s.events...)
}

// DrainOutputs hands over the NPC releases and news accrued since the last
// drain and resets the buffers.
func (s *IndustrySim) DrainOutputs() ([]models.Song, []models.NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, news := s.releases, s.news
	s.releases, s.news = nil, nil
	return rel, news
}

func (s *IndustrySim) nextID(kind string) string {
	s.seq++
	return fmt.Sprintf("%s_%d", kind, s.seq)
}

// --- Persistence (Persistable contract) ---

type simState struct {
	Trends     map[string]*models.TrendState `json:"trends"`
	History    []models.TrendHistoryEntry    `json:"history"`
	Mood       float64                       `json:"mood"`
	Buzz       models.Buzz                   `json:"buzz"`
	Events     []models.IndustryEvent        `json:"events"`
	Artists    []models.NPCArtist            `json:"artists"`
	Labels     []models.Label                `json:"labels"`
	LastSimDay string                        `json:"last_sim_day"`
	Seq        int                           `json:"seq"`

	// Outputs not yet drained by the game loop ride along so a snapshot
	// taken between a daily pass and the weekly drain loses nothing.
	Releases []models.Song     `json:"releases,omitempty"`
	News     []models.NewsItem `json:"news,omitempty"`
}

func (s *IndustrySim) Name() string { return "industry_sim" }

func (s *IndustrySim) GetState() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(simState{
		Trends:     s.trends,
		History:    s.history,
		Mood:       s.mood,
		Buzz:       s.buzz,
		Events:     s.events,
		Artists:    s.artists,
		Labels:     s.labels,
		LastSimDay: s.lastSimDay,
		Seq:        s.seq,
		Releases:   s.releases,
		News:       s.news,
	})
}

func (s *IndustrySim) SetState(blob []byte) error {
	var st simState
	if err := json.Unmarshal(blob, &st); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure maps are never nil after load; saves from older versions may
	// predate some genres.
	if st.Trends == nil {
		st.Trends = make(map[string]*models.TrendState)
	}
	for genre := range genreTemplates {
		if _, ok := st.Trends[genre]; !ok {
			st.Trends[genre] = s.freshTrend(genre, 0.5)
		}
	}

	s.trends = st.Trends
	s.history = st.History
	s.mood = clamp(st.Mood, moodMin, moodMax)
	s.buzz = st.Buzz
	s.events = st.Events
	s.artists = st.Artists
	s.labels = st.Labels
	s.lastSimDay = st.LastSimDay
	s.seq = st.Seq
	s.releases = st.Releases
	s.news = st.News

	if len(s.artists) == 0 {
		s.seedRoster()
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
