package sim

import (
	"math"

	"backstage/internal/models"
)

// genreTemplates maps each simulated genre to its baseline trend duration in
// days. A reset draws the next countdown from this value ±20%.
var genreTemplates = map[string]int{
	"pop":        20,
	"rock":       30,
	"hiphop":     25,
	"electronic": 15,
	"rnb":        28,
	"indie":      35,
	"country":    30,
	"jazz":       40,
}

// freshTrend starts a genre cycle: random direction, jittered countdown.
func (s *IndustrySim) freshTrend(genre string, strength float64) *models.TrendState {
	direction := 1
	if s.rng.Float64() < 0.5 {
		direction = -1
	}
	return &models.TrendState{
		Genre:         genre,
		Strength:      clamp(strength, 0, 1),
		Direction:     direction,
		DaysRemaining: s.jitteredDuration(genre),
	}
}

func (s *IndustrySim) jitteredDuration(genre string) int {
	base := genreTemplates[genre]
	if base <= 0 {
		base = 25
	}
	jitter := 1 + (s.rng.Float64()*2-1)*durationJitter // base ± 20%
	d := int(math.Round(float64(base) * jitter))
	if d < 1 {
		d = 1
	}
	return d
}

// updateTrends runs the per-genre cycle: countdown, directional drift of
// fixed magnitude, clamp, and reset on saturation or expiry. The value at
// the moment of reset is archived to the capped history ring.
func (s *IndustrySim) updateTrends(day string) {
	for genre, t := range s.trends {
		t.DaysRemaining--
		t.Strength = clamp(t.Strength+float64(t.Direction)*driftPerDay, 0, 1)

		if t.Strength >= trendHighWater || t.Strength <= trendLowWater || t.DaysRemaining <= 0 {
			s.archiveTrend(genre, t.Strength, day)
			s.trends[genre] = s.freshTrend(genre, t.Strength)
		}
	}
}

func (s *IndustrySim) archiveTrend(genre string, strength float64, day string) {
	s.history = append(s.history, models.TrendHistoryEntry{
		Genre:    genre,
		Strength: strength,
		Date:     day,
	})
	if len(s.history) > trendHistoryCap {
		s.history = s.history[len(s.history)-trendHistoryCap:]
	}
}

// WeeklyTrendRoll gives one random genre a stronger kick than the daily
// drift provides. Called from the weekly turn chain.
func (s *IndustrySim) WeeklyTrendRoll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	genre := s.randomGenre()
	t := s.trends[genre]
	kick := (s.rng.Float64()*2 - 1) * 0.1
	t.Strength = clamp(t.Strength+kick, 0, 1)
}

// TrendHistory returns a copy of the archived reset values, oldest first.
func (s *IndustrySim) TrendHistory() []models.TrendHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.TrendHistoryEntry(nil), s.history...)
}

func (s *IndustrySim) randomGenre() string {
	// Stable pick order is irrelevant; any genre will do.
	n := s.rng.Intn(len(genreList))
	return genreList[n]
}

// genreList mirrors genreTemplates for indexed random access.
var genreList = func() []string {
	out := make([]string, 0, len(genreTemplates))
	for _, g := range []string{"pop", "rock", "hiphop", "electronic", "rnb", "indie", "country", "jazz"} {
		if _, ok := genreTemplates[g]; ok {
			out = append(out, g)
		}
	}
	return out
}()
