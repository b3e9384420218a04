package sim

import (
	"fmt"
	"strings"
	"time"

	"backstage/internal/models"
)

// Event archetypes and their outcome/template tables. Placeholders are
// filled from live roster lookups with safe fallbacks so an empty world
// still produces readable copy.
type eventArchetype struct {
	kind      string
	outcomes  []string
	templates []string
	daysMin   int
	daysMax   int
}

var archetypes = []eventArchetype{
	{
		kind:     "collaboration",
		outcomes: []string{"announced", "rumored", "confirmed"},
		templates: []string{
			"{artist} and {artist2} are working on a joint {genre} record",
			"{label} brokered a surprise {artist} x {artist2} single",
		},
		daysMin: 3, daysMax: 10,
	},
	{
		kind:     "controversy",
		outcomes: []string{"backlash", "apology", "blown_over"},
		templates: []string{
			"{artist} under fire after leaked studio audio",
			"{label} drops {artist} amid contract dispute",
		},
		daysMin: 2, daysMax: 7,
	},
	{
		kind:     "industry_news",
		outcomes: []string{"surge", "slump", "shakeup"},
		templates: []string{
			"Streaming of {genre} up {percent}% this quarter",
			"{label} restructures A&R as {genre} cools by {percent}%",
		},
		daysMin: 5, daysMax: 14,
	},
}

// MaybeGenerateEvent rolls the small per-tick probability and, on success,
// synthesizes one industry event. Independent of the daily cadence.
func (s *IndustrySim) MaybeGenerateEvent(now time.Time) *models.IndustryEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maybeGenerateEventLocked(now)
}

func (s *IndustrySim) maybeGenerateEventLocked(now time.Time) *models.IndustryEvent {
	if s.rng.Float64() >= s.eventChance {
		return nil
	}

	arch := archetypes[s.rng.Intn(len(archetypes))]
	outcome := arch.outcomes[s.rng.Intn(len(arch.outcomes))]
	template := arch.templates[s.rng.Intn(len(arch.templates))]

	e := models.IndustryEvent{
		ID:          s.nextID("event"),
		Type:        arch.kind,
		Outcome:     outcome,
		Description: s.fillTemplate(template),
		Timestamp:   now.UnixMilli(),
		DaysLeft:    float64(arch.daysMin + s.rng.Intn(arch.daysMax-arch.daysMin+1)),
	}
	s.events = append(s.events, e)
	eventsGenerated.WithLabelValues(arch.kind).Inc()
	return &e
}

// fillTemplate substitutes {artist}, {artist2}, {label}, {genre} and
// {percent} from live game data, falling back to fixed placeholders when no
// data exists.
func (s *IndustrySim) fillTemplate(template string) string {
	first := s.pickArtistName("")
	out := strings.NewReplacer(
		"{artist}", first,
		"{artist2}", s.pickArtistName(first),
		"{label}", s.pickLabelName(),
		"{genre}", s.randomGenre(),
		"{percent}", fmt.Sprintf("%d", 5+s.rng.Intn(35)),
	).Replace(template)
	return out
}

func (s *IndustrySim) pickArtistName(not string) string {
	if len(s.artists) == 0 {
		return "Unknown Artist"
	}
	for tries := 0; tries < 4; tries++ {
		name := s.artists[s.rng.Intn(len(s.artists))].Name
		if name != not {
			return name
		}
	}
	return s.artists[s.rng.Intn(len(s.artists))].Name
}

func (s *IndustrySim) pickLabelName() string {
	if len(s.labels) == 0 {
		return "Indie Label"
	}
	return s.labels[s.rng.Intn(len(s.labels))].Name
}
