package sim

import (
	"fmt"
	"math"

	"backstage/internal/models"
)

var starterArtists = []struct {
	name, genre, label string
	skill, fame, act   float64
}{
	{"Nova Reyes", "pop", "Polarlight", 0.8, 0.9, 0.7},
	{"The Rust Keys", "rock", "Ironside", 0.7, 0.6, 0.5},
	{"MC Fathom", "hiphop", "Deep Cut", 0.75, 0.7, 0.9},
	{"Glasshaus", "electronic", "Neon Grid", 0.65, 0.5, 0.8},
	{"Marigold June", "indie", "Paper Crane", 0.6, 0.3, 0.4},
	{"Velvet Gray", "rnb", "Polarlight", 0.7, 0.55, 0.6},
	{"Dust County", "country", "Ironside", 0.55, 0.4, 0.3},
	{"Ella Marsh Trio", "jazz", "Paper Crane", 0.85, 0.35, 0.2},
}

func (s *IndustrySim) seedRoster() {
	labelNames := map[string]string{}
	for _, a := range starterArtists {
		labelNames[a.label] = a.label
	}
	s.labels = s.labels[:0]
	labelIDs := map[string]string{}
	for name := range labelNames {
		id := s.nextID("label")
		labelIDs[name] = id
		s.labels = append(s.labels, models.Label{ID: id, Name: name + " Records"})
	}

	s.artists = s.artists[:0]
	for _, a := range starterArtists {
		s.artists = append(s.artists, models.NPCArtist{
			ID:            s.nextID("artist"),
			Name:          a.name,
			Genre:         a.genre,
			SkillLevel:    a.skill,
			FameLevel:     a.fame,
			ActivityLevel: a.act,
			LabelID:       labelIDs[a.label],
		})
	}
}

// orNeutral substitutes the neutral constant for a level that was never set.
func orNeutral(v float64) float64 {
	if v <= 0 {
		return neutralLevel
	}
	return clamp(v, 0, 1)
}

// updateArtists rolls release and social activity for every simulated
// artist. The release chance grows with activity, genre trend strength and a
// saturating days-since-last-release bonus.
func (s *IndustrySim) updateArtists(day string) {
	for i := range s.artists {
		a := &s.artists[i]
		a.DaysSinceRelease++

		trend := neutralLevel
		if t, ok := s.trends[a.Genre]; ok {
			trend = t.Strength
		}

		droughtBonus := math.Min(float64(a.DaysSinceRelease)/30.0, 1.0)
		releaseChance := clamp(
			0.02+0.06*orNeutral(a.ActivityLevel)+0.05*trend+0.08*droughtBonus,
			0, 0.25,
		)

		if s.rng.Float64() < releaseChance {
			s.releaseSong(a, trend, day)
		}

		socialChance := clamp(0.05+0.25*orNeutral(a.ActivityLevel), 0, 0.35)
		if s.rng.Float64() < socialChance {
			s.postSocial(a, day)
		}
	}
}

func (s *IndustrySim) releaseSong(a *models.NPCArtist, trend float64, day string) {
	quality := clamp(
		0.25+0.5*orNeutral(a.SkillLevel)+0.05*orNeutral(a.FameLevel)+0.2*s.rng.Float64(),
		0, 1,
	)
	appeal := clamp(0.5*quality+0.3*trend+0.2*s.mood, 0, 1)

	song := models.Song{
		ID:           s.nextID("song"),
		Title:        s.songTitle(a.Genre),
		ArtistID:     a.ID,
		ArtistName:   a.Name,
		Genre:        a.Genre,
		Quality:      quality,
		MarketAppeal: appeal,
		ReleasedAt:   day,
	}
	s.releases = append(s.releases, song)
	a.DaysSinceRelease = 0
	npcReleases.Inc()
}

func (s *IndustrySim) postSocial(a *models.NPCArtist, day string) {
	lines := []string{
		"%s teased new material in the studio",
		"%s went live for a surprise Q&A with fans",
		"%s shared a throwback from their first tour",
		"%s hinted at a collab nobody saw coming",
	}
	s.news = append(s.news, models.NewsItem{
		ID:       s.nextID("news"),
		Headline: fmt.Sprintf(lines[s.rng.Intn(len(lines))], a.Name),
		Date:     day,
	})
}

var titleWords = [][]string{
	{"Midnight", "Golden", "Electric", "Paper", "Wild", "Neon", "Quiet", "Broken"},
	{"Hearts", "Highway", "Summer", "Signal", "Echo", "Mirror", "Garden", "Static"},
}

func (s *IndustrySim) songTitle(genre string) string {
	return titleWords[0][s.rng.Intn(len(titleWords[0]))] + " " +
		titleWords[1][s.rng.Intn(len(titleWords[1]))]
}
