package game

import (
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"github.com/goccy/go-json"

	"backstage/internal/models"
	"backstage/internal/notify"
	"backstage/internal/store"
)

const (
	weeklyEnergyRegen = 40.0
	chartSize         = 20
	payoutPerStream   = 0.004
)

// hookRegen restores weekly resources. Runs first in the turn chain so the
// rest of the week's math sees regenerated values.
func (s *Session) hookRegen(time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}
	s.player.Energy = math.Min(100, s.player.Energy+weeklyEnergyRegen)
	// Mood drifts gently back toward its resting point.
	s.player.Mood += (60 - s.player.Mood) * 0.2
	return nil
}

// hookCharts is the weekly batch update: pull the simulation's releases and
// news into the world, recompute the chart from song performance, accrue
// streams and pay the player their share.
func (s *Session) hookCharts(date time.Time) error {
	releases, news := s.industry.DrainOutputs()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil
	}

	for i := range releases {
		song := releases[i]
		s.entities.Songs[song.ID] = &song
	}
	s.entities.News = append(s.entities.News, news...)
	if len(s.entities.News) > 100 {
		s.entities.News = s.entities.News[len(s.entities.News)-100:]
	}

	mood := s.industry.Mood()
	prevWeeks := make(map[string]int, len(s.entities.Charts))
	for _, c := range s.entities.Charts {
		prevWeeks[c.SongID] = c.WeeksOn
	}

	type scored struct {
		song  *models.Song
		score float64
	}
	var ranked []scored
	var playerStreams int
	for _, song := range s.entities.Songs {
		trend := s.industry.TrendStrength(song.Genre)
		score := song.Quality*0.5 + song.MarketAppeal*0.3 + trend*0.15 + mood*0.05

		gained := int(score * (800 + s.rng.Float64()*4200))
		song.Streams += gained
		if song.ArtistID == s.player.ID {
			playerStreams += gained
		}
		ranked = append(ranked, scored{song, score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].song.ID < ranked[j].song.ID // stable tie-break
	})

	s.entities.Charts = s.entities.Charts[:0]
	for i, r := range ranked {
		if i >= chartSize {
			break
		}
		s.entities.Charts = append(s.entities.Charts, models.ChartEntry{
			Position:   i + 1,
			SongID:     r.song.ID,
			Title:      r.song.Title,
			ArtistName: r.song.ArtistName,
			WeeksOn:    prevWeeks[r.song.ID] + 1,
		})
	}

	payout := float64(playerStreams) * payoutPerStream
	s.player.Money += payout
	s.player.Fans += playerStreams / 50
	if payout > 0 {
		log.Printf("🎧 Week of %s: %d streams, $%.2f payout", date.Format("2006-01-02"), playerStreams, payout)
	}
	return nil
}

// hookStats accrues lifetime counters and checks achievement thresholds.
// Store writes here are best-effort; the snapshot carries the same data.
func (s *Session) hookStats(date time.Time) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}

	s.player.Stats["weeks_played"]++
	for _, c := range s.entities.Charts {
		if c.SongID != "" && s.entities.Songs[c.SongID] != nil &&
			s.entities.Songs[c.SongID].ArtistID == s.player.ID {
			if best, ok := s.player.Stats["best_chart_position"]; !ok || c.Position < best {
				s.player.Stats["best_chart_position"] = c.Position
			}
		}
	}

	profileID := s.profileID
	stats := make(map[string]int, len(s.player.Stats))
	for k, v := range s.player.Stats {
		stats[k] = v
	}
	fans := s.player.Fans
	s.mu.Unlock()

	if data, err := json.Marshal(stats); err == nil {
		if err := s.store.Put(store.ColStatistics, profileID, data); err != nil {
			log.Printf("⚠️ Statistics write failed: %v", err)
		}
	}

	s.checkAchievements(profileID, stats, fans)
	return nil
}

type achievement struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	EarnedAt string `json:"earned_at"`
}

func (s *Session) checkAchievements(profileID string, stats map[string]int, fans int) {
	candidates := []struct {
		id, title string
		earned    bool
	}{
		{"first_song", "First Song Released", stats["songs_released"] >= 1},
		{"ten_songs", "Double Digits", stats["songs_released"] >= 10},
		{"chart_topper", "Chart Topper", stats["best_chart_position"] == 1 && stats["best_chart_position"] > 0},
		{"crowd_10k", "10k Fans", fans >= 10000},
		{"one_year", "A Year in the Game", stats["weeks_played"] >= 52},
	}

	for _, c := range candidates {
		if !c.earned {
			continue
		}
		key := profileID + "_" + c.id
		if _, err := s.store.Get(store.ColAchievements, key); err == nil {
			continue // already earned
		}
		a := achievement{ID: c.id, Title: c.title, EarnedAt: time.Now().UTC().Format(time.RFC3339)}
		if data, err := json.Marshal(&a); err == nil {
			if err := s.store.Put(store.ColAchievements, key, data); err != nil {
				continue
			}
		}
		s.notifier.Notify(fmt.Sprintf("Achievement unlocked: %s", c.title), notify.Success, 5*time.Second)
	}
}
