package models

import "github.com/goccy/go-json"

// SnapshotVersion is the schema/compat marker stamped into every save.
const SnapshotVersion = "1.0.0"

// GameSnapshot is the unit of persistence: a self-contained picture of the
// whole session. Loading one and replaying SubsystemStates into each
// registered subsystem fully reconstructs play state with no external lookups.
type GameSnapshot struct {
	Version       string `json:"version"`
	Timestamp     int64  `json:"timestamp"`      // wall clock, epoch ms
	SimulatedDate string `json:"simulated_date"` // in-game calendar, ISO date

	Player   *PlayerState `json:"player"`
	Entities Entities     `json:"entities"`

	// Actions accrued since the last successful save. Cleared atomically with
	// the save that carried them, never partially.
	PendingActions []PendingAction `json:"pending_actions"`

	// Opaque per-subsystem blobs, keyed by subsystem name.
	SubsystemStates map[string]json.RawMessage `json:"subsystem_states"`
}

// PlayerState holds the artist's identity, resources and discography refs.
type PlayerState struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Genre  string  `json:"genre"`
	Level  int     `json:"level"`
	Money  float64 `json:"money"`
	Energy float64 `json:"energy"`
	Mood   float64 `json:"mood"`
	Fans   int     `json:"fans"`

	Skills map[string]float64 `json:"skills"`

	SongIDs  []string `json:"song_ids"`
	AlbumIDs []string `json:"album_ids"`

	Stats map[string]int `json:"stats"` // lifetime counters
}

// Entities groups every world object that belongs in a snapshot.
type Entities struct {
	Songs  map[string]*Song  `json:"songs"`
	Albums map[string]*Album `json:"albums"`
	Charts []ChartEntry      `json:"charts"`
	News   []NewsItem        `json:"news"`
	Events []IndustryEvent   `json:"events"`
}

type Song struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	ArtistID     string  `json:"artist_id"`
	ArtistName   string  `json:"artist_name"`
	Genre        string  `json:"genre"`
	Quality      float64 `json:"quality"`       // 0..1
	MarketAppeal float64 `json:"market_appeal"` // 0..1
	Streams      int     `json:"streams"`
	ReleasedAt   string  `json:"released_at"` // simulated ISO date
}

type Album struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ArtistID   string   `json:"artist_id"`
	SongIDs    []string `json:"song_ids"`
	ReleasedAt string   `json:"released_at"`
}

// ChartEntry is one row of the weekly top chart. Charts are kept as an
// ordered slice (position 1 first) — the single canonical representation,
// migrated at load time if an older save carried a map.
type ChartEntry struct {
	Position   int    `json:"position"`
	SongID     string `json:"song_id"`
	Title      string `json:"title"`
	ArtistName string `json:"artist_name"`
	WeeksOn    int    `json:"weeks_on"`
}

type NewsItem struct {
	ID       string `json:"id"`
	Headline string `json:"headline"`
	Body     string `json:"body"`
	Date     string `json:"date"` // simulated ISO date
}

// IndustryEvent is a live narrative event. DaysLeft is decremented by elapsed
// simulated days each tick; the event is dropped once it reaches zero.
type IndustryEvent struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"` // collaboration | controversy | industry_news
	Outcome     string  `json:"outcome"`
	Description string  `json:"description"`
	Timestamp   int64   `json:"timestamp"`
	DaysLeft    float64 `json:"days_left"`
}

// PendingAction records one gameplay trigger awaiting durable persistence.
type PendingAction struct {
	Type      string         `json:"type"`
	Timestamp int64          `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}
