package game

import (
	"errors"

	"github.com/goccy/go-json"

	"backstage/internal/store"
)

// Settings are the player-adjustable knobs kept in the settings collection,
// applied on load and changed through the API.
type Settings struct {
	Autosave   bool    `json:"autosave"`
	ClockSpeed float64 `json:"clock_speed"` // simulated seconds per real second
}

func DefaultSettings() Settings {
	return Settings{Autosave: true, ClockSpeed: 86400}
}

// LoadSettings reads a profile's settings, falling back to defaults.
func (s *Session) LoadSettings(profileID string) Settings {
	rec, err := s.store.Get(store.ColSettings, profileID)
	if err != nil {
		return DefaultSettings()
	}
	var out Settings
	if err := json.Unmarshal(rec.Payload, &out); err != nil {
		return DefaultSettings()
	}
	if out.ClockSpeed <= 0 {
		out.ClockSpeed = DefaultSettings().ClockSpeed
	}
	return out
}

// SaveSettings persists the knobs and applies the clock speed immediately.
func (s *Session) SaveSettings(profileID string, cfg Settings) error {
	if profileID == "" {
		return errors.New("game: settings need a profile id")
	}
	data, err := json.Marshal(&cfg)
	if err != nil {
		return err
	}
	if err := s.store.Put(store.ColSettings, profileID, data); err != nil {
		return err
	}
	if cfg.ClockSpeed > 0 {
		s.clock.SetSpeed(cfg.ClockSpeed)
	}
	return nil
}
