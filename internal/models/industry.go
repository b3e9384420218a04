package models

// TrendState tracks one genre's popularity signal.
// Strength stays inside [0,1]; when it saturates (>=0.9 or <=0.1) or the
// countdown expires the trend resets with a fresh direction and duration.
type TrendState struct {
	Genre         string  `json:"genre"`
	Strength      float64 `json:"strength"`
	Direction     int     `json:"direction"` // -1 or +1
	DaysRemaining int     `json:"days_remaining"`
}

// TrendHistoryEntry archives a trend value at the moment of a reset.
type TrendHistoryEntry struct {
	Genre    string  `json:"genre"`
	Strength float64 `json:"strength"`
	Date     string  `json:"date"` // simulated ISO date
}

// NPCArtist is a simulated competitor. The Level fields are 0..1 scores;
// zero means "never set" and the simulation substitutes neutral constants.
type NPCArtist struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Genre            string  `json:"genre"`
	SkillLevel       float64 `json:"skill_level"`
	FameLevel        float64 `json:"fame_level"`
	ActivityLevel    float64 `json:"activity_level"`
	LabelID          string  `json:"label_id"`
	DaysSinceRelease int     `json:"days_since_release"`
}

type Label struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Buzz is the ambient industry chatter regenerated daily.
type Buzz struct {
	Topic     string  `json:"topic"`
	Intensity float64 `json:"intensity"` // 0..1
	DaysLeft  float64 `json:"days_left"`
}
