package models

// SaveRecord is what actually lands in the gameData collection: a snapshot
// plus store metadata. Backups use the id pattern "{profile}_backup_{ts}",
// the live save uses the bare profile id.
type SaveRecord struct {
	ID       string        `json:"id"`
	Snapshot *GameSnapshot `json:"snapshot"`
	Hash     string        `json:"hash"` // integrity checksum of the snapshot bytes
	IsBackup bool          `json:"is_backup"`
	SavedAt  int64         `json:"saved_at"` // epoch ms
}

// SlotMetadata is the lightweight row the save-picker renders without
// loading full snapshots. Lives in the "saves" collection.
type SlotMetadata struct {
	ID         string  `json:"id"`
	PlayerName string  `json:"player_name"`
	Level      int     `json:"level"`
	Genre      string  `json:"genre"`
	Money      float64 `json:"money"`
	Fans       int     `json:"fans"`
	LastPlayed string  `json:"last_played"` // ISO string
	Version    string  `json:"version"`
}
