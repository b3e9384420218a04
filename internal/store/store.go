package store

import (
	"errors"
	"log"
	"strings"
	"time"

	"backstage/internal/config"
)

// Collections the game uses. Everything is a namespaced JSON document keyed
// by string id; the backend never inspects payloads.
const (
	ColGameData     = "gameData"
	ColPlayerData   = "playerData"
	ColStatistics   = "statistics"
	ColAchievements = "achievements"
	ColSettings     = "settings"
	ColSaves        = "saves"
)

var (
	ErrNotFound = errors.New("store: record not found")
	// ErrQuotaExceeded wraps backend "out of space" failures so the save
	// layer can run an eager backup cleanup before retrying.
	ErrQuotaExceeded = errors.New("store: quota exceeded")
)

// Record is the provider-agnostic row shape returned by reads.
type Record struct {
	ID        string
	Payload   []byte
	UpdatedAt time.Time
}

// Store defines the behavior for any persistence backend.
// Every write replaces the full record; there are no partial updates.
type Store interface {
	Put(collection, id string, payload []byte) error
	Get(collection, id string) (*Record, error)
	GetAll(collection string) ([]Record, error)
	Delete(collection, id string) error
	Clear(collection string) error
}

// New selects the backend from config: transactional sqlite by default,
// flat JSON files as the fallback provider.
func New(cfg *config.Config) Store {
	if cfg.Storage.Provider == "file" {
		log.Printf("💾 Storage: file provider (root %s)", cfg.Storage.FileRoot)
		return NewFileStore(cfg.Storage.FileRoot)
	}

	s, err := NewSqliteStore(cfg.Storage.SqlitePath)
	if err != nil {
		log.Printf("⚠️ Sqlite unavailable (%v). Falling back to file provider.", err)
		return NewFileStore(cfg.Storage.FileRoot)
	}
	log.Printf("💾 Storage: sqlite provider (%s)", cfg.Storage.SqlitePath)
	return s
}

// quotaErr classifies backend-specific "disk full" failures.
func quotaErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "disk is full") ||
		strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "quota") {
		return errors.Join(ErrQuotaExceeded, err)
	}
	return err
}
