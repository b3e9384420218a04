package remote

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"

	"backstage/internal/models"
	"backstage/internal/store"
)

// ErrRemoteNewer marks a conflict that needs a user choice: the remote copy
// is strictly newer than the local one and must never be overwritten
// silently.
var ErrRemoteNewer = errors.New("remote: cloud save is newer than local")

// Syncer applies the bulk-sync conflict policy over the local store and a
// cloud adapter: strictly-newer local wins and is pushed; strictly-newer
// remote is surfaced as a conflict.
type Syncer struct {
	Store   store.Store
	Adapter Adapter
}

// SyncResult reports what one bulk pass did.
type SyncResult struct {
	Pushed    []string `json:"pushed"`
	UpToDate  []string `json:"up_to_date"`
	Conflicts []string `json:"conflicts"`
}

// SyncAll walks local slot metadata and reconciles each against the cloud.
// Always best-effort: individual failures are logged and skipped.
func (s *Syncer) SyncAll() (*SyncResult, error) {
	if s.Adapter == nil || !s.Adapter.IsAvailable() {
		return nil, errors.New("remote: adapter unavailable")
	}

	locals, err := s.Store.GetAll(store.ColSaves)
	if err != nil {
		return nil, err
	}
	remotes, err := s.Adapter.ListRemote()
	if err != nil {
		return nil, err
	}
	remoteByID := make(map[string]models.SlotMetadata, len(remotes))
	for _, m := range remotes {
		remoteByID[m.ID] = m
	}

	res := &SyncResult{}
	for _, rec := range locals {
		var localMeta models.SlotMetadata
		if err := json.Unmarshal(rec.Payload, &localMeta); err != nil {
			continue
		}

		switch err := s.SyncSlot(localMeta, remoteByID[localMeta.ID]); {
		case errors.Is(err, ErrRemoteNewer):
			res.Conflicts = append(res.Conflicts, localMeta.ID)
		case err != nil:
			log.Printf("⚠️ Sync failed for %s: %v", localMeta.ID, err)
		default:
			if remoteByID[localMeta.ID].LastPlayed == localMeta.LastPlayed && remoteByID[localMeta.ID].ID != "" {
				res.UpToDate = append(res.UpToDate, localMeta.ID)
			} else {
				res.Pushed = append(res.Pushed, localMeta.ID)
			}
		}
	}
	return res, nil
}

// SyncSlot reconciles one slot. Missing remote or strictly-newer local
// pushes; equal timestamps are a no-op; strictly-newer remote returns
// ErrRemoteNewer for the UI to resolve.
func (s *Syncer) SyncSlot(local, remote models.SlotMetadata) error {
	localT := parseWhen(local.LastPlayed)
	remoteT := parseWhen(remote.LastPlayed)

	if remote.ID != "" && remoteT.After(localT) {
		return ErrRemoteNewer
	}
	if remote.ID != "" && remoteT.Equal(localT) {
		return nil
	}

	rec, err := s.Store.Get(store.ColGameData, local.ID)
	if err != nil {
		return fmt.Errorf("local read: %w", err)
	}
	return s.Adapter.Push(local.ID, rec.Payload, local)
}

// PullSlot fetches a remote save document for explicit, user-chosen adoption.
func (s *Syncer) PullSlot(saveID string) ([]byte, error) {
	if s.Adapter == nil || !s.Adapter.IsAvailable() {
		return nil, errors.New("remote: adapter unavailable")
	}
	return s.Adapter.Pull(saveID)
}

func parseWhen(iso string) time.Time {
	t, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return time.Time{}
	}
	return t
}
