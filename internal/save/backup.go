package save

import (
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"backstage/internal/store"
)

// Rotation mirrors every confirmed live save into a timestamped backup and
// prunes a profile's backups down to the most recent Keep.
type Rotation struct {
	Store store.Store
	Keep  int
}

func NewRotation(s store.Store, keep int) *Rotation {
	if keep <= 0 {
		keep = 5
	}
	return &Rotation{Store: s, Keep: keep}
}

func backupPrefix(profileID string) string {
	return profileID + "_backup_"
}

// BackupID builds the id for a backup cut at ts.
func BackupID(profileID string, ts time.Time) string {
	return fmt.Sprintf("%s%d", backupPrefix(profileID), ts.UnixMilli())
}

// backupTimestamp extracts the epoch-ms suffix from a backup id, 0 if malformed.
func backupTimestamp(profileID, id string) int64 {
	raw := strings.TrimPrefix(id, backupPrefix(profileID))
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ts
}

// Rotate writes the backup copy and prunes. It runs strictly after the live
// write it mirrors has been confirmed durable; its own failures are logged
// and swallowed — they must never undo an already-successful save.
func (r *Rotation) Rotate(profileID string, payload []byte, now time.Time) {
	id := BackupID(profileID, now)
	if err := r.Store.Put(store.ColGameData, id, payload); err != nil {
		log.Printf("⚠️ Backup write failed for %s: %v", profileID, err)
		return
	}
	if err := r.Prune(profileID, r.Keep); err != nil {
		log.Printf("⚠️ Backup prune failed for %s: %v", profileID, err)
	}
}

// ListBackups returns a profile's backup records sorted newest-first.
func (r *Rotation) ListBackups(profileID string) ([]store.Record, error) {
	all, err := r.Store.GetAll(store.ColGameData)
	if err != nil {
		return nil, err
	}
	var backups []store.Record
	for _, rec := range all {
		if strings.HasPrefix(rec.ID, backupPrefix(profileID)) {
			backups = append(backups, rec)
		}
	}
	sort.Slice(backups, func(i, j int) bool {
		return backupTimestamp(profileID, backups[i].ID) > backupTimestamp(profileID, backups[j].ID)
	})
	return backups, nil
}

// Prune deletes a profile's oldest backups beyond keep.
func (r *Rotation) Prune(profileID string, keep int) error {
	backups, err := r.ListBackups(profileID)
	if err != nil {
		return err
	}
	for _, old := range backups[min(keep, len(backups)):] {
		if err := r.Store.Delete(store.ColGameData, old.ID); err != nil {
			return err
		}
	}
	return nil
}

// PruneForSpace is the quota-pressure path: drop everything but the single
// newest backup so a retried live write has room to land.
func (r *Rotation) PruneForSpace(profileID string) {
	log.Printf("🧹 Quota pressure: pruning backups for %s", profileID)
	if err := r.Prune(profileID, 1); err != nil {
		log.Printf("⚠️ Emergency prune failed: %v", err)
	}
}
