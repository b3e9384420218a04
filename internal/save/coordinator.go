package save

import (
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"backstage/internal/models"
	"backstage/internal/notify"
	"backstage/internal/store"
)

// Metrics
var (
	savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backstage_saves_total", Help: "Completed save operations"},
		[]string{"result"},
	)
	saveRetries = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backstage_save_retries_total", Help: "Save attempts beyond the first"},
	)
	recoveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backstage_recoveries_total", Help: "Backup recovery runs"},
		[]string{"result"},
	)
	eventsCoalesced = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backstage_save_events_coalesced_total", Help: "Events swallowed by the debounce window"},
	)
	saveDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backstage_save_duration_seconds",
			Help:    "Time taken by one performSave",
			Buckets: []float64{0.005, 0.02, 0.1, 0.5, 1, 2},
		},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(savesTotal, saveRetries, recoveriesTotal, eventsCoalesced, saveDuration)
}

var (
	ErrNoValidBackup = errors.New("save: no valid backup found")
	ErrNoSession     = errors.New("save: no active session")
)

// SnapshotSource is what the coordinator needs from the game: it never
// reaches into subsystems itself, it only asks for a snapshot at save time
// and hands one back at restore time.
type SnapshotSource interface {
	Active() bool
	ProfileID() string
	BuildSnapshot() (*models.GameSnapshot, error)
	RestoreSnapshot(*models.GameSnapshot) error
}

// RemotePusher is the optional cloud hook. Push failures are never fatal.
type RemotePusher interface {
	IsAvailable() bool
	Push(saveID string, payload []byte, meta models.SlotMetadata) error
}

// Options carries the save tunables out of config.
type Options struct {
	Debounce   time.Duration
	Attempts   int
	Backoff    time.Duration
	PendingCap int
	RemotePush bool
}

func DefaultOptions() Options {
	return Options{
		Debounce:   350 * time.Millisecond,
		Attempts:   3,
		Backoff:    100 * time.Millisecond,
		PendingCap: 50,
	}
}

// Coordinator guarantees that gameplay-significant changes are durably
// persisted with bounded staleness, without saving on every micro-mutation.
type Coordinator struct {
	store    store.Store
	rotation *Rotation
	source   SnapshotSource
	notifier notify.Notifier
	remote   RemotePusher // may be nil
	opts     Options

	mu         sync.Mutex // guards pending + timer
	pending    []pendingEntry
	pendingSeq uint64
	timer      *time.Timer // single-slot debounce handle

	saveMu       sync.Mutex // serializes performSave
	lastGoodHash string
}

func NewCoordinator(s store.Store, rot *Rotation, src SnapshotSource, n notify.Notifier, opts Options) *Coordinator {
	if opts.Attempts <= 0 {
		opts = DefaultOptions()
	}
	if n == nil {
		n = notify.LogNotifier{}
	}
	return &Coordinator{
		store:    s,
		rotation: rot,
		source:   src,
		notifier: n,
		opts:     opts,
	}
}

// SetRemote attaches the optional cloud pusher.
func (c *Coordinator) SetRemote(r RemotePusher) { c.remote = r }

// LastGoodHash returns the checksum of the last save confirmed durable.
func (c *Coordinator) LastGoodHash() string {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return c.lastGoodHash
}

// pendingEntry tags each queued action with a monotonic sequence number so a
// completed save can clear exactly the actions it carried, even when the cap
// trim drops entries from the front mid-save.
type pendingEntry struct {
	seq    uint64
	action models.PendingAction
}

// OnEvent records a pending action and (re)arms the debounce timer. Bursts
// inside the window collapse to a single save carrying the latest state.
func (c *Coordinator) OnEvent(eventType string, data map[string]any) {
	if c.source == nil || !c.source.Active() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pendingSeq++
	c.pending = append(c.pending, pendingEntry{
		seq: c.pendingSeq,
		action: models.PendingAction{
			Type:      eventType,
			Timestamp: time.Now().UnixMilli(),
			Data:      data,
		},
	})
	if len(c.pending) > c.opts.PendingCap {
		c.pending = c.pending[len(c.pending)-c.opts.PendingCap:]
	}

	if c.timer != nil {
		c.timer.Stop()
		eventsCoalesced.Inc()
	}
	c.timer = time.AfterFunc(c.opts.Debounce, func() {
		if err := c.SaveNow(); err != nil {
			log.Printf("❌ Autosave failed: %v", err)
		}
	})
}

// SaveNow cancels any pending debounce and saves immediately. Used by the
// flush-on-shutdown path and the manual save button.
func (c *Coordinator) SaveNow() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.mu.Unlock()

	return c.PerformSave()
}

// PerformSave builds a snapshot, writes it with verify-by-read-back inside a
// bounded retry loop, mirrors it into backup rotation and, on exhausted
// retries, falls through to backup recovery. Corruption detected on
// read-back counts as a failed attempt, never as a successful save.
func (c *Coordinator) PerformSave() error {
	if c.source == nil || !c.source.Active() {
		return ErrNoSession
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	timer := prometheus.NewTimer(saveDuration)
	defer timer.ObserveDuration()

	profileID := c.source.ProfileID()

	snap, err := c.source.BuildSnapshot()
	if err != nil {
		savesTotal.WithLabelValues("build_error").Inc()
		return fmt.Errorf("snapshot build: %w", err)
	}

	c.mu.Lock()
	captured := len(c.pending)
	var lastSeq uint64
	if captured > 0 {
		lastSeq = c.pending[captured-1].seq
	}
	snap.PendingActions = make([]models.PendingAction, captured)
	for i, e := range c.pending {
		snap.PendingActions[i] = e.action
	}
	c.mu.Unlock()

	now := time.Now()
	snapBytes, err := json.Marshal(snap)
	if err != nil {
		savesTotal.WithLabelValues("encode_error").Inc()
		return fmt.Errorf("snapshot encode: %w", err)
	}

	rec := models.SaveRecord{
		ID:       profileID,
		Snapshot: snap,
		Hash:     Hash(snapBytes),
		SavedAt:  now.UnixMilli(),
	}
	recBytes, err := json.Marshal(&rec)
	if err != nil {
		savesTotal.WithLabelValues("encode_error").Inc()
		return fmt.Errorf("record encode: %w", err)
	}
	writtenHash := Hash(recBytes)

	_, err = retryWithBackoff("save", func(attempt int) (struct{}, error) {
		if attempt > 1 {
			saveRetries.Inc()
		}
		return struct{}{}, c.writeAndVerify(profileID, recBytes, writtenHash)
	}, c.opts.Attempts, c.opts.Backoff)

	if err != nil {
		savesTotal.WithLabelValues("failure").Inc()
		log.Printf("❌ Save exhausted %d attempts for %s: %v", c.opts.Attempts, profileID, err)
		c.notifier.Notify("Save failed, attempting recovery from backup…", notify.Warning, 5*time.Second)

		if rerr := c.recoverLocked(profileID); rerr != nil {
			c.notifier.Notify("Save and backup recovery both failed — progress is at risk!", notify.Error, 0)
			return fmt.Errorf("save failed and recovery failed: %w", errors.Join(err, rerr))
		}
		// Recovered: the live slot is valid again, though it holds the
		// backup's state rather than this snapshot.
		return nil
	}

	// Live write confirmed durable; only now mirror it into rotation.
	c.mirrorToBackup(profileID, rec, now)
	c.writeSlotMetadata(profileID, snap)

	// Clear by sequence, not by count: the cap trim in OnEvent can drop
	// entries from the front while this save was in flight.
	c.mu.Lock()
	cut := 0
	for cut < len(c.pending) && c.pending[cut].seq <= lastSeq {
		cut++
	}
	c.pending = c.pending[cut:]
	c.mu.Unlock()

	c.lastGoodHash = rec.Hash
	savesTotal.WithLabelValues("success").Inc()
	log.Printf("💾 Saved %s (%d actions, hash %s)", profileID, captured, rec.Hash[:8])

	c.pushRemote(profileID, recBytes, snap)
	return nil
}

// writeAndVerify is one save attempt: write, read back, check structure and
// bytes. Quota pressure triggers an eager backup prune before failing the
// attempt so the retry has room to land.
func (c *Coordinator) writeAndVerify(profileID string, recBytes []byte, writtenHash string) error {
	if err := c.store.Put(store.ColGameData, profileID, recBytes); err != nil {
		if errors.Is(err, store.ErrQuotaExceeded) {
			c.rotation.PruneForSpace(profileID)
		}
		return err
	}

	readBack, err := c.store.Get(store.ColGameData, profileID)
	if err != nil {
		return fmt.Errorf("read-back: %w", err)
	}
	if Hash(readBack.Payload) != writtenHash {
		return fmt.Errorf("read-back hash mismatch for %s", profileID)
	}

	var check models.SaveRecord
	if err := json.Unmarshal(readBack.Payload, &check); err != nil {
		return fmt.Errorf("read-back decode: %w", err)
	}
	return ValidateRecord(&check)
}

// RecoverFromBackup promotes the newest structurally-valid backup over the
// live slot. Fails loudly only when no backup passes validation.
func (c *Coordinator) RecoverFromBackup() error {
	if c.source == nil {
		return ErrNoSession
	}
	c.saveMu.Lock()
	defer c.saveMu.Unlock()
	return c.recoverLocked(c.source.ProfileID())
}

func (c *Coordinator) recoverLocked(profileID string) error {
	backups, err := c.rotation.ListBackups(profileID)
	if err != nil {
		recoveriesTotal.WithLabelValues("failure").Inc()
		return fmt.Errorf("list backups: %w", err)
	}

	for _, b := range backups {
		var rec models.SaveRecord
		if err := json.Unmarshal(b.Payload, &rec); err != nil {
			log.Printf("⚠️ Backup %s unreadable, trying older: %v", b.ID, err)
			continue
		}
		if err := ValidateRecord(&rec); err != nil {
			log.Printf("⚠️ Backup %s invalid, trying older: %v", b.ID, err)
			continue
		}

		// Promote: rewrite under the live id, then put the restored state
		// back into the session.
		rec.ID = profileID
		rec.IsBackup = false
		promoted, err := json.Marshal(&rec)
		if err != nil {
			continue
		}
		if err := c.store.Put(store.ColGameData, profileID, promoted); err != nil {
			log.Printf("⚠️ Backup promotion write failed: %v", err)
			continue
		}
		if err := c.source.RestoreSnapshot(rec.Snapshot); err != nil {
			recoveriesTotal.WithLabelValues("failure").Inc()
			return fmt.Errorf("restore snapshot: %w", err)
		}

		// The promoted record re-enters rotation immediately so the newest
		// backup always equals the live slot after a recovery.
		now := time.Now()
		c.mirrorToBackup(profileID, rec, now)
		c.writeSlotMetadata(profileID, rec.Snapshot)
		c.lastGoodHash = rec.Hash

		recoveriesTotal.WithLabelValues("success").Inc()
		c.notifier.Notify(fmt.Sprintf("Recovered from backup %s", b.ID), notify.Warning, 5*time.Second)
		log.Printf("🛟 Recovered %s from backup %s", profileID, b.ID)
		return nil
	}

	recoveriesTotal.WithLabelValues("failure").Inc()
	return ErrNoValidBackup
}

// LoadSnapshot reads and validates the live record for a profile and hands
// its snapshot to the session. A corrupt live record automatically falls
// through to backup recovery.
func (c *Coordinator) LoadSnapshot(profileID string) error {
	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	rec, err := c.store.Get(store.ColGameData, profileID)
	if err != nil {
		return err
	}
	var sr models.SaveRecord
	if err := json.Unmarshal(rec.Payload, &sr); err == nil {
		if verr := ValidateRecord(&sr); verr == nil {
			if rerr := c.source.RestoreSnapshot(sr.Snapshot); rerr != nil {
				return rerr
			}
			c.lastGoodHash = sr.Hash
			return nil
		}
	}

	log.Printf("⚠️ Live save for %s is corrupt, falling back to backups", profileID)
	return c.recoverLocked(profileID)
}

// Export returns the live record bytes for download.
func (c *Coordinator) Export() ([]byte, error) {
	if c.source == nil || !c.source.Active() {
		return nil, ErrNoSession
	}
	rec, err := c.store.Get(store.ColGameData, c.source.ProfileID())
	if err != nil {
		return nil, err
	}
	return rec.Payload, nil
}

// Import validates an uploaded record, re-stamps its hash and adopts it as
// the live save.
func (c *Coordinator) Import(payload []byte) error {
	if c.source == nil {
		return ErrNoSession
	}

	var rec models.SaveRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return fmt.Errorf("import decode: %w", err)
	}
	if err := ValidateRecord(&rec); err != nil {
		return fmt.Errorf("import rejected: %w", err)
	}

	c.saveMu.Lock()
	defer c.saveMu.Unlock()

	profileID := c.source.ProfileID()
	rec.ID = profileID
	rec.IsBackup = false
	snapBytes, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return err
	}
	rec.Hash = Hash(snapBytes)
	rec.SavedAt = time.Now().UnixMilli()

	recBytes, err := json.Marshal(&rec)
	if err != nil {
		return err
	}
	if err := c.store.Put(store.ColGameData, profileID, recBytes); err != nil {
		return err
	}
	if err := c.source.RestoreSnapshot(rec.Snapshot); err != nil {
		return err
	}
	c.lastGoodHash = rec.Hash
	c.notifier.Notify("Save imported", notify.Success, 3*time.Second)
	return nil
}

// mirrorToBackup rewrites the record under its backup identity before
// handing it to rotation, so every stored backup self-describes as one.
// Promotion in recoverLocked is the inverse: it clears the flag and swaps
// the live id back in.
func (c *Coordinator) mirrorToBackup(profileID string, rec models.SaveRecord, now time.Time) {
	rec.ID = BackupID(profileID, now)
	rec.IsBackup = true
	data, err := json.Marshal(&rec)
	if err != nil {
		log.Printf("⚠️ Backup encode failed for %s: %v", profileID, err)
		return
	}
	c.rotation.Rotate(profileID, data, now)
}

func (c *Coordinator) writeSlotMetadata(profileID string, snap *models.GameSnapshot) {
	meta := SlotMetadataFor(profileID, snap)
	data, err := json.Marshal(&meta)
	if err != nil {
		return
	}
	if err := c.store.Put(store.ColSaves, profileID, data); err != nil {
		log.Printf("⚠️ Slot metadata write failed for %s: %v", profileID, err)
	}
}

func (c *Coordinator) pushRemote(profileID string, payload []byte, snap *models.GameSnapshot) {
	if !c.opts.RemotePush || c.remote == nil || !c.remote.IsAvailable() {
		return
	}
	meta := SlotMetadataFor(profileID, snap)
	if err := c.remote.Push(profileID, payload, meta); err != nil {
		// Best effort: local persistence stays authoritative.
		log.Printf("⚠️ Remote push failed (local save unaffected): %v", err)
		c.notifier.Notify("Cloud sync failed — your local save is safe", notify.Warning, 4*time.Second)
	}
}

// SlotMetadataFor derives the save-picker row from a snapshot.
func SlotMetadataFor(profileID string, snap *models.GameSnapshot) models.SlotMetadata {
	meta := models.SlotMetadata{
		ID:         profileID,
		Version:    snap.Version,
		LastPlayed: time.UnixMilli(snap.Timestamp).UTC().Format(time.RFC3339),
	}
	if p := snap.Player; p != nil {
		meta.PlayerName = p.Name
		meta.Level = p.Level
		meta.Genre = p.Genre
		meta.Money = p.Money
		meta.Fans = p.Fans
	}
	return meta
}

// ValidateRecord is the structural check applied to every record read back
// from disk, recovered from backup or imported. Shallow on purpose: required
// fields present and player resources are real numbers.
func ValidateRecord(rec *models.SaveRecord) error {
	if rec == nil || rec.Snapshot == nil {
		return errors.New("record has no snapshot")
	}
	s := rec.Snapshot
	if s.Version == "" {
		return errors.New("snapshot missing version")
	}
	if _, err := time.Parse("2006-01-02", s.SimulatedDate); err != nil {
		return fmt.Errorf("snapshot has bad simulated date %q", s.SimulatedDate)
	}
	p := s.Player
	if p == nil {
		return errors.New("snapshot missing player")
	}
	if p.Name == "" {
		return errors.New("player missing name")
	}
	for name, v := range map[string]float64{"money": p.Money, "energy": p.Energy, "mood": p.Mood} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("player %s is not a valid number", name)
		}
	}
	return nil
}
