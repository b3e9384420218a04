package game

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"backstage/internal/clock"
	"backstage/internal/models"
	"backstage/internal/save"
	"backstage/internal/sim"
	"backstage/internal/store"
)

type sinkRecorder struct {
	events []string
}

func (r *sinkRecorder) sink(eventType string, _ map[string]any) {
	r.events = append(r.events, eventType)
}

func (r *sinkRecorder) has(eventType string) bool {
	for _, e := range r.events {
		if e == eventType {
			return true
		}
	}
	return false
}

func newTestSession(t *testing.T) (*Session, *clock.SimClock, *sim.IndustrySim, store.Store, *sinkRecorder) {
	t.Helper()

	st, err := store.NewSqliteStore(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}

	wall := &clock.MockClock{MockTime: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := clock.New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), wall)
	industry := sim.New(42, 0.08)

	rec := &sinkRecorder{}
	sess := NewSession(c, industry, st, nil)
	sess.SetEventSink(rec.sink)
	sess.AttachHooks()
	return sess, c, industry, st, rec
}

func TestGameplayActionsWithCoordinatorSink(t *testing.T) {
	// Full production wiring: the coordinator is the event sink and calls
	// back into the session on every event.
	st, err := store.NewSqliteStore(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("Failed to open in-memory store: %v", err)
	}
	c := clock.New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), &clock.MockClock{})
	industry := sim.New(42, 0.08)
	sess := NewSession(c, industry, st, nil)

	rot := save.NewRotation(st, 5)
	coord := save.NewCoordinator(st, rot, sess, nil, save.Options{
		Debounce:   20 * time.Millisecond,
		Attempts:   3,
		Backoff:    time.Millisecond,
		PendingCap: 50,
	})
	sess.SetEventSink(coord.OnEvent)
	sess.AttachHooks()

	// 1. Every gameplay action must return; the sink re-enters the session
	done := make(chan error, 1)
	go func() {
		if err := sess.StartGame("slot1", "Ava Sterling", "pop"); err != nil {
			done <- err
			return
		}
		if err := sess.TrainSkill("vocals"); err != nil {
			done <- err
			return
		}
		if _, err := sess.WriteSong("Wired Up"); err != nil {
			done <- err
			return
		}
		_, err := sess.PassWeek()
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("gameplay action failed: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("gameplay actions never returned with the coordinator as event sink")
	}

	// 2. The debounced autosave lands
	time.Sleep(300 * time.Millisecond)
	if _, err := st.Get(store.ColGameData, "slot1"); err != nil {
		t.Fatalf("autosave never persisted the live slot: %v", err)
	}

	t.Logf("✅ Session and coordinator run wired together without blocking")
}

func TestStartGameAndPlayerActions(t *testing.T) {
	sess, _, _, _, rec := newTestSession(t)

	// 1. Actions before a game exists are rejected
	if err := sess.TrainSkill("vocals"); !errors.Is(err, ErrNoGame) {
		t.Fatalf("expected ErrNoGame before start, got %v", err)
	}
	if _, err := sess.PassWeek(); !errors.Is(err, ErrNoGame) {
		t.Fatalf("expected ErrNoGame for PassWeek before start, got %v", err)
	}

	// 2. Start a game
	if err := sess.StartGame("slot1", "Ava Sterling", "pop"); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if err := sess.StartGame("slot1", "Someone Else", "rock"); !errors.Is(err, ErrGameActive) {
		t.Fatalf("second StartGame should conflict, got %v", err)
	}

	p := sess.Player()
	if p.Money != startMoney || p.Energy != startEnergy {
		t.Errorf("fresh player got %v money / %v energy", p.Money, p.Energy)
	}

	// 3. Training spends energy and raises the skill
	if err := sess.TrainSkill("vocals"); err != nil {
		t.Fatalf("TrainSkill failed: %v", err)
	}
	if err := sess.TrainSkill("juggling"); err == nil {
		t.Error("unknown skill should be rejected")
	}
	p = sess.Player()
	if p.Energy != startEnergy-trainEnergyCost {
		t.Errorf("energy after training: %v", p.Energy)
	}
	if p.Skills["vocals"] != 1.5 {
		t.Errorf("vocals after training: %v", p.Skills["vocals"])
	}

	// 4. Writing a song creates an entity with bounded derivations
	song, err := sess.WriteSong("Neon Nights")
	if err != nil {
		t.Fatalf("WriteSong failed: %v", err)
	}
	if song.Quality < 0 || song.Quality > 1 || song.MarketAppeal < 0 || song.MarketAppeal > 1 {
		t.Errorf("song derivations out of range: %+v", song)
	}
	p = sess.Player()
	if p.Stats["songs_released"] != 1 || len(p.SongIDs) != 1 {
		t.Errorf("song not tracked on player: %+v", p)
	}

	// 5. Energy gating kicks in once drained
	for {
		if _, err := sess.WriteSong(""); err != nil {
			if !errors.Is(err, ErrLowEnergy) {
				t.Fatalf("expected ErrLowEnergy, got %v", err)
			}
			break
		}
	}

	if !rec.has("game_started") || !rec.has("song_created") || !rec.has("skill_trained") {
		t.Errorf("gameplay triggers missing from sink: %v", rec.events)
	}

	t.Logf("✅ Session lifecycle and gameplay actions behave")
}

func TestPassWeekRunsTheTurnChain(t *testing.T) {
	sess, c, _, st, rec := newTestSession(t)

	if err := sess.StartGame("slot1", "Ava Sterling", "pop"); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if _, err := sess.WriteSong("Opening Track"); err != nil {
		t.Fatalf("WriteSong failed: %v", err)
	}

	before := sess.Player()

	// 1. A turn advances the calendar exactly seven days
	next, err := sess.PassWeek()
	if err != nil {
		t.Fatalf("PassWeek failed: %v", err)
	}
	if got := next.Format("2006-01-02"); got != "2025-01-08" {
		t.Errorf("turn landed on %s, want 2025-01-08", got)
	}
	if c.ISODate() != "2025-01-08" {
		t.Errorf("clock reads %s after the turn", c.ISODate())
	}

	// 2. Resources regenerated before payouts
	after := sess.Player()
	wantEnergy := before.Energy + weeklyEnergyRegen
	if wantEnergy > 100 {
		wantEnergy = 100
	}
	if after.Energy != wantEnergy {
		t.Errorf("energy after regen: %v, want %v", after.Energy, wantEnergy)
	}
	if after.Stats["weeks_played"] != 1 {
		t.Errorf("weeks_played = %d", after.Stats["weeks_played"])
	}

	// 3. The chart was recomputed and includes the player's release
	charts := sess.Charts()
	if len(charts) == 0 {
		t.Fatal("weekly turn should produce a chart")
	}
	for i, e := range charts {
		if e.Position != i+1 {
			t.Errorf("chart position %d at index %d", e.Position, i)
		}
	}

	// 4. Lifetime statistics landed in the store
	if _, err := st.Get(store.ColStatistics, "slot1"); err != nil {
		t.Errorf("statistics not persisted: %v", err)
	}

	// 5. The autosave trigger fired last
	if !rec.has("turn_passed") {
		t.Errorf("turn_passed missing from sink: %v", rec.events)
	}

	t.Logf("✅ Turn chain: regen, charts, stats and autosave all ran")
}

func TestChartWeeksOnAccumulates(t *testing.T) {
	sess, _, _, _, _ := newTestSession(t)
	if err := sess.StartGame("slot1", "Ava Sterling", "pop"); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if _, err := sess.WriteSong("Sticky Hook"); err != nil {
		t.Fatalf("WriteSong failed: %v", err)
	}

	for week := 1; week <= 3; week++ {
		if _, err := sess.PassWeek(); err != nil {
			t.Fatalf("week %d failed: %v", week, err)
		}
	}

	var maxWeeks int
	for _, e := range sess.Charts() {
		if e.WeeksOn > maxWeeks {
			maxWeeks = e.WeeksOn
		}
	}
	if maxWeeks != 3 {
		t.Errorf("a song charting every week should show WeeksOn=3, got %d", maxWeeks)
	}
}

func TestSnapshotRoundTripRestoresEverything(t *testing.T) {
	sess, c, industry, _, _ := newTestSession(t)

	// 1. Play a few eventful weeks
	if err := sess.StartGame("slot1", "Ava Sterling", "pop"); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if _, err := sess.WriteSong("First Single"); err != nil {
		t.Fatalf("WriteSong failed: %v", err)
	}
	for i := 0; i < 4; i++ {
		if _, err := sess.PassWeek(); err != nil {
			t.Fatalf("PassWeek failed: %v", err)
		}
	}

	snap, err := sess.BuildSnapshot()
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	if snap.SimulatedDate != c.ISODate() {
		t.Errorf("snapshot date %s, clock %s", snap.SimulatedDate, c.ISODate())
	}
	if _, ok := snap.SubsystemStates[industry.Name()]; !ok {
		t.Fatal("snapshot missing the industry subsystem blob")
	}

	// 2. Restore into a completely fresh world
	sess2, c2, industry2, _, _ := newTestSession(t)
	if err := sess2.RestoreSnapshot(snap); err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}

	// 3. Player, entities, clock and subsystems all came back
	a, b := sess.Player(), sess2.Player()
	if b.Name != a.Name || b.Money != a.Money || b.Energy != a.Energy || b.Fans != a.Fans {
		t.Errorf("player diverged: %+v vs %+v", a, b)
	}
	if b.Stats["weeks_played"] != a.Stats["weeks_played"] {
		t.Errorf("stats diverged: %d vs %d", a.Stats["weeks_played"], b.Stats["weeks_played"])
	}
	if len(sess2.Charts()) != len(sess.Charts()) {
		t.Errorf("charts diverged: %d vs %d entries", len(sess.Charts()), len(sess2.Charts()))
	}
	if c2.ISODate() != c.ISODate() {
		t.Errorf("clock diverged: %s vs %s", c.ISODate(), c2.ISODate())
	}
	if industry2.Mood() != industry.Mood() {
		t.Errorf("simulation mood diverged: %v vs %v", industry.Mood(), industry2.Mood())
	}

	// 4. The restored world keeps playing deterministically from the calendar
	if _, err := sess2.PassWeek(); err != nil {
		t.Fatalf("restored session cannot pass a week: %v", err)
	}
	if sess2.Player().Stats["weeks_played"] != a.Stats["weeks_played"]+1 {
		t.Error("restored session did not resume its counters")
	}

	t.Logf("✅ Snapshot round trip restored player, world, clock and subsystems")
}

func TestSnapshotNeverAliasesLiveState(t *testing.T) {
	sess, _, _, _, _ := newTestSession(t)
	if err := sess.StartGame("slot1", "Ava Sterling", "pop"); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	song, err := sess.WriteSong("Frozen in Time")
	if err != nil {
		t.Fatalf("WriteSong failed: %v", err)
	}

	snap, err := sess.BuildSnapshot()
	if err != nil {
		t.Fatalf("BuildSnapshot failed: %v", err)
	}
	frozenEnergy := snap.Player.Energy
	frozenStreams := snap.Entities.Songs[song.ID].Streams

	// Mutate the live session; the captured snapshot must not move.
	if err := sess.TrainSkill("vocals"); err != nil {
		t.Fatalf("TrainSkill failed: %v", err)
	}
	if _, err := sess.PassWeek(); err != nil {
		t.Fatalf("PassWeek failed: %v", err)
	}

	if snap.Player.Energy != frozenEnergy {
		t.Errorf("snapshot player mutated after capture")
	}
	if snap.Entities.Songs[song.ID].Streams != frozenStreams {
		t.Errorf("snapshot entities mutated after capture")
	}
}

func TestAchievementsAwardedOnce(t *testing.T) {
	sess, _, _, st, _ := newTestSession(t)
	if err := sess.StartGame("slot1", "Ava Sterling", "pop"); err != nil {
		t.Fatalf("StartGame failed: %v", err)
	}
	if _, err := sess.WriteSong("Debut"); err != nil {
		t.Fatalf("WriteSong failed: %v", err)
	}

	if _, err := sess.PassWeek(); err != nil {
		t.Fatalf("PassWeek failed: %v", err)
	}
	rec, err := st.Get(store.ColAchievements, "slot1_first_song")
	if err != nil {
		t.Fatalf("first_song achievement not stored: %v", err)
	}
	firstPayload := string(rec.Payload)

	// A later week must not re-earn (and re-stamp) it.
	if _, err := sess.PassWeek(); err != nil {
		t.Fatalf("PassWeek failed: %v", err)
	}
	rec, err = st.Get(store.ColAchievements, "slot1_first_song")
	if err != nil {
		t.Fatalf("achievement lost: %v", err)
	}
	if string(rec.Payload) != firstPayload {
		t.Error("achievement was overwritten on a later week")
	}

	t.Logf("✅ Achievements unlock once and stay stamped")
}

func TestRestoreBackfillsSparseSnapshots(t *testing.T) {
	sess, _, _, _, _ := newTestSession(t)

	snap := &models.GameSnapshot{
		Version:       models.SnapshotVersion,
		SimulatedDate: "2025-03-10",
		Player:        &models.PlayerState{ID: "slot1", Name: "Bare Bones", Genre: "rock", Energy: 50},
	}
	if err := sess.RestoreSnapshot(snap); err != nil {
		t.Fatalf("RestoreSnapshot failed: %v", err)
	}

	p := sess.Player()
	if p.Skills == nil || p.Stats == nil {
		t.Error("restore must backfill nil player maps")
	}
	if err := sess.TrainSkill("vocals"); err == nil {
		t.Log("sparse snapshot has no skills; training rejected is also acceptable")
	}
	if _, err := sess.WriteSong("After the Wipe"); err != nil {
		t.Fatalf("restored sparse session cannot act: %v", err)
	}
}
