package clock

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPassWeekAdvancesExactlySevenDays(t *testing.T) {
	c := New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), &MockClock{})
	c.SetMode(Manual)

	var weeklyRuns, dailyRuns int
	c.RegisterDaily("daily", func(time.Time) error { dailyRuns++; return nil })
	c.RegisterWeekly("weekly", func(time.Time) error { weeklyRuns++; return nil })

	date, err := c.PassWeek()
	if err != nil {
		t.Fatalf("PassWeek failed: %v", err)
	}

	if got := date.Format("2006-01-02"); got != "2025-01-08" {
		t.Errorf("expected 2025-01-08, got %s", got)
	}
	if c.ISODate() != "2025-01-08" {
		t.Errorf("clock did not land on 2025-01-08: %s", c.ISODate())
	}
	if weeklyRuns != 1 {
		t.Errorf("weekly chain must run exactly once, ran %d times", weeklyRuns)
	}
	if dailyRuns != 7 {
		t.Errorf("daily chain must run once per day, ran %d times", dailyRuns)
	}

	t.Logf("✅ 2025-01-01 + one week = 2025-01-08, hooks fired 7x daily / 1x weekly")
}

func TestPassWeekIsSingleFlight(t *testing.T) {
	c := New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), &MockClock{})
	c.SetMode(Manual)

	// The weekly hook mutates a shared counter and blocks long enough for
	// the second call to overlap.
	var energyRegens int64
	block := make(chan struct{})
	c.RegisterWeekly("regen", func(time.Time) error {
		atomic.AddInt64(&energyRegens, 1)
		<-block
		return nil
	})

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.PassWeek()
			results <- err
		}()
	}

	// Give both goroutines time to race for the turn lock, then release.
	time.Sleep(50 * time.Millisecond)
	close(block)
	wg.Wait()
	close(results)

	var rejected int
	for err := range results {
		if errors.Is(err, ErrTurnInProgress) {
			rejected++
		} else if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if rejected != 1 {
		t.Errorf("expected exactly 1 rejected overlapping turn, got %d", rejected)
	}
	if got := atomic.LoadInt64(&energyRegens); got != 1 {
		t.Errorf("weekly mutations applied %d times, must be exactly once", got)
	}

	t.Logf("✅ Overlapping PassWeek rejected; resources regenerated once")
}

func TestAutoModeFiresTurnOncePerWeekTransition(t *testing.T) {
	wall := &MockClock{MockTime: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}
	c := New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), wall)
	c.SetMode(Auto)
	c.SetSpeed(86400) // 1 real second = 1 simulated day

	var weeklyRuns, dailyRuns int
	c.RegisterDaily("daily", func(time.Time) error { dailyRuns++; return nil })
	c.RegisterWeekly("weekly", func(time.Time) error { weeklyRuns++; return nil })

	// One big tick spanning 9 simulated days crosses a week boundary:
	// the turn fires once for the whole tick, not once per crossed day.
	wall.Advance(9 * time.Second)
	c.Tick()

	if dailyRuns != 9 {
		t.Errorf("expected 9 daily runs, got %d", dailyRuns)
	}
	if weeklyRuns != 1 {
		t.Errorf("one week transition must fire exactly 1 turn, got %d", weeklyRuns)
	}

	// A tick that crosses no boundary fires nothing extra.
	wall.Advance(100 * time.Millisecond) // 0.1 simulated days
	c.Tick()
	if weeklyRuns != 1 {
		t.Errorf("turn fired without a week transition")
	}

	t.Logf("✅ Auto mode: 9-day tick fired 9 dailies and a single weekly turn")
}

func TestManualModeIgnoresTicks(t *testing.T) {
	wall := &MockClock{MockTime: time.Now()}
	c := New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), wall)
	c.SetMode(Manual)

	before := c.Current()
	wall.Advance(time.Hour)
	c.Tick()

	if !c.Current().Equal(before) {
		t.Errorf("manual mode must not advance on ticks")
	}
}

func TestHookFailureIsIsolated(t *testing.T) {
	c := New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), &MockClock{})
	c.SetMode(Manual)

	var order []string
	c.RegisterWeekly("panics", func(time.Time) error {
		order = append(order, "panics")
		panic("boom")
	})
	c.RegisterWeekly("errors", func(time.Time) error {
		order = append(order, "errors")
		return errors.New("nope")
	})
	c.RegisterWeekly("autosave", func(time.Time) error {
		order = append(order, "autosave")
		return nil
	})

	if _, err := c.PassWeek(); err != nil {
		t.Fatalf("PassWeek must survive failing hooks: %v", err)
	}

	if len(order) != 3 || order[2] != "autosave" {
		t.Errorf("hooks after a failure must still run, got %v", order)
	}

	t.Logf("✅ A panicking hook did not stop the chain behind it")
}

func TestSetCurrentRestoresCalendar(t *testing.T) {
	c := New(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), &MockClock{})
	restored := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)

	c.SetCurrent(restored)
	if c.ISODate() != "2026-02-14" {
		t.Errorf("restore failed: %s", c.ISODate())
	}
}
