package clock

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics
var (
	weeksPassed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "backstage_weeks_passed_total", Help: "Completed weekly turns"},
	)
	turnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backstage_turn_duration_seconds",
			Help:    "Time taken by one weekly turn (hooks included)",
			Buckets: []float64{0.001, 0.01, 0.05, 0.2, 1},
		},
	)
	hookFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "backstage_hook_failures_total", Help: "Turn hooks that errored or panicked"},
		[]string{"hook"},
	)
)

func RegisterMetrics() {
	prometheus.MustRegister(weeksPassed, turnDuration, hookFailures)
}

type Mode int

const (
	Stopped Mode = iota
	Manual       // time advances only on explicit PassWeek
	Auto         // time advances proportionally to elapsed real time
)

// ErrTurnInProgress is returned when PassWeek overlaps a running turn.
// Weekly hooks mutate shared resource counters, so turns are single-flight.
var ErrTurnInProgress = errors.New("clock: a weekly turn is already running")

// Hook is one link in the daily or weekly chain. A hook that errors or
// panics is logged and skipped; it never stops the hooks after it.
type Hook struct {
	Name string
	Fn   func(simDate time.Time) error
}

const (
	simDay  = 24 * time.Hour
	simWeek = 7 * simDay
)

// SimClock owns the simulated calendar and the weekly turn boundary.
type SimClock struct {
	mu       sync.Mutex
	mode     Mode
	current  time.Time // simulated date
	speed    float64   // simulated seconds per real second (auto mode)
	wall     WallClock
	lastWall time.Time

	daily  []Hook
	weekly []Hook

	turnMu sync.Mutex // single-flight guard for the weekly chain
}

// New builds a stopped clock at the given simulated start date.
func New(start time.Time, wall WallClock) *SimClock {
	if wall == nil {
		wall = RealClock{}
	}
	return &SimClock{
		mode:     Stopped,
		current:  start.UTC().Truncate(simDay),
		speed:    86400, // 1 real second = 1 simulated day
		wall:     wall,
		lastWall: wall.Now(),
	}
}

func (c *SimClock) RegisterDaily(name string, fn func(time.Time) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.daily = append(c.daily, Hook{Name: name, Fn: fn})
}

func (c *SimClock) RegisterWeekly(name string, fn func(time.Time) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.weekly = append(c.weekly, Hook{Name: name, Fn: fn})
}

func (c *SimClock) SetMode(m Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mode = m
	c.lastWall = c.wall.Now()
}

func (c *SimClock) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *SimClock) SetSpeed(simSecondsPerRealSecond float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if simSecondsPerRealSecond > 0 {
		c.speed = simSecondsPerRealSecond
	}
}

// Current returns the simulated calendar time.
func (c *SimClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ISODate returns the simulated calendar day as "2006-01-02".
func (c *SimClock) ISODate() string {
	return c.Current().Format("2006-01-02")
}

// SetCurrent restores the calendar from a loaded snapshot.
func (c *SimClock) SetCurrent(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t.UTC()
}

// weekIndex counts whole weeks since the Unix epoch. A turn fires when this
// number changes between the old and new date.
func weekIndex(t time.Time) int64 {
	return t.UnixMilli() / simWeek.Milliseconds()
}

// Tick drives the clock in auto mode: elapsed real time since the previous
// tick, scaled by speed, becomes simulated time.
func (c *SimClock) Tick() {
	c.mu.Lock()
	if c.mode != Auto {
		c.lastWall = c.wall.Now()
		c.mu.Unlock()
		return
	}
	now := c.wall.Now()
	elapsed := now.Sub(c.lastWall)
	c.lastWall = now
	speed := c.speed
	c.mu.Unlock()

	if elapsed <= 0 {
		return
	}
	c.Advance(time.Duration(float64(elapsed) * speed))
}

// Advance moves the calendar forward, firing the daily chain once per
// crossed day and the weekly chain at most once per detected week
// transition, even when one call spans several days.
func (c *SimClock) Advance(simElapsed time.Duration) {
	if simElapsed <= 0 {
		return
	}

	c.mu.Lock()
	old := c.current
	c.current = c.current.Add(simElapsed)
	next := c.current
	daily := append([]Hook(nil), c.daily...)
	weekly := append([]Hook(nil), c.weekly...)
	c.mu.Unlock()

	// Fire dailies for every whole day crossed.
	for d := old.Truncate(simDay).Add(simDay); !d.After(next); d = d.Add(simDay) {
		runChain(daily, d)
	}

	if weekIndex(next) != weekIndex(old) {
		if c.turnMu.TryLock() {
			c.runTurn(weekly, next)
			c.turnMu.Unlock()
		}
	}
}

// PassWeek atomically advances exactly 7 simulated days, running the daily
// chain once per day and then the weekly chain exactly once. Overlapping
// calls are rejected, never interleaved.
func (c *SimClock) PassWeek() (time.Time, error) {
	if !c.turnMu.TryLock() {
		return time.Time{}, ErrTurnInProgress
	}
	defer c.turnMu.Unlock()

	c.mu.Lock()
	daily := append([]Hook(nil), c.daily...)
	weekly := append([]Hook(nil), c.weekly...)
	c.mu.Unlock()

	var date time.Time
	for i := 0; i < 7; i++ {
		c.mu.Lock()
		c.current = c.current.Add(simDay)
		date = c.current
		c.mu.Unlock()
		runChain(daily, date)
	}

	c.runTurn(weekly, date)
	return date, nil
}

func (c *SimClock) runTurn(weekly []Hook, date time.Time) {
	t := prometheus.NewTimer(turnDuration)
	defer t.ObserveDuration()

	runChain(weekly, date)
	weeksPassed.Inc()
}

// runChain executes hooks in registration order. Failures are isolated per
// hook: one bad hook must not keep the autosave or UI-refresh hooks behind
// it from running.
func runChain(hooks []Hook, date time.Time) {
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					hookFailures.WithLabelValues(h.Name).Inc()
					log.Printf("❌ Hook %s panicked: %v", h.Name, r)
				}
			}()
			if err := h.Fn(date); err != nil {
				hookFailures.WithLabelValues(h.Name).Inc()
				log.Printf("⚠️ Hook %s failed: %v", h.Name, err)
			}
		}()
	}
}
