package game

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"backstage/internal/clock"
	"backstage/internal/models"
	"backstage/internal/notify"
	"backstage/internal/sim"
	"backstage/internal/store"
)

// Persistable is the entire contract a subsystem implements to participate
// in persistence: the snapshot builder calls GetState at save time and
// SetState at restore time, nothing else.
type Persistable interface {
	Name() string
	GetState() ([]byte, error)
	SetState(blob []byte) error
}

var (
	ErrNoGame     = errors.New("game: no active session")
	ErrLowEnergy  = errors.New("game: not enough energy")
	ErrGameActive = errors.New("game: a session is already active")
)

const (
	startMoney  = 1500.0
	startEnergy = 100.0
	startMood   = 70.0

	trainEnergyCost = 10.0
	songEnergyCost  = 25.0
)

// EventSink receives gameplay triggers; in production it is the save
// coordinator's OnEvent. Passed in explicitly, never looked up globally.
// Sinks may call back into the session (the coordinator checks Active before
// recording), so the session always emits with its own lock released.
type EventSink func(eventType string, data map[string]any)

// Session owns the in-memory game state: the single source of truth. Each
// subsystem mutates only its own namespaced slice; the session reads them
// through the Persistable registry at snapshot time.
type Session struct {
	mu sync.Mutex

	profileID string
	active    bool
	player    *models.PlayerState
	entities  models.Entities

	clock    *clock.SimClock
	industry *sim.IndustrySim
	store    store.Store
	notifier notify.Notifier
	rng      *rand.Rand

	persistables []Persistable
	onEvent      EventSink

	seq int
}

func NewSession(c *clock.SimClock, industry *sim.IndustrySim, s store.Store, n notify.Notifier) *Session {
	if n == nil {
		n = notify.LogNotifier{}
	}
	sess := &Session{
		clock:    c,
		industry: industry,
		store:    s,
		notifier: n,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		entities: emptyEntities(),
		onEvent:  func(string, map[string]any) {},
	}
	sess.Register(industry)
	return sess
}

func emptyEntities() models.Entities {
	return models.Entities{
		Songs:  make(map[string]*models.Song),
		Albums: make(map[string]*models.Album),
	}
}

// Register adds a subsystem to the persistence registry. The coordinator
// never probes named slots; it iterates this list.
func (s *Session) Register(p Persistable) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistables = append(s.persistables, p)
}

// SetEventSink wires the save coordinator in after construction.
func (s *Session) SetEventSink(sink EventSink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sink != nil {
		s.onEvent = sink
	}
}

func (s *Session) sink() EventSink {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onEvent
}

// AttachHooks registers the fixed weekly turn chain and the daily
// simulation tick on the clock. Order matters: resources regenerate before
// charts pay out, and the autosave trigger always runs last.
func (s *Session) AttachHooks() {
	s.clock.RegisterDaily("industry_daily", func(date time.Time) error {
		return s.industry.RunDaily(date)
	})

	s.clock.RegisterWeekly("regen", s.hookRegen)
	s.clock.RegisterWeekly("charts", s.hookCharts)
	s.clock.RegisterWeekly("trend_rolls", func(time.Time) error {
		s.industry.WeeklyTrendRoll()
		return nil
	})
	s.clock.RegisterWeekly("events", func(date time.Time) error {
		if e := s.industry.MaybeGenerateEvent(date); e != nil {
			s.notifier.Notify(e.Description, notify.Info, 6*time.Second)
		}
		return nil
	})
	s.clock.RegisterWeekly("stats", s.hookStats)
	s.clock.RegisterWeekly("autosave", func(time.Time) error {
		s.sink()("turn_passed", nil)
		return nil
	})
}

// StartGame creates a fresh artist and activates the session.
func (s *Session) StartGame(profileID, name, genre string) error {
	s.mu.Lock()
	if s.active {
		s.mu.Unlock()
		return ErrGameActive
	}
	if name == "" {
		s.mu.Unlock()
		return errors.New("game: artist needs a name")
	}

	s.profileID = profileID
	s.player = &models.PlayerState{
		ID:     profileID,
		Name:   name,
		Genre:  genre,
		Level:  1,
		Money:  startMoney,
		Energy: startEnergy,
		Mood:   startMood,
		Skills: map[string]float64{
			"songwriting": 1, "vocals": 1, "production": 1, "marketing": 1,
		},
		Stats: map[string]int{},
	}
	s.entities = emptyEntities()
	s.active = true
	sink := s.onEvent
	s.mu.Unlock()

	s.notifier.Notify(fmt.Sprintf("Welcome to the industry, %s!", name), notify.Success, 4*time.Second)
	sink("game_started", map[string]any{"name": name, "genre": genre})
	return nil
}

// TrainSkill spends energy to raise one skill a step.
func (s *Session) TrainSkill(skill string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNoGame
	}
	if _, ok := s.player.Skills[skill]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("game: unknown skill %q", skill)
	}
	if s.player.Energy < trainEnergyCost {
		s.mu.Unlock()
		return ErrLowEnergy
	}

	s.player.Energy -= trainEnergyCost
	s.player.Skills[skill] += 0.5
	sink := s.onEvent
	s.mu.Unlock()

	sink("skill_trained", map[string]any{"skill": skill})
	return nil
}

// WriteSong composes and releases a song; quality derives from skills with
// a bit of luck, market appeal from the genre's trend and the market mood.
func (s *Session) WriteSong(title string) (*models.Song, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil, ErrNoGame
	}
	if s.player.Energy < songEnergyCost {
		s.mu.Unlock()
		return nil, ErrLowEnergy
	}
	if title == "" {
		title = fmt.Sprintf("Untitled #%d", len(s.player.SongIDs)+1)
	}

	s.player.Energy -= songEnergyCost
	craft := (s.player.Skills["songwriting"] + s.player.Skills["production"]) / 2
	quality := clamp01(0.2 + craft*0.06 + s.rng.Float64()*0.2)
	trend := s.industry.TrendStrength(s.player.Genre)
	appeal := clamp01(0.5*quality + 0.3*trend + 0.2*s.industry.Mood())

	s.seq++
	song := &models.Song{
		ID:           fmt.Sprintf("player_song_%d", s.seq),
		Title:        title,
		ArtistID:     s.player.ID,
		ArtistName:   s.player.Name,
		Genre:        s.player.Genre,
		Quality:      quality,
		MarketAppeal: appeal,
		ReleasedAt:   s.clock.ISODate(),
	}
	s.entities.Songs[song.ID] = song
	s.player.SongIDs = append(s.player.SongIDs, song.ID)
	s.player.Stats["songs_released"]++
	sink := s.onEvent
	s.mu.Unlock()

	sink("song_created", map[string]any{"song_id": song.ID, "title": title})
	return song, nil
}

// PassWeek advances the turn through the clock (single-flight there).
func (s *Session) PassWeek() (time.Time, error) {
	if !s.Active() {
		return time.Time{}, ErrNoGame
	}
	return s.clock.PassWeek()
}

// --- SnapshotSource implementation (consumed by the save coordinator) ---

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *Session) ProfileID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileID
}

// BuildSnapshot assembles the full self-contained snapshot: player,
// entities and one opaque blob per registered subsystem.
func (s *Session) BuildSnapshot() (*models.GameSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return nil, ErrNoGame
	}

	snap := &models.GameSnapshot{
		Version:         models.SnapshotVersion,
		Timestamp:       time.Now().UnixMilli(),
		SimulatedDate:   s.clock.ISODate(),
		Player:          copyPlayer(s.player),
		Entities:        copyEntities(s.entities),
		SubsystemStates: make(map[string]json.RawMessage, len(s.persistables)),
	}
	snap.Entities.Events = s.industry.ActiveEvents()

	for _, p := range s.persistables {
		blob, err := p.GetState()
		if err != nil {
			return nil, fmt.Errorf("subsystem %s: %w", p.Name(), err)
		}
		snap.SubsystemStates[p.Name()] = blob
	}
	return snap, nil
}

// RestoreSnapshot replays a snapshot into the session and every registered
// subsystem, then re-aims the clock at the snapshot's calendar day.
func (s *Session) RestoreSnapshot(snap *models.GameSnapshot) error {
	if snap == nil || snap.Player == nil {
		return errors.New("game: snapshot is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.player = copyPlayer(snap.Player)
	backfillPlayer(s.player)
	s.entities = copyEntities(snap.Entities)
	if s.entities.Songs == nil {
		s.entities.Songs = make(map[string]*models.Song)
	}
	if s.entities.Albums == nil {
		s.entities.Albums = make(map[string]*models.Album)
	}

	for _, p := range s.persistables {
		blob, ok := snap.SubsystemStates[p.Name()]
		if !ok {
			continue // subsystem added after this save was written
		}
		if err := p.SetState(blob); err != nil {
			return fmt.Errorf("subsystem %s: %w", p.Name(), err)
		}
	}

	if d, err := time.Parse("2006-01-02", snap.SimulatedDate); err == nil {
		s.clock.SetCurrent(d)
	}
	s.profileID = snap.Player.ID
	s.active = true
	return nil
}

// Player returns a copy for read-only consumers (API handlers).
func (s *Session) Player() *models.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.player == nil {
		return nil
	}
	return copyPlayer(s.player)
}

func (s *Session) Charts() []models.ChartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ChartEntry(nil), s.entities.Charts...)
}

func (s *Session) News() []models.NewsItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.NewsItem(nil), s.entities.News...)
}

// --- copy helpers: snapshots must never alias live state ---

func copyPlayer(p *models.PlayerState) *models.PlayerState {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Skills = make(map[string]float64, len(p.Skills))
	for k, v := range p.Skills {
		cp.Skills[k] = v
	}
	cp.Stats = make(map[string]int, len(p.Stats))
	for k, v := range p.Stats {
		cp.Stats[k] = v
	}
	cp.SongIDs = append([]string(nil), p.SongIDs...)
	cp.AlbumIDs = append([]string(nil), p.AlbumIDs...)
	return &cp
}

func copyEntities(e models.Entities) models.Entities {
	out := models.Entities{
		Songs:  make(map[string]*models.Song, len(e.Songs)),
		Albums: make(map[string]*models.Album, len(e.Albums)),
		Charts: append([]models.ChartEntry(nil), e.Charts...),
		News:   append([]models.NewsItem(nil), e.News...),
		Events: append([]models.IndustryEvent(nil), e.Events...),
	}
	for id, song := range e.Songs {
		cp := *song
		out.Songs[id] = &cp
	}
	for id, album := range e.Albums {
		cp := *album
		cp.SongIDs = append([]string(nil), album.SongIDs...)
		out.Albums[id] = &cp
	}
	return out
}

// backfillPlayer ensures maps are never nil after load.
func backfillPlayer(p *models.PlayerState) {
	if p.Skills == nil {
		p.Skills = map[string]float64{}
	}
	if p.Stats == nil {
		p.Stats = map[string]int{}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
