package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cadence-api/internal/domain"
	"github.com/phrazzld/cadence-api/internal/domain/lifecycle"
	"github.com/phrazzld/cadence-api/internal/events"
	"github.com/phrazzld/cadence-api/internal/store"
)

// memDB is an in-memory stand-in for the database shared by the fake
// stores. Transactions are serialized and roll back by restoring a snapshot.
type memDB struct {
	txMu sync.Mutex
	mu   sync.Mutex

	meetings   map[uuid.UUID]domain.Meeting
	series     map[uuid.UUID]domain.MeetingSeries
	cards      map[uuid.UUID]domain.Card
	activities []domain.CardActivity

	// fail makes the named operation return the error.
	fail map[string]error
	// afterScan runs after ListActive read a page, before any card is updated.
	afterScan func(page []*domain.Card)
}

func newMemDB() *memDB {
	return &memDB{
		meetings: make(map[uuid.UUID]domain.Meeting),
		series:   make(map[uuid.UUID]domain.MeetingSeries),
		cards:    make(map[uuid.UUID]domain.Card),
		fail:     make(map[string]error),
	}
}

func (db *memDB) failOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.fail[op] = err
}

func (db *memDB) check(op string) error {
	return db.fail[op]
}

type memSnapshot struct {
	meetings   map[uuid.UUID]domain.Meeting
	series     map[uuid.UUID]domain.MeetingSeries
	cards      map[uuid.UUID]domain.Card
	activities []domain.CardActivity
}

func (db *memDB) snapshot() memSnapshot {
	db.mu.Lock()
	defer db.mu.Unlock()
	return memSnapshot{
		meetings:   maps.Clone(db.meetings),
		series:     maps.Clone(db.series),
		cards:      maps.Clone(db.cards),
		activities: slices.Clone(db.activities),
	}
}

func (db *memDB) restore(s memSnapshot) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.meetings = s.meetings
	db.series = s.series
	db.cards = s.cards
	db.activities = s.activities
}

// RunInTransaction implements store.Transactor.
func (db *memDB) RunInTransaction(ctx context.Context, fn store.TxFn) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	snap := db.snapshot()
	if err := fn(ctx, nil); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

func (db *memDB) activitiesFor(cardID uuid.UUID) []domain.CardActivity {
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []domain.CardActivity
	for _, a := range db.activities {
		if a.CardID == cardID {
			out = append(out, a)
		}
	}
	return out
}

func (db *memDB) meeting(id uuid.UUID) domain.Meeting {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.meetings[id]
}

func (db *memDB) card(id uuid.UUID) domain.Card {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.cards[id]
}

func (db *memDB) putCard(c *domain.Card) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.cards[c.ID] = *c
}

func (db *memDB) putMeeting(m *domain.Meeting) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.meetings[m.ID] = *m
}

func copyCard(c domain.Card) *domain.Card {
	c.InvolvedPeople = slices.Clone(c.InvolvedPeople)
	return &c
}

// fakeCardStore implements store.CardStore.
type fakeCardStore struct{ db *memDB }

func (s *fakeCardStore) Create(ctx context.Context, card *domain.Card) error {
	return s.CreateMultiple(ctx, []*domain.Card{card})
}

func (s *fakeCardStore) CreateMultiple(_ context.Context, cards []*domain.Card) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("cards.CreateMultiple"); err != nil {
		return err
	}
	for _, c := range cards {
		if err := c.Validate(); err != nil {
			return err
		}
		s.db.cards[c.ID] = *copyCard(*c)
	}
	return nil
}

func (s *fakeCardStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Card, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.cards[id]
	if !ok {
		return nil, store.ErrCardNotFound
	}
	return copyCard(c), nil
}

func (s *fakeCardStore) list(match func(domain.Card) bool) []*domain.Card {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.Card
	for _, c := range s.db.cards {
		if match(c) {
			out = append(out, copyCard(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (s *fakeCardStore) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]*domain.Card, error) {
	return s.list(func(c domain.Card) bool { return c.MeetingID == meetingID }), nil
}

func (s *fakeCardStore) ListCarryoverCandidates(_ context.Context, meetingID uuid.UUID) ([]*domain.Card, error) {
	if err := s.db.check("cards.ListCarryoverCandidates"); err != nil {
		return nil, err
	}
	return s.list(func(c domain.Card) bool {
		return c.MeetingID == meetingID && c.Status != domain.StatusDone
	}), nil
}

func (s *fakeCardStore) ListActive(_ context.Context, afterID uuid.UUID, limit int) ([]*domain.Card, error) {
	if err := s.db.check("cards.ListActive"); err != nil {
		return nil, err
	}
	active := s.list(func(c domain.Card) bool {
		return c.Status != domain.StatusDone && c.ID.String() > afterID.String()
	})
	sort.Slice(active, func(i, j int) bool { return active[i].ID.String() < active[j].ID.String() })
	if len(active) > limit {
		active = active[:limit]
	}
	if s.db.afterScan != nil {
		s.db.afterScan(active)
	}
	return active, nil
}

func (s *fakeCardStore) EscalatePriority(
	_ context.Context,
	cardID uuid.UUID,
	expected domain.Priority,
	status domain.Status,
	next domain.Priority,
	at time.Time,
) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("cards.EscalatePriority"); err != nil {
		return false, err
	}
	c, ok := s.db.cards[cardID]
	if !ok || c.Priority != expected || c.Status != status {
		return false, nil
	}
	c.Priority = next
	c.PriorityAutoUpdated = true
	c.LastPriorityUpdate = &at
	c.UpdatedAt = at
	s.db.cards[cardID] = c
	return true, nil
}

func (s *fakeCardStore) UpdateStatus(_ context.Context, card *domain.Card) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.cards[card.ID]; !ok {
		return store.ErrCardNotFound
	}
	s.db.cards[card.ID] = *copyCard(*card)
	return nil
}

func (s *fakeCardStore) UpdatePriority(_ context.Context, card *domain.Card) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("cards.UpdatePriority"); err != nil {
		return err
	}
	if _, ok := s.db.cards[card.ID]; !ok {
		return store.ErrCardNotFound
	}
	s.db.cards[card.ID] = *copyCard(*card)
	return nil
}

func (s *fakeCardStore) WithTx(*sql.Tx) store.CardStore { return s }

// fakeMeetingStore implements store.MeetingStore.
type fakeMeetingStore struct{ db *memDB }

func (s *fakeMeetingStore) Create(_ context.Context, m *domain.Meeting) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("meetings.Create"); err != nil {
		return err
	}
	s.db.meetings[m.ID] = *m
	return nil
}

func (s *fakeMeetingStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Meeting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.meetings[id]
	if !ok {
		return nil, store.ErrMeetingNotFound
	}
	return &m, nil
}

func (s *fakeMeetingStore) FindLatestInSeries(
	_ context.Context,
	seriesID, excludeID uuid.UUID,
) (*domain.Meeting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var latest *domain.Meeting
	for _, m := range s.db.meetings {
		if m.ID == excludeID || m.SeriesID == nil || *m.SeriesID != seriesID {
			continue
		}
		if latest == nil || m.Date.After(latest.Date) ||
			(m.Date.Equal(latest.Date) && seriesNumber(&m) > seriesNumber(latest)) {
			found := m
			latest = &found
		}
	}
	if latest == nil {
		return nil, store.ErrMeetingNotFound
	}
	return latest, nil
}

func (s *fakeMeetingStore) AttachToSeries(_ context.Context, meetingID uuid.UUID, link store.SeriesLink) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("meetings.AttachToSeries"); err != nil {
		return err
	}
	m, ok := s.db.meetings[meetingID]
	if !ok {
		return store.ErrMeetingNotFound
	}
	applyLink(&m, link, m.UpdatedAt)
	s.db.meetings[meetingID] = m
	return nil
}

func (s *fakeMeetingStore) SetNextMeeting(_ context.Context, meetingID, nextID uuid.UUID) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	m, ok := s.db.meetings[meetingID]
	if !ok {
		return store.ErrMeetingNotFound
	}
	m.NextMeetingID = &nextID
	s.db.meetings[meetingID] = m
	return nil
}

func (s *fakeMeetingStore) SetCarryoverCount(_ context.Context, meetingID uuid.UUID, count int) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("meetings.SetCarryoverCount"); err != nil {
		return err
	}
	m, ok := s.db.meetings[meetingID]
	if !ok {
		return store.ErrMeetingNotFound
	}
	m.CarryoverCount = count
	s.db.meetings[meetingID] = m
	return nil
}

func (s *fakeMeetingStore) ListBySeries(_ context.Context, seriesID uuid.UUID) ([]*domain.Meeting, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.Meeting
	for _, m := range s.db.meetings {
		if m.SeriesID != nil && *m.SeriesID == seriesID {
			found := m
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return seriesNumber(out[i]) < seriesNumber(out[j]) })
	return out, nil
}

func (s *fakeMeetingStore) SeriesTallies(_ context.Context, seriesID uuid.UUID) ([]domain.MeetingTally, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var tallies []domain.MeetingTally
	for _, m := range s.db.meetings {
		if m.SeriesID == nil || *m.SeriesID != seriesID {
			continue
		}
		tally := domain.MeetingTally{MeetingID: m.ID, Date: m.Date}
		for _, c := range s.db.cards {
			if c.MeetingID != m.ID {
				continue
			}
			tally.TotalCards++
			if c.Status == domain.StatusDone {
				tally.DoneCards++
			}
		}
		tallies = append(tallies, tally)
	}
	return tallies, nil
}

func (s *fakeMeetingStore) WithTx(*sql.Tx) store.MeetingStore { return s }

// fakeSeriesStore implements store.SeriesStore.
type fakeSeriesStore struct{ db *memDB }

func (s *fakeSeriesStore) FindActive(_ context.Context, userID uuid.UUID, title string) (*domain.MeetingSeries, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, series := range s.db.series {
		if series.UserID == userID && series.Title == title && series.IsActive {
			found := series
			return &found, nil
		}
	}
	return nil, store.ErrSeriesNotFound
}

func (s *fakeSeriesStore) Create(_ context.Context, series *domain.MeetingSeries) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("series.Create"); err != nil {
		return err
	}
	for _, existing := range s.db.series {
		if existing.UserID == series.UserID && existing.Title == series.Title && existing.IsActive {
			return store.ErrSeriesExists
		}
	}
	s.db.series[series.ID] = *series
	return nil
}

func (s *fakeSeriesStore) GetByID(_ context.Context, id uuid.UUID) (*domain.MeetingSeries, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	series, ok := s.db.series[id]
	if !ok {
		return nil, store.ErrSeriesNotFound
	}
	return &series, nil
}

func (s *fakeSeriesStore) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*domain.MeetingSeries, error) {
	return s.GetByID(ctx, id)
}

func (s *fakeSeriesStore) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.MeetingSeries, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []*domain.MeetingSeries
	for _, series := range s.db.series {
		if series.UserID == userID {
			found := series
			out = append(out, &found)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *fakeSeriesStore) UpdateAggregates(_ context.Context, series *domain.MeetingSeries) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.series[series.ID]; !ok {
		return store.ErrSeriesNotFound
	}
	s.db.series[series.ID] = *series
	return nil
}

func (s *fakeSeriesStore) WithTx(*sql.Tx) store.SeriesStore { return s }

// fakeActivityStore implements store.ActivityStore.
type fakeActivityStore struct{ db *memDB }

func (s *fakeActivityStore) Create(ctx context.Context, activity *domain.CardActivity) error {
	return s.CreateMultiple(ctx, []*domain.CardActivity{activity})
}

func (s *fakeActivityStore) CreateMultiple(_ context.Context, activities []*domain.CardActivity) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.check("activities.CreateMultiple"); err != nil {
		return err
	}
	for _, a := range activities {
		s.db.activities = append(s.db.activities, *a)
	}
	return nil
}

func (s *fakeActivityStore) ListByCard(_ context.Context, cardID uuid.UUID) ([]*domain.CardActivity, error) {
	var out []*domain.CardActivity
	for _, a := range s.db.activitiesFor(cardID) {
		found := a
		out = append(out, &found)
	}
	return out, nil
}

func (s *fakeActivityStore) WithTx(*sql.Tx) store.ActivityStore { return s }

// recordingEmitter collects emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.Event
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) types() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

// memCache implements ComparisonCache.
type memCache struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lifecycle.Comparison
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[uuid.UUID]*lifecycle.Comparison)}
}

func (c *memCache) Get(_ context.Context, id uuid.UUID) (*lifecycle.Comparison, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cmp, ok := c.entries[id]
	return cmp, ok, nil
}

func (c *memCache) Set(_ context.Context, id uuid.UUID, cmp *lifecycle.Comparison) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[id] = cmp
	return nil
}

func (c *memCache) Invalidate(_ context.Context, ids ...uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(t time.Time) *clock { return &clock{now: t} }

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires every service over one memDB.
type fixture struct {
	db       *memDB
	clock    *clock
	emitter  *recordingEmitter
	cache    *memCache
	cards    *fakeCardStore
	meetings *fakeMeetingStore
	series   *fakeSeriesStore
	activity *fakeActivityStore

	linker     *SeriesLinker
	carryover  *CarryoverEngine
	escalator  *Escalator
	comparison *ComparisonService
	meetingSvc *MeetingService
	cardSvc    *CardService
}

var fixtureStart = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t interface{ Fatalf(string, ...any) }) *fixture {
	db := newMemDB()
	f := &fixture{
		db:       db,
		clock:    newClock(fixtureStart),
		emitter:  &recordingEmitter{},
		cache:    newMemCache(),
		cards:    &fakeCardStore{db: db},
		meetings: &fakeMeetingStore{db: db},
		series:   &fakeSeriesStore{db: db},
		activity: &fakeActivityStore{db: db},
	}

	opts := []Option{WithClock(f.clock.Now), WithEmitter(f.emitter)}
	params := lifecycle.NewDefaultParams()
	log := testLogger()

	var err error
	if f.linker, err = NewSeriesLinker(db, f.series, f.meetings, log, opts...); err != nil {
		t.Fatalf("linker: %v", err)
	}
	if f.carryover, err = NewCarryoverEngine(db, f.cards, f.meetings, f.activity, params, log, opts...); err != nil {
		t.Fatalf("carryover: %v", err)
	}
	if f.escalator, err = NewEscalator(db, f.cards, f.activity, params, 3, 2, log, opts...); err != nil {
		t.Fatalf("escalator: %v", err)
	}
	if f.comparison, err = NewComparisonService(f.meetings, f.cards, f.cache, params, log, opts...); err != nil {
		t.Fatalf("comparison: %v", err)
	}
	if f.meetingSvc, err = NewMeetingService(
		db, f.meetings, f.series, f.cards, f.activity, f.linker, f.carryover, log, opts...,
	); err != nil {
		t.Fatalf("meeting service: %v", err)
	}
	if f.cardSvc, err = NewCardService(
		db, f.cards, f.meetings, f.activity, params, f.comparison, log,
		WithClock(f.clock.Now), WithEmitter(f.emitter), WithSeriesRefresher(f.linker),
	); err != nil {
		t.Fatalf("card service: %v", err)
	}
	return f
}

// seedCard stores a card in meetingID with the given status clock.
func (f *fixture) seedCard(
	meetingID uuid.UUID,
	status domain.Status,
	priority domain.Priority,
	since time.Time,
) *domain.Card {
	card, err := domain.NewCard(meetingID, "action_item", "follow up", since)
	if err != nil {
		panic(err)
	}
	card.Status = status
	card.Priority = priority
	f.db.putCard(card)
	return card
}
