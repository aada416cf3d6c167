package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"chesspot/domain/entities"
	"chesspot/domain/events"
	"chesspot/domain/interfaces"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-memory store backing MemoryUnitOfWorkFactory. It lets
// the orchestration layer be tested deterministically without a database.
type MemoryStore struct {
	mu      sync.Mutex
	users   map[int64]*entities.User
	matches map[string]*entities.Match
	history []*entities.BalanceHistory
	settled map[string]bool
	events  []events.Event
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]*entities.User),
		matches: make(map[string]*entities.Match),
		settled: make(map[string]bool),
	}
}

// PutUser seeds a user account
func (s *MemoryStore) PutUser(id int64, username string, balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &entities.User{ID: id, Username: username, Balance: balance}
}

// UserBalance returns a user's current balance
func (s *MemoryStore) UserBalance(id int64) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return u.Balance
	}
	return decimal.Zero
}

// Match returns a stored match by id
func (s *MemoryStore) Match(id string) *entities.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches[id]
}

// Matches returns all stored matches
func (s *MemoryStore) Matches() []*entities.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*entities.Match, 0, len(s.matches))
	for _, m := range s.matches {
		all = append(all, m)
	}
	return all
}

// HistoryFor returns the recorded balance history entries for a user, oldest
// first
func (s *MemoryStore) HistoryFor(userID int64) []*entities.BalanceHistory {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.BalanceHistory
	for _, h := range s.history {
		if h.UserID == userID {
			out = append(out, h)
		}
	}
	return out
}

// Settled reports whether a match id carries the settled marker
func (s *MemoryStore) Settled(matchID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled[matchID]
}

// Events returns all published events in order
func (s *MemoryStore) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

// MemoryUnitOfWorkFactory creates units of work over a MemoryStore
type MemoryUnitOfWorkFactory struct {
	Store *MemoryStore
}

// NewMemoryUnitOfWorkFactory creates a factory over a fresh store
func NewMemoryUnitOfWorkFactory() *MemoryUnitOfWorkFactory {
	return &MemoryUnitOfWorkFactory{Store: NewMemoryStore()}
}

// Create creates a new in-memory UnitOfWork
func (f *MemoryUnitOfWorkFactory) Create() UnitOfWork {
	return &memoryUnitOfWork{store: f.Store}
}

// memoryUnitOfWork applies writes directly to the store. Transactions are not
// simulated: tests drive failure paths through validation errors, which occur
// before any write.
type memoryUnitOfWork struct {
	store   *MemoryStore
	started bool
	pending []events.Event
}

func (u *memoryUnitOfWork) Begin(ctx context.Context) error {
	u.started = true
	return nil
}

func (u *memoryUnitOfWork) Commit() error {
	if !u.started {
		return fmt.Errorf("no transaction to commit")
	}
	u.store.mu.Lock()
	u.store.events = append(u.store.events, u.pending...)
	u.store.mu.Unlock()
	u.pending = nil
	u.started = false
	return nil
}

func (u *memoryUnitOfWork) Rollback() error {
	u.pending = nil
	u.started = false
	return nil
}

func (u *memoryUnitOfWork) UserRepository() interfaces.UserRepository {
	return &memoryUserRepo{store: u.store}
}

func (u *memoryUnitOfWork) MatchRepository() interfaces.MatchRepository {
	return &memoryMatchRepo{store: u.store}
}

func (u *memoryUnitOfWork) BalanceHistoryRepository() interfaces.BalanceHistoryRepository {
	return &memoryHistoryRepo{store: u.store}
}

func (u *memoryUnitOfWork) SettlementRepository() interfaces.SettlementRepository {
	return &memorySettlementRepo{store: u.store}
}

func (u *memoryUnitOfWork) EventBus() interfaces.EventPublisher {
	return memoryEventBus{uow: u}
}

type memoryEventBus struct {
	uow *memoryUnitOfWork
}

func (b memoryEventBus) Publish(event events.Event) error {
	b.uow.pending = append(b.uow.pending, event)
	return nil
}

type memoryUserRepo struct {
	store *MemoryStore
}

func (r *memoryUserRepo) GetByID(ctx context.Context, id int64) (*entities.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}

func (r *memoryUserRepo) LockForUpdate(ctx context.Context, id int64) (*entities.User, error) {
	return r.GetByID(ctx, id)
}

func (r *memoryUserRepo) Create(ctx context.Context, id int64, username string, initialBalance decimal.Decimal) (*entities.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now().UTC()
	u := &entities.User{ID: id, Username: username, Balance: initialBalance, CreatedAt: now, UpdatedAt: now}
	r.store.users[id] = u
	copied := *u
	return &copied, nil
}

func (r *memoryUserRepo) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (decimal.Decimal, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	u, ok := r.store.users[id]
	if !ok {
		return decimal.Zero, entities.ErrUserNotFound
	}
	u.Balance = u.Balance.Add(delta)
	return u.Balance, nil
}

type memoryMatchRepo struct {
	store *MemoryStore
}

func (r *memoryMatchRepo) Create(ctx context.Context, match *entities.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.matches[match.ID] = match
	return nil
}

func (r *memoryMatchRepo) GetByID(ctx context.Context, id string) (*entities.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.matches[id], nil
}

func (r *memoryMatchRepo) Update(ctx context.Context, match *entities.Match) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.matches[match.ID]; !ok {
		return entities.ErrMatchNotFound
	}
	r.store.matches[match.ID] = match
	return nil
}

func (r *memoryMatchRepo) GetActiveByUser(ctx context.Context, userID int64) ([]*entities.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	participant := entities.HumanParticipant(userID)
	var out []*entities.Match
	for _, m := range r.store.matches {
		if !m.IsActive() {
			continue
		}
		if _, ok := m.ColorOf(participant); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memoryMatchRepo) GetActive(ctx context.Context) ([]*entities.Match, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entities.Match
	for _, m := range r.store.matches {
		if m.IsActive() {
			out = append(out, m)
		}
	}
	return out, nil
}

type memoryHistoryRepo struct {
	store *MemoryStore
}

func (r *memoryHistoryRepo) Record(ctx context.Context, history *entities.BalanceHistory) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	history.ID = int64(len(r.store.history) + 1)
	history.CreatedAt = time.Now().UTC()
	r.store.history = append(r.store.history, history)
	return nil
}

func (r *memoryHistoryRepo) GetByUser(ctx context.Context, userID int64, limit int) ([]*entities.BalanceHistory, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*entities.BalanceHistory
	for i := len(r.store.history) - 1; i >= 0 && len(out) < limit; i-- {
		if r.store.history[i].UserID == userID {
			out = append(out, r.store.history[i])
		}
	}
	return out, nil
}

type memorySettlementRepo struct {
	store *MemoryStore
}

func (r *memorySettlementRepo) MarkSettled(ctx context.Context, matchID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.settled[matchID] {
		return false, nil
	}
	r.store.settled[matchID] = true
	return true, nil
}

func (r *memorySettlementRepo) IsSettled(ctx context.Context, matchID string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.settled[matchID], nil
}
