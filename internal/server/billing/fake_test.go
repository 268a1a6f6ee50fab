package billing

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/fittrack/internal/common"
	"github.com/dmitrijs2005/fittrack/internal/dbx"
	"github.com/dmitrijs2005/fittrack/internal/server/models"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/customers"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/events"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/media"
	"github.com/dmitrijs2005/fittrack/internal/server/repositories/users"
)

// store is an in-memory stand-in for the three tables the reconciler touches.
type store struct {
	mu        sync.Mutex
	events    map[string]string
	customers map[string]int64
	users     map[int64]*models.User
	tierSets  int

	markErr error
}

func newStore() *store {
	return &store{
		events:    map[string]string{},
		customers: map[string]int64{},
		users:     map[int64]*models.User{},
	}
}

func (s *store) addUser(id int64, tier models.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &models.User{ID: id, Username: "user", Tier: tier}
}

func (s *store) tier(id int64) models.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Tier
}

type fakeManager struct{ s *store }

func (m fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeManager) Users(dbx.DBTX) users.Repository             { return fakeUsers(m) }
func (m fakeManager) Media(dbx.DBTX) media.Repository             { return nil }
func (m fakeManager) Customers(dbx.DBTX) customers.Repository     { return fakeCustomers(m) }
func (m fakeManager) Events(dbx.DBTX) events.Repository           { return fakeEvents(m) }

type fakeEvents struct{ s *store }

func (f fakeEvents) MarkProcessed(_ context.Context, id, typ string) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if f.s.markErr != nil {
		return false, f.s.markErr
	}
	if _, ok := f.s.events[id]; ok {
		return false, nil
	}
	f.s.events[id] = typ
	return true, nil
}

type fakeCustomers struct{ s *store }

func (f fakeCustomers) Link(_ context.Context, customerID string, userID int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if _, ok := f.s.users[userID]; !ok {
		return common.ErrorNotFound
	}
	if _, ok := f.s.customers[customerID]; !ok {
		f.s.customers[customerID] = userID
	}
	return nil
}

func (f fakeCustomers) FindUserID(_ context.Context, customerID string) (int64, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	id, ok := f.s.customers[customerID]
	if !ok {
		return 0, common.ErrorNotFound
	}
	return id, nil
}

type fakeUsers struct{ s *store }

func (f fakeUsers) Create(context.Context, *models.User) (*models.User, error) {
	return nil, errors.New("not implemented")
}

func (f fakeUsers) GetUserByLogin(context.Context, string) (*models.User, error) {
	return nil, common.ErrorNotFound
}

func (f fakeUsers) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

// SetTier mirrors the conditional UPDATE: equal timestamps are allowed.
func (f fakeUsers) SetTier(_ context.Context, id int64, tier models.Tier, eventAt time.Time) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	u, ok := f.s.users[id]
	if !ok {
		return false, nil
	}
	if u.TierEventAt != nil && u.TierEventAt.After(eventAt) {
		return false, nil
	}
	at := eventAt
	u.Tier, u.TierEventAt = tier, &at
	f.s.tierSets++
	return true, nil
}
