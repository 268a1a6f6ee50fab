package services

import (
	"context"
	"database/sql"
	"strings"
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

type fakeRepoMgr struct {
	users *fakeUsersRepo
	media *fakeMediaRepo
}

func (m *fakeRepoMgr) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoMgr) Users(dbx.DBTX) users.Repository             { return m.users }
func (m *fakeRepoMgr) Media(dbx.DBTX) media.Repository             { return m.media }
func (m *fakeRepoMgr) Customers(dbx.DBTX) customers.Repository     { return nil }
func (m *fakeRepoMgr) Events(dbx.DBTX) events.Repository           { return nil }

type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[int64]*models.User
	nextID  int64
	lookups int
	err     error
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[int64]*models.User{}, nextID: 1}
}

func (f *fakeUsersRepo) Create(ctx context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, x := range f.byID {
		if strings.EqualFold(x.Username, u.Username) || strings.EqualFold(x.Email, u.Email) {
			return nil, common.ErrorAlreadyExists
		}
	}
	cp := *u
	cp.ID = f.nextID
	cp.CreatedAt = time.Now()
	f.nextID++
	f.byID[cp.ID] = &cp
	return &cp, nil
}

func (f *fakeUsersRepo) GetUserByLogin(ctx context.Context, identifier string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, x := range f.byID {
		if strings.EqualFold(x.Username, identifier) || strings.EqualFold(x.Email, identifier) {
			cp := *x
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsersRepo) SetTier(context.Context, int64, models.Tier, time.Time) (bool, error) {
	return false, nil
}

func (f *fakeUsersRepo) delete(id int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
}

type fakeMediaRepo struct {
	items []*models.Media
	err   error

	// calls made without a context deadline
	unbounded int
}

func (f *fakeMediaRepo) ListByUser(ctx context.Context, userID int64) ([]*models.Media, error) {
	if _, ok := ctx.Deadline(); !ok {
		f.unbounded++
	}
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Media
	for _, m := range f.items {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMediaRepo) GetByID(ctx context.Context, id int64) (*models.Media, error) {
	if _, ok := ctx.Deadline(); !ok {
		f.unbounded++
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, m := range f.items {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, common.ErrorNotFound
}
