package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/database"
	"product-user-services/internal/repo"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{Driver: "sqlite", DSN: "file::memory:", LogLevel: "silent"}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, repo.MigrateProducts(db))
	require.NoError(t, repo.MigrateUsers(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func testJWT() *auth.JWTer {
	return &auth.JWTer{Secret: []byte("test-secret"), Issuer: "test", TTL: time.Hour}
}

// countingCascader 记录调用次数，可注入失败
type countingCascader struct {
	mu       sync.Mutex
	softDels []string
	restores []string
	err      error
}

func (c *countingCascader) SoftDeleteByOwner(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.softDels = append(c.softDels, userID)
	return c.err
}

func (c *countingCascader) RestoreByOwner(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restores = append(c.restores, userID)
	return c.err
}

func (c *countingCascader) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.softDels) + len(c.restores)
}

// localCascader 直接调用商品服务，代替跨服务 HTTP
type localCascader struct {
	products *ProductService
	admin    auth.Actor
}

func (c localCascader) SoftDeleteByOwner(ctx context.Context, userID string) error {
	_, err := c.products.SoftDeleteByOwner(ctx, c.admin, userID)
	return err
}

func (c localCascader) RestoreByOwner(ctx context.Context, userID string) error {
	_, err := c.products.RestoreByOwner(ctx, c.admin, userID)
	return err
}

type sentMail struct{ to, subject, body string }

type memMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (m *memMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

var errDownstream = errors.New("products service unavailable")

type userFixture struct {
	svc    *UserService
	d      *CascadeDispatcher
	users  *repo.UserRepo
	jobs   *repo.CascadeJobRepo
	mailer *memMailer
}

func newUserFixture(t *testing.T, db *gorm.DB, c Cascader) userFixture {
	t.Helper()
	users := repo.NewUserRepo(db)
	jobs := repo.NewCascadeJobRepo(db)
	d := NewCascadeDispatcher(c, jobs, DispatcherOptions{Attempts: 2, BaseDelay: time.Millisecond, Timeout: time.Second}, zap.NewNop())
	m := &memMailer{}
	svc := NewUserService(users, d, m, testJWT(), UserServiceOptions{PublicBaseURL: "http://users.local"}, zap.NewNop())
	return userFixture{svc: svc, d: d, users: users, jobs: jobs, mailer: m}
}

func ptr[T any](v T) *T { return &v }
