package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/errs"
	"product-user-services/internal/domain"
	"product-user-services/internal/repo"
	"product-user-services/pkg/utils"
)

var adminActor = auth.Actor{ID: "11111111-1111-4111-8111-111111111111", Role: domain.RoleAdmin}

func register(t *testing.T, svc *UserService, email string) *domain.User {
	t.Helper()
	u, err := svc.Create(context.Background(), CreateUserInput{Name: "Ann Lee", Email: email, Password: "s3cret-pass"})
	require.NoError(t, err)
	return u
}

func updateFrom(u *domain.User, active bool) UpdateUserInput {
	return UpdateUserInput{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, IsActive: ptr(active)}
}

func TestUserService_CreateForcesUserRole(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	u := register(t, f.svc, "  Ann@Example.com ")

	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, domain.RoleUser, u.Role)
	assert.True(t, u.IsActive)
	assert.False(t, u.EmailConfirmed)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)
	require.Len(t, f.mailer.sent, 1)
	assert.Equal(t, "ann@example.com", f.mailer.sent[0].to)
	assert.Contains(t, f.mailer.sent[0].body, "http://users.local/api/v1/users/confirm-email?")

	_, err := f.svc.Create(context.Background(), CreateUserInput{Name: "Dup", Email: "ann@example.com", Password: "another-pass"})
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "email")
}

func TestUserService_CreateSurvivesMailFailure(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	f.mailer.err = errDownstream
	u := register(t, f.svc, "bob@example.com")
	assert.NotEmpty(t, u.ID)
}

func TestUserService_UpdateWithoutTransitionSkipsCascade(t *testing.T) {
	c := &countingCascader{}
	f := newUserFixture(t, newTestDB(t), c)
	ctx := context.Background()
	u := register(t, f.svc, "ann@example.com")

	in := updateFrom(u, true)
	in.Name = " Ann Renamed "
	in.Email = "  ANN@example.com "
	got, err := f.svc.Update(ctx, in, adminActor)
	require.NoError(t, err)
	assert.Equal(t, "Ann Renamed", got.Name)
	assert.Equal(t, "ann@example.com", got.Email)
	require.NotNil(t, got.UpdatedAt)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))
	assert.Zero(t, c.calls())

	pending, err := f.jobs.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUserService_UpdateTransitionsDispatchOnce(t *testing.T) {
	c := &countingCascader{}
	f := newUserFixture(t, newTestDB(t), c)
	ctx := context.Background()
	u := register(t, f.svc, "ann@example.com")

	_, err := f.svc.Update(ctx, updateFrom(u, false), adminActor)
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, c.softDels)

	// false -> false 不再派发
	_, err = f.svc.Update(ctx, updateFrom(u, false), adminActor)
	require.NoError(t, err)
	assert.Equal(t, 1, c.calls())

	_, err = f.svc.Update(ctx, updateFrom(u, true), adminActor)
	require.NoError(t, err)
	assert.Equal(t, []string{u.ID}, c.restores)

	pending, err := f.jobs.Pending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestUserService_UpdateUnknownUser(t *testing.T) {
	c := &countingCascader{}
	f := newUserFixture(t, newTestDB(t), c)
	in := UpdateUserInput{ID: utils.NewID(), Name: "Nobody", Email: "nobody@example.com", Role: domain.RoleUser, IsActive: ptr(false)}
	_, err := f.svc.Update(context.Background(), in, adminActor)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.Zero(t, c.calls())
}

func TestUserService_UpdateValidation(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	u := register(t, f.svc, "ann@example.com")

	in := updateFrom(u, true)
	in.Role = "root"
	in.IsActive = nil
	_, err := f.svc.Update(context.Background(), in, adminActor)
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Contains(t, e.Fields, "role")
	assert.Contains(t, e.Fields, "isActive")
}

func TestUserService_CascadeFailureKeepsUserAndJob(t *testing.T) {
	c := &countingCascader{err: errDownstream}
	f := newUserFixture(t, newTestDB(t), c)
	ctx := context.Background()
	u := register(t, f.svc, "ann@example.com")

	got, err := f.svc.Update(ctx, updateFrom(u, false), adminActor)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindCascade))
	assert.ErrorIs(t, err, errDownstream)
	require.NotNil(t, got)
	assert.False(t, got.IsActive)
	assert.Equal(t, 2, c.calls())

	stored, err := f.users.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	pending, err := f.jobs.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, domain.CascadeSoftDelete, pending[0].Action)
	assert.Equal(t, adminActor.ID, pending[0].ActorID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Contains(t, pending[0].LastError, errDownstream.Error())
}

func TestUserService_DeactivationCascadesToProducts(t *testing.T) {
	db := newTestDB(t)
	products := NewProductService(repo.NewProductRepo(db), zap.NewNop())
	f := newUserFixture(t, db, localCascader{products: products, admin: adminActor})
	ctx := context.Background()

	u := register(t, f.svc, "ann@example.com")
	p1, err := products.Create(ctx, CreateProductInput{Name: "P1", Description: "first product", Price: 5, Availability: ptr(true)}, u.ID)
	require.NoError(t, err)
	p2, err := products.Create(ctx, CreateProductInput{Name: "P2", Description: "second product", Price: 7, Availability: ptr(true)}, u.ID)
	require.NoError(t, err)
	other, err := products.Create(ctx, CreateProductInput{Name: "P3", Description: "someone else's", Price: 3, Availability: ptr(true)}, utils.NewID())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, updateFrom(u, false), adminActor)
	require.NoError(t, err)

	for _, id := range []string{p1.ID, p2.ID} {
		_, err := products.GetByID(ctx, id)
		assert.True(t, errs.Is(err, errs.KindNotFound), id)
	}
	visible, err := products.List(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, other.ID, visible[0].ID)

	_, err = f.svc.Update(ctx, updateFrom(u, true), adminActor)
	require.NoError(t, err)

	visible, err = products.List(ctx)
	require.NoError(t, err)
	assert.Len(t, visible, 3)
	back, err := products.GetByID(ctx, p1.ID)
	require.NoError(t, err)
	assert.Equal(t, "P1", back.Name)
}

func TestUserService_Delete(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	ctx := context.Background()
	u := register(t, f.svc, "ann@example.com")

	require.NoError(t, f.svc.Delete(ctx, u.ID))
	assert.True(t, errs.Is(f.svc.Delete(ctx, u.ID), errs.KindNotFound))
	_, err := f.svc.GetByID(ctx, u.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestUserService_Authenticate(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	ctx := context.Background()
	u := register(t, f.svc, "ann@example.com")

	tok, got, err := f.svc.Authenticate(ctx, "ANN@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	c, err := testJWT().Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, c.UID)
	assert.Equal(t, domain.RoleUser, c.Role)

	_, _, err = f.svc.Authenticate(ctx, "ann@example.com", "wrong-pass")
	assert.True(t, errs.Is(err, errs.KindUnauthorized))
	_, _, err = f.svc.Authenticate(ctx, "ghost@example.com", "s3cret-pass")
	assert.True(t, errs.Is(err, errs.KindUnauthorized))

	_, err = f.svc.Update(ctx, updateFrom(u, false), adminActor)
	require.NoError(t, err)
	_, _, err = f.svc.Authenticate(ctx, "ann@example.com", "s3cret-pass")
	assert.True(t, errs.Is(err, errs.KindUnauthorized))
}

func TestUserService_ConfirmEmail(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	ctx := context.Background()
	u := register(t, f.svc, "ann@example.com")
	jwter := testJWT()

	bad, err := jwter.IssueAction(u.ID, auth.PurposePasswordReset, u.SecurityStamp, time.Hour)
	require.NoError(t, err)
	assert.True(t, errs.Is(f.svc.ConfirmEmail(ctx, u.ID, bad), errs.KindValidation))

	tok, err := jwter.IssueAction(u.ID, auth.PurposeEmailConfirm, u.SecurityStamp, time.Hour)
	require.NoError(t, err)
	require.NoError(t, f.svc.ConfirmEmail(ctx, u.ID, tok))
	require.NoError(t, f.svc.ConfirmEmail(ctx, u.ID, tok))

	got, err := f.svc.GetByID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailConfirmed)

	assert.True(t, errs.Is(f.svc.ConfirmEmail(ctx, utils.NewID(), tok), errs.KindNotFound))
}

func TestUserService_PasswordReset(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	ctx := context.Background()
	u := register(t, f.svc, "ann@example.com")

	assert.True(t, errs.Is(f.svc.RequestPasswordReset(ctx, "ghost@example.com"), errs.KindNotFound))
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "ann@example.com"))
	require.Len(t, f.mailer.sent, 2)
	assert.Equal(t, "Reset your password", f.mailer.sent[1].subject)

	tok, err := testJWT().IssueAction(u.ID, auth.PurposePasswordReset, u.SecurityStamp, time.Hour)
	require.NoError(t, err)
	in := ResetPasswordInput{Email: "ann@example.com", Token: tok, NewPassword: "brand-new-pass"}
	require.NoError(t, f.svc.ResetPassword(ctx, in))

	_, _, err = f.svc.Authenticate(ctx, "ann@example.com", "brand-new-pass")
	require.NoError(t, err)

	// stamp 已轮换，同一令牌不能再用
	in.NewPassword = "third-password"
	assert.True(t, errs.Is(f.svc.ResetPassword(ctx, in), errs.KindValidation))
}

func TestUserService_SeedAdmin(t *testing.T) {
	f := newUserFixture(t, newTestDB(t), &countingCascader{})
	ctx := context.Background()

	created, err := f.svc.SeedAdmin(ctx, "root@example.com", "admin-pass-1", "")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.SeedAdmin(ctx, "root@example.com", "admin-pass-1", "")
	require.NoError(t, err)
	assert.False(t, created)

	admin, err := f.users.GetByEmail(ctx, "root@example.com")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, domain.RoleAdmin, admin.Role)
	assert.True(t, admin.EmailConfirmed)
	assert.Equal(t, "Administrator", admin.Name)

	created, err = f.svc.SeedAdmin(ctx, "", "", "")
	require.NoError(t, err)
	assert.False(t, created)
}
