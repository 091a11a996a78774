package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/errs"
	"product-user-services/internal/repo"
	"product-user-services/pkg/utils"
)

func newProductService(t *testing.T) *ProductService {
	t.Helper()
	return NewProductService(repo.NewProductRepo(newTestDB(t)), zap.NewNop())
}

func widget() CreateProductInput {
	return CreateProductInput{
		Name:         "Widget",
		Description:  "A useful widget",
		Price:        9.99,
		Availability: ptr(true),
	}
}

func TestProductService_CreateWidget(t *testing.T) {
	svc := newProductService(t)
	ctx := context.Background()
	owner := utils.NewID()

	p, err := svc.Create(ctx, widget(), owner)
	require.NoError(t, err)
	assert.True(t, utils.IsID(p.ID))
	assert.Equal(t, owner, p.OwnerID)
	assert.False(t, p.IsDeleted())
	assert.False(t, p.CreatedAt.IsZero())

	got, err := svc.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Widget", got.Name)
	assert.InDelta(t, 9.99, got.Price, 0.001)
}

func TestProductService_CreateValidation(t *testing.T) {
	svc := newProductService(t)
	ctx := context.Background()

	in := widget()
	in.Name = "W"
	in.Price = 0
	in.Availability = nil
	_, err := svc.Create(ctx, in, utils.NewID())
	e, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.KindValidation, e.Kind)
	assert.Contains(t, e.Fields, "name")
	assert.Contains(t, e.Fields, "price")
	assert.Contains(t, e.Fields, "availability")

	_, err = svc.Create(ctx, widget(), "")
	assert.True(t, errs.Is(err, errs.KindUnauthorized))
}

func TestProductService_OnlyOwnerMutates(t *testing.T) {
	svc := newProductService(t)
	ctx := context.Background()
	owner, other := utils.NewID(), utils.NewID()
	p, err := svc.Create(ctx, widget(), owner)
	require.NoError(t, err)

	upd := UpdateProductInput{ID: p.ID, Name: "Widget 2", Description: "Still a useful widget", Price: 12, Availability: ptr(false)}
	_, err = svc.Update(ctx, upd, other)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.True(t, errs.Is(svc.Delete(ctx, p.ID, other), errs.KindNotFound))

	got, err := svc.Update(ctx, upd, owner)
	require.NoError(t, err)
	assert.Equal(t, "Widget 2", got.Name)
	assert.False(t, got.Availability)

	require.NoError(t, svc.Delete(ctx, p.ID, owner))
	_, err = svc.GetByID(ctx, p.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	// 已软删的商品 owner 也不能再改
	_, err = svc.Update(ctx, upd, owner)
	assert.True(t, errs.Is(err, errs.KindNotFound))
	assert.True(t, errs.Is(svc.Delete(ctx, p.ID, owner), errs.KindNotFound))
}

func TestProductService_UpdateUnknownID(t *testing.T) {
	svc := newProductService(t)
	upd := UpdateProductInput{ID: utils.NewID(), Name: "Ghost", Description: "Does not exist anywhere", Price: 1, Availability: ptr(true)}
	_, err := svc.Update(context.Background(), upd, utils.NewID())
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestProductService_Search(t *testing.T) {
	svc := newProductService(t)
	ctx := context.Background()
	owner := utils.NewID()

	for _, in := range []CreateProductInput{
		{Name: "Blue Widget", Description: "A blue widget for you", Price: 10, Availability: ptr(true)},
		{Name: "Red Widget", Description: "A red widget for you", Price: 25, Availability: ptr(false)},
		{Name: "Gadget", Description: "Not a widget at all", Price: 15, Availability: ptr(true)},
	} {
		_, err := svc.Create(ctx, in, owner)
		require.NoError(t, err)
	}

	got, err := svc.Search(ctx, SearchProductsInput{Name: ptr("widget"), MaxPrice: ptr(20.0)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Blue Widget", got[0].Name)

	got, err = svc.Search(ctx, SearchProductsInput{Availability: ptr(true)})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.Search(ctx, SearchProductsInput{})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = svc.Search(ctx, SearchProductsInput{MinPrice: ptr(30.0), MaxPrice: ptr(10.0)})
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.Search(ctx, SearchProductsInput{MinPrice: ptr(-1.0)})
	assert.True(t, errs.Is(err, errs.KindValidation))
}

func TestProductService_BulkByOwner(t *testing.T) {
	svc := newProductService(t)
	ctx := context.Background()
	owner, other := utils.NewID(), utils.NewID()
	admin := auth.Actor{ID: utils.NewID(), Role: "admin"}

	_, err := svc.Create(ctx, widget(), owner)
	require.NoError(t, err)
	_, err = svc.Create(ctx, widget(), owner)
	require.NoError(t, err)
	keep, err := svc.Create(ctx, widget(), other)
	require.NoError(t, err)

	_, err = svc.SoftDeleteByOwner(ctx, auth.Actor{ID: owner, Role: "user"}, owner)
	assert.True(t, errs.Is(err, errs.KindForbidden))

	_, err = svc.SoftDeleteByOwner(ctx, admin, "not-a-uuid")
	assert.True(t, errs.Is(err, errs.KindValidation))

	n, err := svc.SoftDeleteByOwner(ctx, admin, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = svc.SoftDeleteByOwner(ctx, admin, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)

	_, err = svc.Create(ctx, widget(), owner)
	assert.True(t, errs.Is(err, errs.KindForbidden))

	n, err = svc.RestoreByOwner(ctx, admin, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = svc.Create(ctx, widget(), owner)
	require.NoError(t, err)

	n, err = svc.RestoreByOwner(ctx, admin, utils.NewID())
	require.NoError(t, err)
	assert.Zero(t, n)
}
