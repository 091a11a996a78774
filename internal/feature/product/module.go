package product

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/errs"
	"product-user-services/internal/domain"
	"product-user-services/internal/service"
	"product-user-services/internal/transport/http/ez"
)

// Module 商品服务的 HTTP 接口，全部要求登录
type Module struct {
	svc *service.ProductService
	log *zap.Logger
}

func NewModule(svc *service.ProductService, l *zap.Logger) *Module {
	return &Module{svc: svc, log: l}
}

func actorOf(c *gin.Context) auth.Actor {
	a, _ := auth.ActorFrom(c.Request.Context())
	return a
}

func (m *Module) MountAuth(g *gin.RouterGroup) {
	e := ez.New(g.Group("/products"), m.log)

	ez.RegisterAction(e, ez.Action[struct{}, []domain.Product]{
		Method: http.MethodGet,
		Path:   "",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Product, error) {
			return m.svc.List(c.Request.Context())
		},
	})

	ez.RegisterAction(e, ez.Action[service.SearchProductsInput, []domain.Product]{
		Method: http.MethodGet,
		Path:   "/search",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *service.SearchProductsInput) ([]domain.Product, error) {
			return m.svc.Search(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Product]{
		Method: http.MethodGet,
		Path:   "/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Product, error) {
			return m.svc.GetByID(c.Request.Context(), c.Param("id"))
		},
	})

	ez.RegisterAction(e, ez.Action[service.CreateProductInput, *domain.Product]{
		Method: http.MethodPost,
		Path:   "",
		Binder: ez.BindJSON,
		Auth:   true,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.CreateProductInput) (*domain.Product, error) {
			return m.svc.Create(c.Request.Context(), *in, actorOf(c).ID)
		},
	})

	ez.RegisterAction(e, ez.Action[service.UpdateProductInput, *domain.Product]{
		Method: http.MethodPut,
		Path:   "/:id",
		Binder: ez.BindJSON,
		Auth:   true,
		Handler: func(c *gin.Context, in *service.UpdateProductInput) (*domain.Product, error) {
			id := c.Param("id")
			if in.ID == "" {
				in.ID = id
			}
			if in.ID != id {
				return nil, errs.Conflict("id in path and body differ")
			}
			return m.svc.Update(c.Request.Context(), *in, actorOf(c).ID)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/:id",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := m.svc.Delete(c.Request.Context(), id, actorOf(c).ID); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})
}

// MountAdmin 级联入口，用户服务在用户停用 / 恢复时调用
func (m *Module) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g.Group("/products"), m.log)

	bulk := func(path string, op func(*gin.Context, auth.Actor, string) (int64, error)) {
		ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
			Method: http.MethodPost,
			Path:   path + "/:userId",
			Binder: ez.BindNone,
			Roles:  []string{domain.RoleAdmin},
			Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
				uid := c.Param("userId")
				n, err := op(c, actorOf(c), uid)
				if err != nil {
					return nil, err
				}
				return gin.H{"userId": uid, "affected": n}, nil
			},
		})
	}
	bulk("/soft-delete-by-owner", func(c *gin.Context, a auth.Actor, uid string) (int64, error) {
		return m.svc.SoftDeleteByOwner(c.Request.Context(), a, uid)
	})
	bulk("/restore-by-owner", func(c *gin.Context, a auth.Actor, uid string) (int64, error) {
		return m.svc.RestoreByOwner(c.Request.Context(), a, uid)
	})
}
