package user

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

type Module struct {
	svc *service.UserService
	log *zap.Logger
}

func NewModule(svc *service.UserService, l *zap.Logger) *Module {
	return &Module{svc: svc, log: l}
}

type loginIn struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginOut struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

type confirmQ struct {
	UserID string `form:"userId"`
	Token  string `form:"token"`
}

type resetRequestIn struct {
	Email string `json:"email"`
}

// MountPublic 注册、登录、邮箱确认、重置密码
func (m *Module) MountPublic(g *gin.RouterGroup) {
	e := ez.New(g, m.log)

	ez.RegisterAction(e, ez.Action[service.CreateUserInput, *domain.User]{
		Method: http.MethodPost,
		Path:   "/users",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *service.CreateUserInput) (*domain.User, error) {
			return m.svc.Create(c.Request.Context(), *in)
		},
	})

	ez.RegisterAction(e, ez.Action[loginIn, loginOut]{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (loginOut, error) {
			tok, u, err := m.svc.Authenticate(c.Request.Context(), in.Email, in.Password)
			if err != nil {
				return loginOut{}, err
			}
			return loginOut{Token: tok, User: u}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[confirmQ, gin.H]{
		Method: http.MethodGet,
		Path:   "/users/confirm-email",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *confirmQ) (gin.H, error) {
			if err := m.svc.ConfirmEmail(c.Request.Context(), in.UserID, in.Token); err != nil {
				return nil, err
			}
			return gin.H{"userId": in.UserID, "emailConfirmed": true}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[resetRequestIn, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/password-reset/request",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *resetRequestIn) (gin.H, error) {
			if err := m.svc.RequestPasswordReset(c.Request.Context(), in.Email); err != nil {
				return nil, err
			}
			return gin.H{"sent": true}, nil
		},
	})

	ez.RegisterAction(e, ez.Action[service.ResetPasswordInput, gin.H]{
		Method: http.MethodPost,
		Path:   "/users/password-reset",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *service.ResetPasswordInput) (gin.H, error) {
			if err := m.svc.ResetPassword(c.Request.Context(), *in); err != nil {
				return nil, err
			}
			return gin.H{"reset": true}, nil
		},
	})
}

func (m *Module) MountAuth(g *gin.RouterGroup) {
	e := ez.New(g, m.log)

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/me",
		Binder: ez.BindNone,
		Auth:   true,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			a, ok := auth.ActorFrom(c.Request.Context())
			if !ok {
				return nil, errs.Unauthorized("unauthorized")
			}
			return m.svc.GetByID(c.Request.Context(), a.ID)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
		Method: http.MethodGet,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Roles:  []string{domain.RoleAdmin, domain.RoleUser},
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return m.svc.GetByID(c.Request.Context(), c.Param("id"))
		},
	})
}

func (m *Module) MountAdmin(g *gin.RouterGroup) {
	e := ez.New(g, m.log)

	ez.RegisterAction(e, ez.Action[struct{}, []domain.User]{
		Method: http.MethodGet,
		Path:   "/users",
		Binder: ez.BindNone,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.User, error) {
			return m.svc.List(c.Request.Context())
		},
	})

	// 级联失败时返回 202 + 已更新的用户
	ez.RegisterAction(e, ez.Action[service.UpdateUserInput, *domain.User]{
		Method: http.MethodPut,
		Path:   "/users/:id",
		Binder: ez.BindJSON,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, in *service.UpdateUserInput) (*domain.User, error) {
			id := c.Param("id")
			if in.ID == "" {
				in.ID = id
			}
			if in.ID != id {
				return nil, errs.Conflict("id in path and body differ")
			}
			a, _ := auth.ActorFrom(c.Request.Context())
			return m.svc.Update(c.Request.Context(), *in, a)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, gin.H]{
		Method: http.MethodDelete,
		Path:   "/users/:id",
		Binder: ez.BindNone,
		Roles:  []string{domain.RoleAdmin},
		Handler: func(c *gin.Context, _ *struct{}) (gin.H, error) {
			id := c.Param("id")
			if err := m.svc.Delete(c.Request.Context(), id); err != nil {
				return nil, err
			}
			return gin.H{"id": id}, nil
		},
	})
}
