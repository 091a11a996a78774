package service

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/core/errs"
	"product-user-services/internal/core/validate"
	"product-user-services/internal/domain"
	"product-user-services/internal/mail"
	"product-user-services/pkg/utils"
)

type CreateUserInput struct {
	Name     string `json:"name"     binding:"required,min=2,max=50"`
	Email    string `json:"email"    binding:"required,email,max=191"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

type UpdateUserInput struct {
	ID       string `json:"id"       binding:"required,uuid"`
	Name     string `json:"name"     binding:"required,min=2,max=50"`
	Email    string `json:"email"    binding:"required,email,max=191"`
	Role     string `json:"role"     binding:"required,oneof=admin user"`
	IsActive *bool  `json:"isActive" binding:"required"`
}

type ResetPasswordInput struct {
	Email       string `json:"email"       binding:"required,email"`
	Token       string `json:"token"       binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8,max=72"`
}

// Dispatcher 只暴露给 UserService 的级联执行能力
type Dispatcher interface {
	Dispatch(ctx context.Context, job *domain.CascadeJob) error
}

type UserServiceOptions struct {
	ActionTokenTTL time.Duration
	PublicBaseURL  string
}

type UserService struct {
	users      domain.UserStore
	dispatcher Dispatcher
	mailer     mail.Sender
	tokens     *auth.JWTer
	opts       UserServiceOptions
	log        *zap.Logger
	now        func() time.Time
}

func NewUserService(users domain.UserStore, d Dispatcher, m mail.Sender, tokens *auth.JWTer, opts UserServiceOptions, l *zap.Logger) *UserService {
	if opts.ActionTokenTTL <= 0 {
		opts.ActionTokenTTL = 24 * time.Hour
	}
	return &UserService{
		users:      users,
		dispatcher: d,
		mailer:     m,
		tokens:     tokens,
		opts:       opts,
		log:        l,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Create 公开注册：总是激活、邮箱未确认，不触发级联
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	in.Name, in.Email = strings.TrimSpace(in.Name), normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.newUser(ctx, in.Name, in.Email, in.Password, domain.RoleUser)
	if err != nil {
		return nil, err
	}
	s.sendConfirmation(ctx, u)
	return u, nil
}

func (s *UserService) newUser(ctx context.Context, name, email, password, role string) (*domain.User, error) {
	email = normalizeEmail(email)
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, errs.Internal("load user failed", err)
	}
	if existing != nil {
		return nil, errs.Invalid("email", "already taken")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, errs.Internal("hash password failed", err)
	}
	u := &domain.User{
		ID:            utils.NewID(),
		Email:         email,
		Name:          strings.TrimSpace(name),
		PasswordHash:  hash,
		Role:          role,
		IsActive:      true,
		SecurityStamp: utils.NewID(),
		Version:       1,
		CreatedAt:     s.now(),
	}
	if err := s.users.Add(ctx, u); err != nil {
		return nil, storeErr("create user failed", err)
	}
	return u, nil
}

// Update 先落库用户（连同 outbox 任务），再派发级联；级联失败不回滚用户更新
func (s *UserService) Update(ctx context.Context, in UpdateUserInput, actor auth.Actor) (*domain.User, error) {
	in.Name, in.Email = strings.TrimSpace(in.Name), normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, in.ID)
	if err != nil {
		return nil, errs.Internal("load user failed", err)
	}
	if u == nil {
		return nil, errs.NotFound("user not found")
	}

	wasActive := u.IsActive
	u.Name = in.Name
	u.Email = in.Email
	u.Role = in.Role
	u.IsActive = *in.IsActive
	now := s.now()
	if now.Before(u.CreatedAt) {
		now = u.CreatedAt
	}
	u.UpdatedAt = &now

	var job *domain.CascadeJob
	if action, ok := domain.Transition(wasActive, u.IsActive); ok {
		job = &domain.CascadeJob{
			ID:        utils.NewID(),
			UserID:    u.ID,
			Action:    action,
			ActorID:   actor.ID,
			ActorRole: actor.Role,
			Status:    domain.JobPending,
			CreatedAt: now,
		}
	}
	if err := s.users.Update(ctx, u, job); err != nil {
		return nil, storeErr("update user failed", err)
	}

	s.log.Info("user updated",
		zap.String("user_id", u.ID),
		zap.Bool("was_active", wasActive),
		zap.Bool("is_active", u.IsActive),
		zap.String("actor_id", actor.ID),
	)
	if job == nil {
		return u, nil
	}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		return u, err
	}
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	ok, err := s.users.Delete(ctx, id)
	if err != nil {
		return errs.Internal("delete user failed", err)
	}
	if !ok {
		return errs.NotFound("user not found")
	}
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return nil, errs.Internal("load user failed", err)
	}
	if u == nil {
		return nil, errs.NotFound("user not found")
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	us, err := s.users.List(ctx)
	if err != nil {
		return nil, errs.Internal("list users failed", err)
	}
	return us, nil
}

// Authenticate 失败原因统一 Unauthorized
func (s *UserService) Authenticate(ctx context.Context, email, password string) (string, *domain.User, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", nil, errs.Internal("load user failed", err)
	}
	if u == nil || !utils.CheckPassword(password, u.PasswordHash) {
		s.log.Warn("login rejected", zap.String("email", normalizeEmail(email)))
		return "", nil, errs.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		s.log.Warn("login rejected for inactive user", zap.String("user_id", u.ID))
		return "", nil, errs.Unauthorized("invalid credentials")
	}
	tok, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, errs.Internal("issue token failed", err)
	}
	return tok, u, nil
}

func (s *UserService) ConfirmEmail(ctx context.Context, userID, token string) error {
	if userID == "" || strings.TrimSpace(token) == "" {
		return errs.Invalid("token", "user id and token are required")
	}
	u, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	c, err := s.tokens.ParseAction(token, auth.PurposeEmailConfirm)
	if err != nil || c.UID != u.ID || c.Stamp != u.SecurityStamp {
		return errs.Invalid("token", "invalid or expired token")
	}
	if u.EmailConfirmed {
		return nil
	}
	u.EmailConfirmed = true
	return s.touch(ctx, u)
}

func (s *UserService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := validate.Engine().Var(email, "required,email"); err != nil {
		return errs.Invalid("email", "must be a valid email")
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return errs.Internal("load user failed", err)
	}
	if u == nil {
		return errs.NotFound("user not found")
	}
	tok, err := s.tokens.IssueAction(u.ID, auth.PurposePasswordReset, u.SecurityStamp, s.opts.ActionTokenTTL)
	if err != nil {
		return errs.Internal("issue token failed", err)
	}
	link := s.link("/api/v1/users/password-reset", url.Values{"email": {u.Email}, "token": {tok}})
	body := fmt.Sprintf(`Please reset your password by clicking this link: <a href="%s">link</a><br>Token: %s`,
		html.EscapeString(link), html.EscapeString(tok))
	if err := s.mailer.Send(ctx, u.Email, "Reset your password", body); err != nil {
		return errs.Internal("send reset email failed", err)
	}
	return nil
}

// ResetPassword 成功后轮换 SecurityStamp，旧令牌全部失效
func (s *UserService) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.Email = normalizeEmail(in.Email)
	if err := validate.Struct(in); err != nil {
		return err
	}
	u, err := s.users.GetByEmail(ctx, in.Email)
	if err != nil {
		return errs.Internal("load user failed", err)
	}
	if u == nil {
		return errs.NotFound("user not found")
	}
	c, err := s.tokens.ParseAction(in.Token, auth.PurposePasswordReset)
	if err != nil || c.UID != u.ID || c.Stamp != u.SecurityStamp {
		return errs.Invalid("token", "invalid or expired token")
	}
	hash, err := utils.HashPassword(in.NewPassword)
	if err != nil {
		return errs.Internal("hash password failed", err)
	}
	u.PasswordHash = hash
	u.SecurityStamp = utils.NewID()
	return s.touch(ctx, u)
}

// SeedAdmin 启动时确保存在一个管理员；邮箱已存在则不做任何事
func (s *UserService) SeedAdmin(ctx context.Context, email, password, name string) (bool, error) {
	if email == "" || password == "" {
		return false, nil
	}
	if name == "" {
		name = "Administrator"
	}
	existing, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return false, errs.Internal("load user failed", err)
	}
	if existing != nil {
		return false, nil
	}
	u, err := s.newUser(ctx, name, email, password, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	u.EmailConfirmed = true
	if err := s.touch(ctx, u); err != nil {
		return false, err
	}
	s.log.Info("admin seeded", zap.String("user_id", u.ID), zap.String("email", u.Email))
	return true, nil
}

func (s *UserService) touch(ctx context.Context, u *domain.User) error {
	now := s.now()
	if now.Before(u.CreatedAt) {
		now = u.CreatedAt
	}
	u.UpdatedAt = &now
	if err := s.users.Update(ctx, u, nil); err != nil {
		return storeErr("update user failed", err)
	}
	return nil
}

func (s *UserService) sendConfirmation(ctx context.Context, u *domain.User) {
	tok, err := s.tokens.IssueAction(u.ID, auth.PurposeEmailConfirm, u.SecurityStamp, s.opts.ActionTokenTTL)
	if err != nil {
		s.log.Error("issue confirmation token", zap.String("user_id", u.ID), zap.Error(err))
		return
	}
	link := s.link("/api/v1/users/confirm-email", url.Values{"userId": {u.ID}, "token": {tok}})
	body := fmt.Sprintf(`Please confirm your account by clicking this link: <a href="%s">link</a>`, html.EscapeString(link))
	if err := s.mailer.Send(ctx, u.Email, "Confirm your email", body); err != nil {
		s.log.Error("send confirmation email", zap.String("user_id", u.ID), zap.Error(err))
	}
}

func (s *UserService) link(path string, q url.Values) string {
	return strings.TrimRight(s.opts.PublicBaseURL, "/") + path + "?" + q.Encode()
}
