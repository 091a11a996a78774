package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	PurposeEmailConfirm  = "email_confirm"
	PurposePasswordReset = "password_reset"
)

var (
	ErrWrongPurpose = errors.New("token purpose mismatch")
	ErrInvalidToken = errors.New("invalid token")
)

type Claims struct {
	UID     string `json:"uid"`
	Role    string `json:"role"` // "user" or "admin"
	Purpose string `json:"pur,omitempty"`
	Stamp   string `json:"stp,omitempty"`
	jwt.RegisteredClaims
}

type JWTer struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Issue 访问令牌
func (j *JWTer) Issue(uid, role string) (string, error) {
	return j.sign(Claims{UID: uid, Role: role}, j.TTL)
}

// IssueAction 一次性用途令牌（邮箱确认、重置密码）；stamp 变化后旧令牌即失效
func (j *JWTer) IssueAction(uid, purpose, stamp string, ttl time.Duration) (string, error) {
	return j.sign(Claims{UID: uid, Purpose: purpose, Stamp: stamp}, ttl)
}

func (j *JWTer) sign(c Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	c.Issuer = j.Issuer
	c.Subject = c.UID
	c.ID = uuid.NewString()
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(j.Secret)
}

var parser = jwt.NewParser(
	jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	jwt.WithExpirationRequired(),
	jwt.WithLeeway(time.Minute),
)

func (j *JWTer) parse(raw string) (*Claims, error) {
	c := &Claims{}
	if _, err := parser.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) { return j.Secret, nil }); err != nil {
		return nil, err
	}
	if c.Issuer != j.Issuer || c.UID == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// Parse 只接受访问令牌
func (j *JWTer) Parse(tokenStr string) (*Claims, error) {
	c, err := j.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Purpose != "" {
		return nil, ErrWrongPurpose
	}
	return c, nil
}

func (j *JWTer) ParseAction(tokenStr, purpose string) (*Claims, error) {
	c, err := j.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if c.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return c, nil
}
