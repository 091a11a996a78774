package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJWTer() *JWTer {
	return &JWTer{Secret: []byte("test-secret"), Issuer: "test", TTL: time.Minute}
}

func TestIssueAndParse(t *testing.T) {
	j := newJWTer()
	tok, err := j.Issue("u-1", "admin")
	require.NoError(t, err)

	c, err := j.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UID)
	assert.Equal(t, "admin", c.Role)
	assert.Equal(t, "u-1", c.Subject)

	again, err := j.Issue("u-1", "admin")
	require.NoError(t, err)
	c2, err := j.Parse(again)
	require.NoError(t, err)
	assert.NotEqual(t, c.ID, c2.ID)
}

func TestParseRejectsOtherSecretAndIssuer(t *testing.T) {
	tok, err := newJWTer().Issue("u-1", "user")
	require.NoError(t, err)

	_, err = (&JWTer{Secret: []byte("other"), Issuer: "test", TTL: time.Minute}).Parse(tok)
	assert.Error(t, err)
	_, err = (&JWTer{Secret: []byte("test-secret"), Issuer: "else", TTL: time.Minute}).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpired(t *testing.T) {
	j := &JWTer{Secret: []byte("s"), Issuer: "test", TTL: -2 * time.Minute}
	tok, err := j.Issue("u-1", "user")
	require.NoError(t, err)
	_, err = j.Parse(tok)
	assert.Error(t, err)
}

func TestActionTokensAreNotAccessTokens(t *testing.T) {
	j := newJWTer()
	tok, err := j.IssueAction("u-1", PurposePasswordReset, "stamp-1", time.Hour)
	require.NoError(t, err)

	_, err = j.Parse(tok)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	_, err = j.ParseAction(tok, PurposeEmailConfirm)
	assert.ErrorIs(t, err, ErrWrongPurpose)

	c, err := j.ParseAction(tok, PurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "stamp-1", c.Stamp)

	access, err := j.Issue("u-1", "user")
	require.NoError(t, err)
	_, err = j.ParseAction(access, PurposePasswordReset)
	assert.ErrorIs(t, err, ErrWrongPurpose)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	_, ok := ActorFrom(ctx)
	assert.False(t, ok)
	assert.Empty(t, BearerFrom(ctx))

	ctx = WithBearer(WithActor(ctx, Actor{ID: "a-1", Role: "admin"}), "tok")
	a, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, "a-1", a.ID)
	assert.Equal(t, "tok", BearerFrom(ctx))
}
