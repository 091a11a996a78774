package productapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"product-user-services/internal/core/auth"
	"product-user-services/internal/retry"
)

var ErrNoCredentials = errors.New("no bearer token or actor in context")

// TokenIssuer 没有可转发的令牌时，为任务发起人重新签发
type TokenIssuer interface {
	Issue(uid, role string) (string, error)
}

// Client 调用商品服务的 owner 级批量接口
type Client struct {
	base   string
	hc     *http.Client
	tokens TokenIssuer
	log    *zap.Logger
}

func New(baseURL string, timeout time.Duration, tokens TokenIssuer, l *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		base:   strings.TrimRight(baseURL, "/"),
		hc:     &http.Client{Timeout: timeout},
		tokens: tokens,
		log:    l,
	}
}

func (c *Client) SoftDeleteByOwner(ctx context.Context, userID string) error {
	return c.post(ctx, "soft-delete-by-owner", userID)
}

func (c *Client) RestoreByOwner(ctx context.Context, userID string) error {
	return c.post(ctx, "restore-by-owner", userID)
}

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		Affected int64 `json:"affected"`
	} `json:"data"`
}

func (c *Client) post(ctx context.Context, op, userID string) error {
	token, err := c.bearer(ctx)
	if err != nil {
		return retry.Permanent(err)
	}
	endpoint := fmt.Sprintf("%s/api/v1/products/%s/%s", c.base, op, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("products %s: %w", op, err)
	}
	defer resp.Body.Close()

	env, err := readEnvelope(resp.Body)
	if err != nil {
		c.log.Debug("products response not an envelope",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.Error(err),
		)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		c.log.Debug("products cascade applied",
			zap.String("op", op),
			zap.String("user_id", userID),
			zap.Int64("affected", env.Data.Affected),
		)
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		// 4xx 重试也不会成功
		return retry.Permanent(&StatusError{Op: op, Status: resp.StatusCode, Msg: env.Msg})
	default:
		return &StatusError{Op: op, Status: resp.StatusCode, Msg: env.Msg}
	}
}

// readEnvelope 非 JSON 响应（网关错误页等）把正文截断后放进 Msg
func readEnvelope(r io.Reader) (envelope, error) {
	var env envelope
	body, err := io.ReadAll(io.LimitReader(r, 64<<10))
	if err != nil {
		return env, fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, &env); err != nil {
		env.Msg = strings.TrimSpace(string(body[:min(len(body), 200)]))
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

func (c *Client) bearer(ctx context.Context) (string, error) {
	if tok := auth.BearerFrom(ctx); tok != "" {
		return tok, nil
	}
	actor, ok := auth.ActorFrom(ctx)
	if !ok || c.tokens == nil {
		return "", ErrNoCredentials
	}
	return c.tokens.Issue(actor.ID, actor.Role)
}

type StatusError struct {
	Op     string
	Status int
	Msg    string
}

func (e *StatusError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("products %s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("products %s: status %d: %s", e.Op, e.Status, e.Msg)
}
