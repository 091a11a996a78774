package ez

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"

	"product-user-services/internal/core/errs"
	mdw "product-user-services/internal/transport/http/middleware"
	resp "product-user-services/internal/transport/http/response"
)

// EZ 路由分组 + 日志的轻封装
type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ { return EZ{g: g, log: l} }

// 绑定方式：只负责解码，校验交给 service
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON body 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method  string   // "GET" | "POST" | "PUT" | "DELETE"
	Path    string   // 例："/auth/login"、"/products/:id"
	Binder  Binder   // 绑定方式
	Auth    bool     // 是否要求登录（检查 userId）
	Roles   []string // 限定角色（可选）
	Status  int      // 成功时的 HTTP 状态，默认 200
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		// 1) 鉴权/角色
		if a.Auth || len(a.Roles) > 0 {
			if c.GetString(mdw.KeyUserID) == "" {
				resp.Abort(c, resp.CodeUnauthorized, "unauthorized")
				return
			}
			if len(a.Roles) > 0 && !slices.Contains(a.Roles, c.GetString(mdw.KeyRole)) {
				resp.Abort(c, resp.CodeForbidden, "forbidden")
				return
			}
		}

		// 2) 解码入参
		var in I
		if err := bind(c, a.Binder, &in); err != nil {
			Fail(c, e.log, err, nil)
			return
		}

		// 3) 执行 + 统一错误映射
		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, e.log, err, out)
			return
		}
		c.JSON(status, resp.OK(out))
	}

	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, h)
	case http.MethodPut:
		e.g.PUT(a.Path, h)
	case http.MethodDelete:
		e.g.DELETE(a.Path, h)
	default: // 默认 POST
		e.g.POST(a.Path, h)
	}
}

func bind(c *gin.Context, b Binder, in any) error {
	switch b {
	case BindJSON:
		dec := json.NewDecoder(c.Request.Body)
		if err := dec.Decode(in); err != nil {
			if errors.Is(err, io.EOF) {
				return errs.Invalid("body", "is required")
			}
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				return errs.Invalid("body", "too large")
			}
			return errs.Invalid("body", "malformed JSON")
		}
	case BindQuery:
		if err := binding.MapFormWithTag(in, c.Request.URL.Query(), "form"); err != nil {
			return errs.Invalid("query", err.Error())
		}
	}
	return nil
}

// Status errs.Kind -> HTTP 状态
func Status(k errs.Kind) int {
	switch k {
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUnauthorized:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindCascade:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

// Fail 写错误信封；级联失败时 data 仍返回已生效的结果
func Fail(c *gin.Context, l *zap.Logger, err error, data any) {
	e, ok := errs.As(err)
	if !ok {
		e = errs.Internal("internal error", err)
	}
	code := Status(e.Kind)

	switch e.Kind {
	case errs.KindInternal:
		l.Error("request failed",
			zap.String("rid", c.GetString(mdw.KeyRequestID)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		resp.Abort(c, code, "internal error")
	case errs.KindValidation:
		c.AbortWithStatusJSON(code, resp.ErrorWith(code, "validation failed", e.Fields))
	case errs.KindCascade:
		l.Warn("request applied with pending cascade",
			zap.String("rid", c.GetString(mdw.KeyRequestID)),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(code, resp.ErrorWith(code, e.Error(), data))
	default:
		resp.Abort(c, code, e.Msg)
	}
}
