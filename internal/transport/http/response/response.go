package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// 失败 code 与 HTTP 状态一致；成功统一 CodeOK
const (
	CodeOK           = 0
	CodeAccepted     = http.StatusAccepted
	CodeBadRequest   = http.StatusBadRequest
	CodeUnauthorized = http.StatusUnauthorized
	CodeForbidden    = http.StatusForbidden
	CodeNotFound     = http.StatusNotFound
	CodeConflict     = http.StatusConflict
	CodeTooMany      = http.StatusTooManyRequests
	CodeServerError  = http.StatusInternalServerError
	CodeUnavailable  = http.StatusServiceUnavailable
	CodeTimeout      = http.StatusGatewayTimeout
)

// Resp 统一信封，data 永远不是 null
type Resp struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

// Message code 的默认文案
func Message(code int) string {
	if code == CodeOK {
		return "OK"
	}
	return http.StatusText(code)
}

func New(code int, msg string, data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	if msg == "" {
		msg = Message(code)
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data any) Resp { return New(CodeOK, "", data) }

func Error(code int, msg string) Resp { return New(code, msg, nil) }

// ErrorWith 附带 data，例如字段级校验错误、级联失败时的最新用户
func ErrorWith(code int, msg string, data any) Resp { return New(code, msg, data) }

func Abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, Error(code, msg))
}
