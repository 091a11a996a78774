package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

func Addr(host string, port int) string { return net.JoinHostPort(host, strconv.Itoa(port)) }

// BuildServer rt 同时作为读 header 的超时
func BuildServer(addr string, h http.Handler, rt, wt, it time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: rt,
		ReadTimeout:       rt,
		WriteTimeout:      wt,
		IdleTimeout:       it,
		MaxHeaderBytes:    1 << 20,
	}
}

// Run 阻塞到 ctx 结束或监听失败；ctx 结束后在 grace 内优雅关闭
func Run(ctx context.Context, srv *http.Server, l *zap.Logger, grace time.Duration) error {
	l = l.With(zap.String("addr", srv.Addr))
	errCh := make(chan error, 1)
	go func() {
		l.Info("http starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), grace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		l.Warn("http shutdown incomplete", zap.Error(err))
		return err
	}
	l.Info("http stopped gracefully")
	return nil
}
