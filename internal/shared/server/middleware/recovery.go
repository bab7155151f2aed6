package middleware

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"

	"docqr-backend/internal/shared/server/respond"
	"docqr-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500. When the client has already
// gone away nothing is written.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if http.ErrAbortHandler == rec {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			gone := isBrokenPipe(err)

			telemetry.Logger().Error().
				Err(err).
				Str("request_id", RequestIDFromContext(c)).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Bool("client_gone", gone).
				Bytes("stack", debug.Stack()).
				Msg("http.panic")

			if gone || c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "unexpected server error", nil)
		}()
		c.Next()
	}
}

func isBrokenPipe(err error) bool {
	var opErr *net.OpError
	if !errors.As(err, &opErr) {
		return false
	}
	var sysErr *os.SyscallError
	if errors.As(opErr.Err, &sysErr) {
		return errors.Is(sysErr.Err, syscall.EPIPE) || errors.Is(sysErr.Err, syscall.ECONNRESET)
	}
	return false
}
