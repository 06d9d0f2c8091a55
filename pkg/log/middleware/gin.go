package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"moff.io/wallet-bridge/pkg/errors"
	"moff.io/wallet-bridge/pkg/log"
)

type httpInfo struct {
	Headers       map[string]string `json:"headers"`
	Method        string            `json:"method"`
	RequestAPI    string            `json:"request_api,omitempty"`
	RemoteAddr    string            `json:"remote_addr,omitempty"`
	Status        int               `json:"status"`
	ExecutionTime string            `json:"execution_time,omitempty"`
}

func (in *httpInfo) String() string {
	return fmt.Sprintf("%v %v %v from %v in %v", in.Method, in.RequestAPI, in.Status, in.RemoteAddr, in.ExecutionTime)
}

// RecoveredHTTPLog logs every request once it finishes and turns handler panics
// into reported errors. Upgraded websocket requests are logged when the socket closes.
func RecoveredHTTPLog() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				log.Error(errors.ErrorfAndReport("%v", r))
				if !ctx.Writer.Written() {
					ctx.AbortWithStatus(http.StatusInternalServerError)
				}
			}
			logHTTP(ctx, start)
		}()
		ctx.Next()
	}
}

func logHTTP(ctx *gin.Context, start time.Time) {
	info := &httpInfo{
		Headers:       requestHeaderFilter(ctx.Request.Header),
		Method:        ctx.Request.Method,
		RequestAPI:    ctx.Request.RequestURI,
		RemoteAddr:    ctx.ClientIP(),
		Status:        ctx.Writer.Status(),
		ExecutionTime: fmt.Sprintf("%vms", time.Since(start).Milliseconds()),
	}
	switch {
	case info.Status >= http.StatusInternalServerError:
		log.Error(info)
	case info.Status >= http.StatusBadRequest:
		log.Warn(info)
	default:
		log.Debug(info)
	}
}

var excludedHeaders = map[string]bool{
	"token":                 true,
	"access-token":          true,
	"authorization":         true,
	"sec-websocket-key":     true,
	"sec-websocket-accept":  true,
	"sec-websocket-version": true,
}

func requestHeaderFilter(headers map[string][]string) map[string]string {
	filtered := make(map[string]string)
	for k, v := range headers {
		k = strings.ToLower(k)
		if excludedHeaders[k] {
			continue
		}
		filtered[k] = strings.Join(v, ";")
	}
	return filtered
}
