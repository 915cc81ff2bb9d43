package middleware

import (
	"net/http"
	"time"

	"github.com/kbukum/hvacform/logger"
)

var quietPaths = map[string]bool{
	"/health": true,
	"/info":   true,
}

// RequestLogger logs every request with its status, duration and
// response size. Health checks are skipped.
func RequestLogger(log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if quietPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := record(w)
			next.ServeHTTP(rw, r)

			fields := map[string]interface{}{
				"method":              r.Method,
				"path":                r.URL.Path,
				"bytes":               rw.bytes,
				logger.FieldStatus:    rw.status,
				logger.FieldDuration:  time.Since(start).Milliseconds(),
				logger.FieldRequestID: r.Header.Get(RequestIDHeader),
			}
			switch {
			case rw.status >= 500:
				log.Error("request completed", fields)
			case rw.status >= 400:
				log.Warn("request completed", fields)
			default:
				log.Debug("request completed", fields)
			}
		})
	}
}
