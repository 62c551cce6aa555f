package server

import (
	"log"
	"net/http"
	"runtime/debug"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

func applyMiddlewares(handler http.Handler, middlewares []Middleware) http.Handler {
	if handler == nil {
		return nil
	}
	wrapped := handler
	for i := len(middlewares) - 1; i >= 0; i-- {
		if middlewares[i] == nil {
			continue
		}
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

// recoveryMiddleware turns a handler panic into a generic 500 response.
func recoveryMiddleware(logger *log.Logger) Middleware {
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		if next == nil {
			return nil
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Printf("panic method=%s path=%s err=%v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
					writeInternalError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
