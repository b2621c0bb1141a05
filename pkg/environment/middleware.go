package environment

import "net/http"

// Middleware returns a middleware that attaches the given environment to all
// request contexts.
func Middleware(env Environment) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithContext(r.Context(), env)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// HostMiddleware resolves the environment from the request host on every
// request using FromHost.
func HostMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithContext(r.Context(), FromHost(r.Host))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
