package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// Header is the canonical request id header.
const Header = "X-Request-ID"

const maxIDLength = 128

var validID = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Generator produces a fresh request id.
type Generator func() string

// Option configures Middleware.
type Option func(*middleware)

// WithHeader reads and echoes the id under name instead of Header.
func WithHeader(name string) Option {
	return func(m *middleware) {
		if name != "" {
			m.header = name
		}
	}
}

// WithGenerator replaces the default UUIDv7 generator.
func WithGenerator(g Generator) Option {
	return func(m *middleware) {
		if g != nil {
			m.generate = g
		}
	}
}

type middleware struct {
	header   string
	generate Generator
}

// NewUUID returns a time-ordered UUIDv7, falling back to a random UUIDv4.
func NewUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Middleware attaches a request id to every request. A valid client-supplied
// id is reused, anything else is replaced. The id is echoed in the response.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	m := &middleware{header: Header, generate: NewUUID}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(m.header)
			if !Valid(id) {
				id = m.generate()
			}
			w.Header().Set(m.header, id)
			next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), id)))
		})
	}
}

// Valid reports whether id is acceptable as a client-supplied request id.
func Valid(id string) bool {
	return id != "" && len(id) <= maxIDLength && validID.MatchString(id)
}
