package cookie

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/restorelab/flagkit/pkg/feature"
)

var _ feature.Storage = (*Store)(nil)

// Store keeps values in signed cookies of the current request.
// Each storage key becomes one cookie of the same name. Store needs the
// request exchange installed by Middleware in the context.
type Store struct {
	signer *Signer
	attrs  Attributes
}

// NewStore creates a cookie-backed storage.
func NewStore(signer *Signer, opts ...Option) *Store {
	attrs := defaultAttributes()
	for _, opt := range opts {
		opt(&attrs)
	}
	return &Store{signer: signer, attrs: attrs}
}

// Get reads the signed cookie named key. A missing cookie yields nil.
// Writes made earlier in the same request are visible.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return nil, err
	}

	if value, ok := ex.written(key); ok {
		return value, nil
	}

	c, err := ex.r.Cookie(key)
	if errors.Is(err, http.ErrNoCookie) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s.signer.Verify(c.Value)
}

// Set writes value as a signed cookie on the response.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}

	c := s.cookie(key, s.signer.Sign(value))
	if err := c.Valid(); err != nil {
		return err
	}
	http.SetCookie(ex.w, c)
	ex.record(key, slices.Clone(value))
	return nil
}

// Delete expires the cookie named key.
func (s *Store) Delete(ctx context.Context, key string) error {
	ex, err := exchangeFrom(ctx)
	if err != nil {
		return err
	}

	c := s.cookie(key, "")
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	http.SetCookie(ex.w, c)
	ex.record(key, nil)
	return nil
}

func (s *Store) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.attrs.Path,
		Domain:   s.attrs.Domain,
		MaxAge:   s.attrs.MaxAge,
		Secure:   s.attrs.Secure,
		HttpOnly: s.attrs.HttpOnly,
		SameSite: s.attrs.SameSite,
	}
}

type exchangeKey struct{}

// exchange is the request/response pair a Store reads from and writes to.
type exchange struct {
	w http.ResponseWriter
	r *http.Request

	mu      sync.Mutex
	pending map[string][]byte
}

func (e *exchange) record(key string, value []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[key] = value
}

func (e *exchange) written(key string) ([]byte, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v, ok := e.pending[key]
	return slices.Clone(v), ok
}

func exchangeFrom(ctx context.Context) (*exchange, error) {
	ex, ok := ctx.Value(exchangeKey{}).(*exchange)
	if !ok {
		return nil, ErrNoRequest
	}
	return ex, nil
}

// Middleware makes the request cookies and the response available to Store.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ex := &exchange{w: w, r: r, pending: make(map[string][]byte)}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), exchangeKey{}, ex)))
	})
}
