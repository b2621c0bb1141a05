package cookie

import "net/http"

// Attributes are the cookie attributes written by a Store.
type Attributes struct {
	Path     string
	Domain   string
	MaxAge   int
	Secure   bool
	HttpOnly bool
	SameSite http.SameSite
}

func defaultAttributes() Attributes {
	return Attributes{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

type Option func(*Attributes)

func WithPath(path string) Option {
	return func(a *Attributes) { a.Path = path }
}

func WithDomain(domain string) Option {
	return func(a *Attributes) { a.Domain = domain }
}

// WithMaxAge sets the cookie lifetime in seconds. Zero makes it a session cookie.
func WithMaxAge(seconds int) Option {
	return func(a *Attributes) { a.MaxAge = seconds }
}

func WithSecure(secure bool) Option {
	return func(a *Attributes) { a.Secure = secure }
}

func WithHTTPOnly(httpOnly bool) Option {
	return func(a *Attributes) { a.HttpOnly = httpOnly }
}

func WithSameSite(sameSite http.SameSite) Option {
	return func(a *Attributes) { a.SameSite = sameSite }
}
