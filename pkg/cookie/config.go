package cookie

import (
	"fmt"
	"net/http"
	"strings"
)

// Config holds cookie settings loaded from the environment.
type Config struct {
	Secrets  []string `env:"COOKIE_SECRETS" envSeparator:","`
	Path     string   `env:"COOKIE_PATH" envDefault:"/"`
	Domain   string   `env:"COOKIE_DOMAIN"`
	MaxAge   int      `env:"COOKIE_MAX_AGE" envDefault:"2592000"`
	Secure   bool     `env:"COOKIE_SECURE" envDefault:"false"`
	HttpOnly bool     `env:"COOKIE_HTTP_ONLY" envDefault:"true"`
	SameSite string   `env:"COOKIE_SAME_SITE" envDefault:"lax"`
}

// ParseSameSite maps "lax", "strict", "none" and "default" to http.SameSite.
func ParseSameSite(s string) (http.SameSite, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lax", "":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	case "default":
		return http.SameSiteDefaultMode, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidSameSite, s)
}

// NewStoreFromConfig builds a Store from cfg. Extra options apply last.
func NewStoreFromConfig(cfg Config, opts ...Option) (*Store, error) {
	secrets := make([]string, 0, len(cfg.Secrets))
	for _, s := range cfg.Secrets {
		secrets = append(secrets, strings.TrimSpace(s))
	}
	signer, err := NewSigner(secrets...)
	if err != nil {
		return nil, err
	}

	sameSite, err := ParseSameSite(cfg.SameSite)
	if err != nil {
		return nil, err
	}

	base := []Option{
		WithMaxAge(cfg.MaxAge),
		WithSecure(cfg.Secure),
		WithHTTPOnly(cfg.HttpOnly),
		WithSameSite(sameSite),
	}
	if cfg.Path != "" {
		base = append(base, WithPath(cfg.Path))
	}
	if cfg.Domain != "" {
		base = append(base, WithDomain(cfg.Domain))
	}
	return NewStore(signer, append(base, opts...)...), nil
}
