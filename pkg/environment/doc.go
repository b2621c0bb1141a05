// Package environment resolves and propagates the deployment environment
// (dev, staging, prod) of the running process.
//
// The environment is derived, never stored: FromHost maps a host name to an
// Environment, Parse maps a configuration value. The result can be attached
// to a context with WithContext and read back with FromContext or queried
// with IsDevelopment, IsStaging and IsProduction.
//
// # Usage
//
//	import "github.com/restorelab/flagkit/pkg/environment"
//
//	env := environment.FromHost("garage-preview.example.app") // environment.Staging
//
// In HTTP servers either pin the environment or derive it per request:
//
//	handler = environment.Middleware(environment.Production)(mux)
//	handler = environment.HostMiddleware()(mux)
//
// For structured logging LoggerExtractor returns an "env" slog.Attr that can
// be registered with the logger package.
//
// # Error Handling
//
// Nothing in this package returns errors. FromHost always yields a value and
// unknown hosts resolve to Production.
package environment
