// Package httpserver runs an http.Handler with graceful shutdown.
//
// Run blocks until the supplied context is cancelled, then calls
// http.Server.Shutdown bounded by the shutdown timeout. Callers usually
// derive that context from signal.NotifyContext. Config is loaded from the
// environment (HTTP_ADDR, HTTP_READ_TIMEOUT, ...) through pkg/config.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	err := srv.Run(ctx, router)
package httpserver
