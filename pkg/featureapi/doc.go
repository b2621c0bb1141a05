// Package featureapi exposes a feature.Engine over HTTP for debugging and
// administration.
//
// Responses use the envelope {"data": ..., "error": {"code", "message"}}.
// Requests run in production unless WithEnvironment pins another environment
// or WithHostEnvironment derives it from the Host header. Override endpoints only change state in development;
// elsewhere they answer 403 with code overrides_disabled.
//
//	api := featureapi.New(engine, featureapi.WithLogger(log))
//	srv.Run(ctx, api.Handler())
package featureapi
