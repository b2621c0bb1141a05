// Package requestid correlates log records that belong to one HTTP request.
//
// Middleware reuses a well-formed X-Request-ID header from the client or
// generates a UUIDv7, stores it in the request context and echoes it in the
// response. LoggerExtractor plugs the id into pkg/logger so every record
// written with the request context carries a request_id attribute.
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware())
package requestid
