// Package cookie persists small values in HMAC-signed HTTP cookies.
//
// Store implements feature.Storage, so developer overrides for the HTTP API
// live with the browser that set them instead of on the server. Store reads
// and writes through the request exchange installed by Middleware:
//
//	signer, _ := cookie.NewSigner(secret)
//	store := cookie.NewStore(signer, cookie.WithSecure(true))
//	engine, _ := feature.NewEngine(reg, feature.WithOverrideStorage(store))
//	r.Use(cookie.Middleware)
//
// Values are signed, not encrypted. A cookie with a bad signature reads as an
// error, which the override layer treats as "no overrides".
package cookie
