// Package auth resolves caller identity for the compass backend.
//
// The identity provider is trusted as an opaque capability: it hands us
// HS256-signed JWTs whose subject claim is a stable user identifier.
// Verification yields an Identity or nothing; there is no local user
// table.
//
// # The gate asymmetry
//
// Mutations require a resolved identity and fail with ErrUnauthorized
// without one. Queries never fail on missing identity; they return
// empty results so anonymous browsing sees nothing rather than an error.
// Middleware therefore never rejects a request itself — it only attaches
// identity when a valid token is present.
//
// # Usage
//
//	verifier := auth.NewJWTVerifier(secret)
//	r.Use(auth.Middleware(verifier))
//
//	// in a handler:
//	caller := auth.FromContext(r.Context()) // nil for anonymous
//	svc.SaveMessage(ctx, caller, req)       // identity passed explicitly
//
// Services take the caller as an explicit parameter rather than digging
// it out of ambient state; context carriage is confined to the HTTP
// layer.
package auth
