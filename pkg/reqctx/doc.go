// Package reqctx carries request-scoped values through context.Context so
// services, the authorization audit log and event publishing can read them
// without depending on fiber.
//
// Three values are stored, each by a different middleware:
//
//   - RequestMeta, by RequestID, on every request
//   - AuthClaims, by AuthRequired, once a token and its session check out
//   - CenterScope, by CenterHeader or CenterContext, on tenant routes
//
// Handlers pass c.Context() down; NATS workers start from a fresh context
// and see none of them.
package reqctx
