// Package middleware adapts eduAuth.Engine to plain net/http handlers.
//
//   - [Guard] reads "Authorization: Bearer", calls Engine.Authenticate and
//     stores the caller in the request context.
//   - [RequireRole] runs behind Guard and calls Engine.RequireRole.
//
// Rejections are written as the JSON failure envelope with the status from
// eduAuth.StatusCode. All auth decisions stay in the engine; this package
// never parses tokens or touches Redis itself. The gin surface in httpapi has
// its own equivalents.
package middleware
