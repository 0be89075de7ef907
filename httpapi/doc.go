// Package httpapi exposes an eduAuth.Engine as the /api/auth REST surface on
// gin.
//
// Every response uses one of two envelopes:
//
//	{"success": true, "message": "...", "data": {...}}
//	{"success": false, "status": "fail" | "error", "message": "..."}
//
// Token responses also set the x-access-token and x-user-id headers. The
// refresh token travels in the httpOnly refreshToken cookie, or in the body
// and the X-Refresh-Token header when the router runs with
// RefreshTransportHeader.
package httpapi
