// Package httputil provides the JSON response writers, request parsing helpers
// and middleware shared by the depgraph HTTP handlers.
//
//	httputil.WriteSuccess(w, summary)
//	httputil.WriteNotFoundError(w, "node not found")
//
//	depth, err := httputil.ParseQueryInt(r, "depth", 3)
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(log),
//		httputil.RecoveryMiddleware(log),
//	)(router)
package httputil
