// Package handlers contains reusable pieces of the HTTP interface: health
// checking and middleware.
//
// # Health Checks
//
// Named checks run in parallel. Required checks decide readiness, optional
// ones only mark the service degraded:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("store", handlers.NewPingCheck(store))
//	checker.AddOptionalCheck("object_storage", handlers.NewBreakerCheck(storageClient.State))
//
//	status := checker.Check(ctx)
//	if !status.Ready {
//	    // take the instance out of rotation
//	}
//
// # Middleware
//
// Middleware is plain func(http.Handler) http.Handler. Chain composes it
// with the first entry outermost:
//
//	h := handlers.ChainHandler(mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	)
package handlers
