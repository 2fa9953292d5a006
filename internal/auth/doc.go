// Package auth provides the bearer-token guard for protected routes.
//
// The guard extracts the bearer token from the Authorization header and
// validates it against the auth service's introspection endpoint on every
// request. Results are never cached. Introspection is retried on network
// failures only; an HTTP error status from the auth service is final.
//
// # Usage
//
//	client, err := auth.NewIntrospectionClient(&auth.ClientConfig{
//	    Endpoint:   "http://auth:8001/auth/introspect",
//	    HTTPClient: pool.Client(),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	guard := auth.NewGuard(client, auth.WithGuardMetrics(metrics))
//	identity, err := guard.Authenticate(ctx, r.Header.Get("Authorization"))
//	if err != nil {
//	    // errors.Is(err, util.ErrUnauthorized)
//	}
package auth
