// Package router provides request routing for the API Gateway.
//
// Routes are declared as a literal path ("/search") or a single wildcard
// tail ("/reviews/*") relative to the API prefix, with a method set, an
// upstream name and an upstream path template. The table is compiled once
// at startup and never changes, so lookups take no locks.
//
//	r, err := router.New("/api", cfg.Routes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := r.Match(req.Method, req.URL.EscapedPath())
//	if err != nil {
//	    // errors.Is(err, util.ErrNotFound)
//	}
package router
