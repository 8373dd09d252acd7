// Package httpserver wraps net/http with graceful shutdown, configurable
// timeouts, an access log middleware and a health-check handler.
//
// Run blocks until its context is canceled, then shuts down with the
// configured deadline, which makes it a natural errgroup member:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// HealthCheckHandler answers liveness probes without checks and readiness
// probes when given named dependency checks such as pg.Healthcheck.
package httpserver
