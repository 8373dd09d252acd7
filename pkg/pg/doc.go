// Package pg bootstraps PostgreSQL access on top of pgx/v5: a retrying pool
// constructor, goose migrations from an fs.FS, a transaction helper, a
// readiness check and error classification helpers.
//
// Config is populated from environment variables (see the struct tags):
//
//	cfg, err := config.Load[pg.Config]()
//	pool, err := pg.Connect(ctx, cfg)
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, logger); err != nil {
//		return err
//	}
//
// Helpers such as IsNotFoundError and IsCheckViolationError unwrap pgx and
// *pgconn.PgError values so callers can classify failures with a single call.
package pg
