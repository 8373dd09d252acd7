// Package todo implements the ordered todo list.
//
// Items are sorted by Position, assigned as max(position)+1 when the caller
// does not set one. Both stores serialize that read-then-write (a mutex in
// MemoryStore, a transaction-scoped advisory lock in PostgresStore), and list
// ties are broken by id.
//
// Completed items are removed in bulk with Service.ClearCompleted or by the
// retention task registered under CleanupTaskName:
//
//	cleanup, _ := todo.NewCleanupTask(store)
//	worker.RegisterHandler(cleanup)
//	svc.EnqueueCleanup(ctx, 30) // no-op while an identical sweep is queued or running
package todo
