// Package queue provides a repository-agnostic task queue with immediate,
// delayed and cron-scheduled execution, weighted lanes and signature-based
// task uniqueness.
//
// The package is organised around three main components:
//
//   - Enqueuer   adds tasks to the queue
//   - Scheduler  turns ScheduleEntry definitions into tasks at their due times
//   - Worker     claims pending tasks and dispatches them to a Handler
//
// Components interact only through small repository interfaces
// (EnqueuerRepository, SchedulerRepository, WorkerRepository). MemoryStorage
// serves tests and single-process setups, PostgresStorage is the durable
// backend.
//
// # Lanes
//
// A worker pulls from weighted lanes, e.g. ParseLanes("critical:6,default:3,low:1").
// Every claim tries all lanes, but the lane tried first rotates so that a lane
// with weight w leads w times in every sum(weights) claims. Busy high weight
// lanes therefore cannot starve a low weight lane.
//
// # Uniqueness
//
// A task enqueued WithUniqueness(UniqueUntilExecuted) reserves its Signature
// (task name plus payload) until its handler returns:
//
//   - storage refuses a second pending or processing task with the same
//     signature and Enqueue returns a nil task and a nil error;
//   - the worker runs the handler inside WithUniquenessLock, so two workers
//     never execute the same signature at once, even across processes when a
//     RedisLocker is shared;
//   - a claimed task whose lock is held elsewhere is released back to pending
//     one backoff step later, keeping its retry count;
//   - locks carry a TTL, so a crashed worker cannot keep a signature blocked.
//
// # Usage
//
//	storage := queue.NewMemoryStorage()
//	enqueuer, _ := queue.NewEnqueuer(storage)
//
//	_, err := enqueuer.Enqueue(ctx, CleanupPayload{DaysOld: 30},
//		queue.WithTaskName("todo.cleanup"),
//		queue.WithQueue("low"),
//		queue.WithUniqueness(queue.UniqueUntilExecuted),
//	)
//
//	worker, _ := queue.NewWorker(storage, queue.WithLanes(lanes...))
//	_ = worker.RegisterHandler(queue.NewNamedTaskHandler("todo.cleanup", cleanup))
//
//	entries, err := queue.LoadScheduleFile("config/schedule.yml")
//	scheduler, _ := queue.NewScheduler(enqueuer, storage)
//	for _, e := range entries {
//		_ = scheduler.AddEntry(e)
//	}
//
// # Error Handling
//
// Package-level sentinel errors (e.g. ErrInvalidPriority, ErrNoHandlers) signal
// violations of business invariants and can be checked with errors.Is.
package queue
