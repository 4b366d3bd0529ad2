// Package jobqueue provides the execution record at the core of a
// priority job queue: the JobHolder that carries a job's ordering
// metadata, delay and retry state, and run-outcome protocol from
// enqueue through terminal completion.
//
// Jobqueue is designed as a library, not a service. Wrap a unit of work
// in a Job, build a JobHolder through the HolderBuilder, and hand it to
// the manager, which orders holders by the composite key (priority
// descending, creation time ascending, insertion order ascending),
// drives execution, and interprets the returned RunResult.
//
// # Quick Start
//
//	j := jobqueue.NewJob(func(attempt int) error {
//	    return sendEmail(to, subject)
//	}, jobqueue.WithRequiresNetwork(true))
//
//	m := manager.New(manager.WithStore(memStore))
//	if err := m.Start(ctx); err != nil {
//	    return err
//	}
//	id, err := m.AddJob(ctx, j, 5)
//
// # Architecture
//
// The root package holds the core protocol types: Job, JobHolder,
// HolderBuilder, RunResult, RetryConstraint, Registry and Record.
// Each subsystem lives in its own subpackage: pqueue (the priority
// structure), group (same-group serialization), backoff (retry delay
// policies), network (connectivity monitoring), middleware (execution
// wrappers), store (persistence backends), and manager (the retry loop
// and worker pool).
//
// Execution follows a closed outcome protocol: a Job's SafeRun never
// panics and reports one of five RunResult codes. Success,
// FailRunLimit and FailForCancel are terminal; TryAgain and
// FailShouldReRun send the holder back through the retry loop with a
// fresh insertion order.
package jobqueue
