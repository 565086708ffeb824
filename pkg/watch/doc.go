// Package watch implements the batched-concurrent fetch-with-retry engine.
//
// A run takes an ordered list of work items, partitions it into fixed-size
// batches, resolves every item of a batch concurrently, re-issues only the
// items that failed within the batch, and aggregates one Result per item
// into a Report. Fetching and persistence are pluggable: the engine talks
// to a Fetcher (one attempt, classified Outcome) and a Sink (one recorded
// observation per resolved value).
//
// Example usage:
//
//	resolver, err := watch.NewResolver(fetcher, watch.DefaultRetryPolicy(), logger)
//	if err != nil {
//		return err
//	}
//	scheduler, err := watch.NewScheduler(resolver, sink, watch.DefaultSchedulerConfig(), logger)
//	if err != nil {
//		return err
//	}
//	report, err := scheduler.Run(ctx, items)
//
// The engine guarantees:
//   - batches execute strictly in input order, one at a time
//   - at most BatchSize fetches are in flight at any moment
//   - every input item contributes exactly one Result to the Report
//   - rate-limit signals pace the loop without consuming the retry budget
//   - a failing sink never aborts the run
package watch
