// Package resilience implements per-key circuit breakers with timed retries.
//
// A Breaker guards a single dependency (one module path, typically). It trips
// open after a run of consecutive failures, fails callers fast while open, and
// lets a single trial call through after the recovery timeout. Manager owns a
// keyed registry of breakers and is the lifecycle authority over all of them:
// shutting the manager down cancels every pending retry timer and unblocks
// every waiter with ErrShuttingDown.
package resilience
