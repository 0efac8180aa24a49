// Package taskrunner runs one unit of work per input on a bounded pool of
// goroutines. Run processes every input and keeps results in input order;
// FirstMatch stops scheduling and cancels the shared context as soon as one
// result satisfies a predicate, so queued inputs never start and in-flight
// work observes cancellation. Summarize condenses outcomes for log lines.
package taskrunner
