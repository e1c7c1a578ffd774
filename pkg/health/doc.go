/*
Package health implements liveness and readiness reporting for an
estore process: a Checker interface pluggable with HTTP probes, the
store's own bbolt file, or an in-flight index build, and a Registry
that polls a set of named Checkers on their own schedules and
aggregates them into /healthz and /readyz handlers.

# Architecture

	┌─────────────────────────────────────────────┐
	│                  Registry                    │
	│  component name → (Checker, Config, Status)  │
	└────────┬──────────────────────────────────────┘
	         │ poll every Config.Interval
	    ┌────┴────────┬───────────────┐
	    ▼              ▼               ▼
	┌─────────┐  ┌─────────────┐  ┌───────────┐
	│HTTPChecker│ │StoreChecker │  │BuilderChecker│
	└─────────┘  └─────────────┘  └───────────┘

A component's rolling Status only flips to unhealthy after Retries
consecutive failed checks, and is ignored by /readyz entirely while
still within its StartPeriod grace window. /healthz always reports 200
while the process is up; /readyz reports 503 the moment any non-starting
component is unhealthy.
*/
package health
