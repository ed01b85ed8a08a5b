/*
Package scheduler drives the periodic execution of service checks.

Every check runs as its own worker, ticking on wall-clock multiples of
its interval so parallel checks stay phase-aligned across teams. On each
tick the worker walks the (team, box) pairs the check selects, resolves
each box's overlay hostname, runs the probe, and writes the aggregated
current state plus one ledger event per passing box.

Probe and store errors never escape a tick; they are folded into the
check's recorded message and retried on the next tick.
*/
package scheduler
