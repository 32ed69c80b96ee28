// Package report reads counters back out of instrumented modules: it
// locates the embedded counter manifest, drains the exported counter
// memory of a live instance, and renders per-function counts. Run
// executes an instrumented module under wazero, calls one exported
// function, and returns the snapshot left behind by that invocation.
package report
