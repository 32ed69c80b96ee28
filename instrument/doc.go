// Package instrument rewrites WebAssembly modules to record runtime
// statistics about their own execution.
//
// Two monitors are available. Hotness reserves one 4-byte counter per
// straight-line instruction and increments it on every execution. Branch
// reserves a pair of counters per conditional branch (taken / not-taken)
// and one counter per br_table target, updated without disturbing the
// operand stack.
//
// Counters live in a fresh linear memory exported as "hotness" or
// "branches"; slot k is the little-endian uint32 at byte offset 4*k. The
// mapping from functions to counter ranges is embedded in the output as a
// custom section (see Manifest) so hosts can attribute counts.
//
//	out, manifest, err := instrument.Transform(wasmBytes, instrument.Hotness)
package instrument
