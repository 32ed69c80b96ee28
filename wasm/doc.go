// Package wasm implements decoding and encoding of the WebAssembly binary
// format for the module sections and instructions the instrumenter works
// with.
//
// The supported instruction set covers WASM 2.0 core: all MVP
// instructions, sign extension, saturating truncations, bulk memory and
// table operations (0xFC prefix), reference types, tail calls,
// multi-memory memargs, and SIMD (0xFD prefix) as pass-through. GC types,
// exception handling, and threads opcodes are rejected at decode time.
//
// A module round-trips through:
//
//	m, err := wasm.ParseModule(data)
//	instrs, err := wasm.DecodeInstructions(m.Code[0].Code)
//	// ... transform instrs ...
//	m.Code[0].Code = wasm.EncodeInstructions(instrs)
//	out := m.Encode()
//
// Function bodies are kept as raw bytes in Module.Code; instruction
// decoding is explicit so section-level edits stay cheap.
package wasm
