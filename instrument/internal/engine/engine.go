package engine

import (
	"go.uber.org/zap"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument/internal/ir"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"
)

// Engine rewrites a module so it counts its own execution into an exported
// linear memory:
//  1. Append a local memory and export it under the monitor's name.
//  2. For each local function, collect probe sites, reserve a contiguous
//     counter range, and insert the probe instruction sequences.
//  3. Size the memory to hold every function's counters.
//
// The module is mutated in place; on error it is left in an undefined
// state and must be discarded.
type Engine struct {
	module  *wasm.Module
	monitor Monitor
}

// New creates an engine for the given module and monitor.
func New(module *wasm.Module, monitor Monitor) *Engine {
	return &Engine{module: module, monitor: monitor}
}

// Run performs the transformation and returns the counter layout.
func (e *Engine) Run() (*Layout, error) {
	m := e.module
	log := Logger()

	// The counter memory goes after any imported and declared memories.
	memIdx := uint32(m.NumImportedMemories() + len(m.Memories))
	m.Memories = append(m.Memories, wasm.MemoryType{Limits: wasm.Limits{Min: 1}})
	m.Exports = append(m.Exports, wasm.Export{
		Name: e.monitor.MemoryName(),
		Kind: wasm.KindMemory,
		Idx:  memIdx,
	})

	// The condition probe wraps a generated if/else that consumes the
	// observed i32 and produces the slot address twice.
	var condTypeIdx uint32
	if e.monitor == MonitorBranch {
		condTypeIdx = m.AddType(wasm.FuncType{
			Params:  []wasm.ValType{wasm.ValI32},
			Results: []wasm.ValType{wasm.ValI32, wasm.ValI32},
		})
	}

	layout := &Layout{}
	numImported := uint32(m.NumImportedFuncs())

	for i := range m.Code {
		funcIdx := numImported + uint32(i)
		body := &m.Code[i]

		instrs, err := wasm.DecodeInstructions(body.Code)
		if err != nil {
			return nil, errors.ParseFailed("function body", err)
		}
		tree := ir.Parse(instrs)
		sites := Collect(tree, e.monitor)

		slots := CountSlots(sites)
		foffset, err := layout.Add(funcIdx, slots)
		if err != nil {
			return nil, err
		}

		em := &emitter{
			memIdx:      memIdx,
			condTypeIdx: condTypeIdx,
			foffset:     foffset,
		}
		if e.monitor == MonitorBranch {
			em.condLocal = e.addLocal(funcIdx, body)
			if hasTableProbe(sites) {
				em.scratchLocal = e.addLocal(funcIdx, body)
			}
		}

		em.run(sites)
		if em.probeCount != slots {
			return nil, errors.Mismatch(errors.PhaseInstrument, nil, "emitted slot count disagrees with layout")
		}

		flat := ir.Flatten(tree)
		flat = append(flat, wasm.Instruction{Opcode: wasm.OpEnd})
		body.Code = wasm.EncodeInstructions(flat)

		log.Debug("instrumented function",
			zap.Uint32("func", funcIdx),
			zap.Uint32("offset", foffset),
			zap.Uint32("slots", slots),
		)
	}

	pages := layout.Pages()
	m.Memories[len(m.Memories)-1].Limits = wasm.Limits{Min: pages, Max: &pages}

	log.Debug("counter memory sized",
		zap.String("export", e.monitor.MemoryName()),
		zap.Uint32("bytes", layout.TotalBytes),
		zap.Uint64("pages", pages),
	)

	return layout, nil
}

// addLocal appends a fresh i32 local to the function and returns its index
// (params occupy the leading indices).
func (e *Engine) addLocal(funcIdx uint32, body *wasm.FuncBody) uint32 {
	idx := uint32(0)
	if ft := e.module.GetFuncType(funcIdx); ft != nil {
		idx = uint32(len(ft.Params))
	}
	for _, entry := range body.Locals {
		idx += entry.Count
	}
	body.Locals = append(body.Locals, wasm.LocalEntry{Count: 1, ValType: wasm.ValI32})
	return idx
}
