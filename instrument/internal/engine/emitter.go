package engine

import (
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument/internal/ir"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"
)

// emitter inserts probe instructions for one function. probeCount is
// shared across the whole function so nested sequences continue the slot
// numbering; insertion bookkeeping resets per sequence.
type emitter struct {
	memIdx       uint32
	condTypeIdx  uint32 // type index of the (i32) -> (i32, i32) probe block
	condLocal    uint32 // function-scoped i32 holding the observed condition
	scratchLocal uint32 // function-scoped i32 holding a computed slot address
	foffset      uint32 // function's base byte offset in the counter memory
	probeCount   uint32 // slots assigned so far in this function
}

// run walks the site tree in order, inserting probes. Inserting k nodes
// before original position p shifts subsequent positions in the same
// sequence by k; nested sequences are independent insertion contexts.
func (e *emitter) run(tree *SiteTree) {
	insertsSoFar := 0
	for _, site := range tree.Sites {
		if site.Child != nil {
			e.run(site.Child)
			continue
		}

		ioffset := e.foffset + e.probeCount*SlotSize
		var probe []ir.Node
		switch site.Kind {
		case SiteCounter:
			probe = e.counterProbe(ioffset)
		case SiteCond:
			probe = e.condProbe(ioffset)
		case SiteTable:
			probe = e.tableProbe(ioffset, site.Fanout-1)
		}

		tree.Seq.InsertAt(site.Pos+insertsSoFar, probe...)
		insertsSoFar += len(probe)
		e.probeCount += uint32(site.Fanout)
	}
}

// counterProbe increments the slot at ioffset:
//
//	i32.const ioffset  ;; store address
//	i32.const ioffset  ;; load address
//	i32.load
//	i32.const 1
//	i32.add
//	i32.store
//
// The sequence leaves the stack untouched; the original instruction at the
// site is not moved or altered.
func (e *emitter) counterProbe(ioffset uint32) []ir.Node {
	return []ir.Node{
		instr(wasm.OpI32Const, wasm.I32Imm{Value: int32(ioffset)}),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: int32(ioffset)}),
		e.load(),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: 1}),
		instr(wasm.OpI32Add, nil),
		e.store(),
	}
}

// condProbe observes the i32 condition the original if/else or br_if is
// about to consume, increments the taken slot (ioffset) or not-taken slot
// (ioffset+4), and leaves the stack identical:
//
//	local.tee $cond
//	local.get $cond
//	if (i32) -> (i32, i32)
//	  drop  i32.const ioffset      i32.const ioffset
//	else
//	  drop  i32.const ioffset+4    i32.const ioffset+4
//	end
//	i32.load
//	i32.const 1
//	i32.add
//	i32.store
//	local.get $cond
func (e *emitter) condProbe(ioffset uint32) []ir.Node {
	takenAddr := int32(ioffset)
	skipAddr := int32(ioffset + SlotSize)

	probeIf := &ir.IfNode{
		Imm: wasm.BlockImm{Type: int32(e.condTypeIdx)},
		Then: &ir.SeqNode{Children: []ir.Node{
			instr(wasm.OpDrop, nil),
			instr(wasm.OpI32Const, wasm.I32Imm{Value: takenAddr}),
			instr(wasm.OpI32Const, wasm.I32Imm{Value: takenAddr}),
		}},
		Else: &ir.SeqNode{Children: []ir.Node{
			instr(wasm.OpDrop, nil),
			instr(wasm.OpI32Const, wasm.I32Imm{Value: skipAddr}),
			instr(wasm.OpI32Const, wasm.I32Imm{Value: skipAddr}),
		}},
	}

	return []ir.Node{
		instr(wasm.OpLocalTee, wasm.LocalImm{LocalIdx: e.condLocal}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: e.condLocal}),
		probeIf,
		e.load(),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: 1}),
		instr(wasm.OpI32Add, nil),
		e.store(),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: e.condLocal}),
	}
}

// tableProbe observes the br_table selector, increments the slot for the
// label it picks (the default slot for any selector >= the label count),
// and restores the selector. The slot index is min(selector, labels):
//
//	local.set $cond
//	local.get $cond
//	i32.const labels
//	local.get $cond
//	i32.const labels
//	i32.lt_u
//	select
//	i32.const 4
//	i32.mul
//	i32.const ioffset
//	i32.add
//	local.set $scratch
//	local.get $scratch
//	local.get $scratch
//	i32.load
//	i32.const 1
//	i32.add
//	i32.store
//	local.get $cond
func (e *emitter) tableProbe(ioffset uint32, labels int) []ir.Node {
	return []ir.Node{
		instr(wasm.OpLocalSet, wasm.LocalImm{LocalIdx: e.condLocal}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: e.condLocal}),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: int32(labels)}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: e.condLocal}),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: int32(labels)}),
		instr(wasm.OpI32LtU, nil),
		instr(wasm.OpSelect, nil),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: SlotSize}),
		instr(wasm.OpI32Mul, nil),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: int32(ioffset)}),
		instr(wasm.OpI32Add, nil),
		instr(wasm.OpLocalSet, wasm.LocalImm{LocalIdx: e.scratchLocal}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: e.scratchLocal}),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: e.scratchLocal}),
		e.load(),
		instr(wasm.OpI32Const, wasm.I32Imm{Value: 1}),
		instr(wasm.OpI32Add, nil),
		e.store(),
		instr(wasm.OpLocalGet, wasm.LocalImm{LocalIdx: e.condLocal}),
	}
}

func (e *emitter) load() ir.Node {
	return instr(wasm.OpI32Load, wasm.MemoryImm{Align: 2, Offset: 0, MemIdx: e.memIdx})
}

func (e *emitter) store() ir.Node {
	return instr(wasm.OpI32Store, wasm.MemoryImm{Align: 2, Offset: 0, MemIdx: e.memIdx})
}

func instr(opcode byte, imm interface{}) ir.Node {
	return &ir.InstrNode{Instr: wasm.Instruction{Opcode: opcode, Imm: imm}}
}
