package engine

import (
	"testing"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"
)

// buildModule wraps one or more function bodies into a module where each
// function has signature (i32) -> (i32).
func buildModule(bodies ...[]wasm.Instruction) *wasm.Module {
	m := &wasm.Module{
		Types: []wasm.FuncType{
			{Params: []wasm.ValType{wasm.ValI32}, Results: []wasm.ValType{wasm.ValI32}},
		},
	}
	for _, body := range bodies {
		m.Funcs = append(m.Funcs, 0)
		m.Code = append(m.Code, wasm.FuncBody{
			Code: wasm.EncodeInstructions(append(body, wasm.Instruction{Opcode: wasm.OpEnd})),
		})
	}
	return m
}

// isSubsequence reports whether want appears in got in order.
func isSubsequence(got, want []wasm.Instruction) bool {
	j := 0
	for i := 0; i < len(got) && j < len(want); i++ {
		if got[i].Opcode == want[j].Opcode && immEqual(got[i].Imm, want[j].Imm) {
			j++
		}
	}
	return j == len(want)
}

func immEqual(a, b interface{}) bool {
	if a == nil && b == nil {
		return true
	}
	switch av := a.(type) {
	case wasm.BrTableImm:
		bv, ok := b.(wasm.BrTableImm)
		if !ok || av.Default != bv.Default || len(av.Labels) != len(bv.Labels) {
			return false
		}
		for i := range av.Labels {
			if av.Labels[i] != bv.Labels[i] {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

func decodeBody(t *testing.T, m *wasm.Module, i int) []wasm.Instruction {
	t.Helper()
	instrs, err := wasm.DecodeInstructions(m.Code[i].Code)
	if err != nil {
		t.Fatalf("decode body %d: %v", i, err)
	}
	return instrs
}

func TestEngineHotnessIdentityFunction(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
	}
	m := buildModule(body)

	layout, err := New(m, MonitorHotness).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if layout.TotalBytes != 4 {
		t.Errorf("TotalBytes = %d, want 4", layout.TotalBytes)
	}
	if len(layout.Funcs) != 1 || layout.Funcs[0].Slots != 1 {
		t.Errorf("layout = %+v, want one function with one slot", layout.Funcs)
	}

	// Memory is appended and exported under "hotness" with one page.
	if len(m.Memories) != 1 {
		t.Fatalf("memories = %d, want 1", len(m.Memories))
	}
	lim := m.Memories[0].Limits
	if lim.Min != 1 || lim.Max == nil || *lim.Max != 1 {
		t.Errorf("memory limits = %+v, want 1/1", lim)
	}
	found := false
	for _, exp := range m.Exports {
		if exp.Name == "hotness" && exp.Kind == wasm.KindMemory && exp.Idx == 0 {
			found = true
		}
	}
	if !found {
		t.Errorf("missing hotness memory export: %+v", m.Exports)
	}

	// The probe precedes the original instruction.
	got := decodeBody(t, m, 0)
	want := []wasm.Instruction{
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 0}},
		{Opcode: wasm.OpI32Load, Imm: wasm.MemoryImm{Align: 2}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
		{Opcode: wasm.OpI32Add},
		{Opcode: wasm.OpI32Store, Imm: wasm.MemoryImm{Align: 2}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpEnd},
	}
	if len(got) != len(want) {
		t.Fatalf("instrumented body length = %d, want %d:\n%+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i].Opcode != want[i].Opcode || !immEqual(got[i].Imm, want[i].Imm) {
			t.Errorf("instr %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestEngineHotnessPreservesOrder(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpI32Eqz},
		{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 0}},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
	}
	m := buildModule(body)
	original := append(append([]wasm.Instruction{}, body...), wasm.Instruction{Opcode: wasm.OpEnd})

	if _, err := New(m, MonitorHotness).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got := decodeBody(t, m, 0)
	if !isSubsequence(got, original) {
		t.Errorf("original instructions not preserved in order:\n%+v", got)
	}
}

func TestEngineTwoFunctionsBaseOffsets(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpI32Const, Imm: wasm.I32Imm{Value: 1}},
		{Opcode: wasm.OpI32Add},
	}
	m := buildModule(body, body)

	layout, err := New(m, MonitorHotness).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(layout.Funcs) != 2 {
		t.Fatalf("funcs = %d, want 2", len(layout.Funcs))
	}
	if layout.Funcs[0].Offset != 0 || layout.Funcs[1].Offset != 12 {
		t.Errorf("offsets = %d, %d, want 0, 12", layout.Funcs[0].Offset, layout.Funcs[1].Offset)
	}
	if layout.TotalBytes != 24 {
		t.Errorf("TotalBytes = %d, want 24", layout.TotalBytes)
	}

	// Second function's probes address its own range.
	got := decodeBody(t, m, 1)
	if got[0].Opcode != wasm.OpI32Const || got[0].Imm.(wasm.I32Imm).Value != 12 {
		t.Errorf("second function first probe address = %+v, want i32.const 12", got[0])
	}
}

func TestEngineBranchCondProbe(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpNop},
		{Opcode: wasm.OpElse},
		{Opcode: wasm.OpNop},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
	}
	m := buildModule(body)

	layout, err := New(m, MonitorBranch).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if layout.TotalBytes != 8 {
		t.Errorf("TotalBytes = %d, want 8 (two slots)", layout.TotalBytes)
	}

	// The probe block type (i32) -> (i32, i32) is registered once.
	probeType := wasm.FuncType{
		Params:  []wasm.ValType{wasm.ValI32},
		Results: []wasm.ValType{wasm.ValI32, wasm.ValI32},
	}
	typeIdx := -1
	for i, ft := range m.Types {
		if len(ft.Params) == 1 && len(ft.Results) == 2 &&
			ft.Params[0] == probeType.Params[0] &&
			ft.Results[0] == wasm.ValI32 && ft.Results[1] == wasm.ValI32 {
			typeIdx = i
		}
	}
	if typeIdx < 0 {
		t.Fatalf("probe block type not registered: %+v", m.Types)
	}

	// A condition local was allocated.
	if len(m.Code[0].Locals) != 1 || m.Code[0].Locals[0].ValType != wasm.ValI32 {
		t.Errorf("locals = %+v, want one i32", m.Code[0].Locals)
	}

	// Probe shape: tee/get, generated if, load/add/store, restore get.
	got := decodeBody(t, m, 0)
	want := []byte{
		wasm.OpLocalGet, // original
		wasm.OpLocalTee, // probe: save cond
		wasm.OpLocalGet, // probe: push cond for generated if
		wasm.OpIf,
		wasm.OpDrop,
		wasm.OpI32Const,
		wasm.OpI32Const,
		wasm.OpElse,
		wasm.OpDrop,
		wasm.OpI32Const,
		wasm.OpI32Const,
		wasm.OpEnd,
		wasm.OpI32Load,
		wasm.OpI32Const,
		wasm.OpI32Add,
		wasm.OpI32Store,
		wasm.OpLocalGet, // probe: restore cond
		wasm.OpIf,       // original
		wasm.OpNop,
		wasm.OpElse,
		wasm.OpNop,
		wasm.OpEnd,
		wasm.OpLocalGet,
		wasm.OpEnd,
	}
	if len(got) != len(want) {
		t.Fatalf("body length = %d, want %d:\n%+v", len(got), len(want), got)
	}
	for i, op := range want {
		if got[i].Opcode != op {
			t.Errorf("instr %d opcode = 0x%02x, want 0x%02x", i, got[i].Opcode, op)
		}
	}

	// The generated if carries the registered block type; the original if
	// keeps its void type.
	genIf := got[3].Imm.(wasm.BlockImm)
	if genIf.Type != int32(typeIdx) {
		t.Errorf("generated if block type = %d, want %d", genIf.Type, typeIdx)
	}
	origIf := got[17].Imm.(wasm.BlockImm)
	if origIf.Type != wasm.BlockTypeVoid {
		t.Errorf("original if block type = %d, want void", origIf.Type)
	}

	// Taken slot at base, not-taken at base+4.
	if got[5].Imm.(wasm.I32Imm).Value != 0 || got[9].Imm.(wasm.I32Imm).Value != 4 {
		t.Errorf("slot addresses = %d, %d, want 0, 4",
			got[5].Imm.(wasm.I32Imm).Value, got[9].Imm.(wasm.I32Imm).Value)
	}
}

func TestEngineBranchBrTableProbe(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpBrTable, Imm: wasm.BrTableImm{Labels: []uint32{0, 1}, Default: 1}},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
	}
	m := buildModule(body)

	layout, err := New(m, MonitorBranch).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Two labels plus default = three slots.
	if layout.TotalBytes != 12 {
		t.Errorf("TotalBytes = %d, want 12", layout.TotalBytes)
	}

	// Both the condition local and the scratch local are allocated.
	if len(m.Code[0].Locals) != 2 {
		t.Errorf("locals = %+v, want two i32 entries", m.Code[0].Locals)
	}

	// The br_table and its selector are still present, in order.
	original := append(append([]wasm.Instruction{}, body...), wasm.Instruction{Opcode: wasm.OpEnd})
	got := decodeBody(t, m, 0)
	if !isSubsequence(got, original) {
		t.Errorf("original instructions not preserved:\n%+v", got)
	}
}

func TestEngineBranchStructuredOnlyNoSlots(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpBlock, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpNop},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
	}
	m := buildModule(body)

	layout, err := New(m, MonitorBranch).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if layout.TotalBytes != 0 {
		t.Errorf("TotalBytes = %d, want 0", layout.TotalBytes)
	}
	if layout.Pages() != 1 {
		t.Errorf("Pages = %d, want floor of 1", layout.Pages())
	}
}

func TestEngineEmptyModule(t *testing.T) {
	m := &wasm.Module{}

	layout, err := New(m, MonitorHotness).Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if layout.TotalBytes != 0 || len(layout.Funcs) != 0 {
		t.Errorf("layout = %+v, want empty", layout)
	}
	if len(m.Memories) != 1 || m.Memories[0].Limits.Min != 1 {
		t.Errorf("memories = %+v, want single 1-page memory", m.Memories)
	}
	if len(m.Exports) != 1 || m.Exports[0].Name != "hotness" {
		t.Errorf("exports = %+v, want hotness memory export", m.Exports)
	}
}

func TestEngineExistingMemoryGetsNextIndex(t *testing.T) {
	m := buildModule([]wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
	})
	m.Memories = []wasm.MemoryType{{Limits: wasm.Limits{Min: 1}}}

	if _, err := New(m, MonitorHotness).Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(m.Memories) != 2 {
		t.Fatalf("memories = %d, want 2", len(m.Memories))
	}
	var exp *wasm.Export
	for i := range m.Exports {
		if m.Exports[i].Name == "hotness" {
			exp = &m.Exports[i]
		}
	}
	if exp == nil || exp.Idx != 1 {
		t.Fatalf("hotness export = %+v, want memory index 1", exp)
	}

	// Probes address memory 1 via the multi-memory memarg.
	got := decodeBody(t, m, 0)
	load := got[2]
	if load.Opcode != wasm.OpI32Load || load.Imm.(wasm.MemoryImm).MemIdx != 1 {
		t.Errorf("probe load = %+v, want mem index 1", load)
	}
}

func TestEngineDeterministic(t *testing.T) {
	body := []wasm.Instruction{
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpIf, Imm: wasm.BlockImm{Type: wasm.BlockTypeVoid}},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
		{Opcode: wasm.OpBrIf, Imm: wasm.BranchImm{LabelIdx: 0}},
		{Opcode: wasm.OpEnd},
		{Opcode: wasm.OpLocalGet, Imm: wasm.LocalImm{LocalIdx: 0}},
	}

	m1 := buildModule(body)
	m2 := buildModule(body)
	if _, err := New(m1, MonitorBranch).Run(); err != nil {
		t.Fatal(err)
	}
	if _, err := New(m2, MonitorBranch).Run(); err != nil {
		t.Fatal(err)
	}

	b1 := m1.Encode()
	b2 := m2.Encode()
	if len(b1) != len(b2) {
		t.Fatalf("non-deterministic output sizes: %d vs %d", len(b1), len(b2))
	}
	for i := range b1 {
		if b1[i] != b2[i] {
			t.Fatalf("non-deterministic output at byte %d", i)
		}
	}
}
