package wasm

import (
	"strings"
	"testing"
)

func validModule() *Module {
	return &Module{
		Types: []FuncType{{Results: []ValType{ValI32}}},
		Funcs: []uint32{0},
		Code: []FuncBody{
			{Code: EncodeInstructions([]Instruction{
				{Opcode: OpI32Const, Imm: I32Imm{Value: 1}},
				{Opcode: OpEnd},
			})},
		},
		Exports: []Export{{Name: "one", Kind: KindFunc, Idx: 0}},
	}
}

func TestValidateOK(t *testing.T) {
	if err := validModule().Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestValidateBadTypeIndex(t *testing.T) {
	m := validModule()
	m.Funcs[0] = 5
	if err := m.Validate(); err == nil || !strings.Contains(err.Error(), "type index") {
		t.Errorf("expected type index error, got %v", err)
	}
}

func TestValidateBadExport(t *testing.T) {
	m := validModule()
	m.Exports[0].Idx = 9
	if err := m.Validate(); err == nil {
		t.Error("expected error for export index out of range")
	}
}

func TestValidateDuplicateExport(t *testing.T) {
	m := validModule()
	m.Exports = append(m.Exports, Export{Name: "one", Kind: KindFunc, Idx: 0})
	if err := m.Validate(); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("expected duplicate export error, got %v", err)
	}
}

func TestValidateCodeCountMismatch(t *testing.T) {
	m := validModule()
	m.Code = nil
	if err := m.Validate(); err == nil || !strings.Contains(err.Error(), "code count") {
		t.Errorf("expected code count error, got %v", err)
	}
}

func TestValidateBadStart(t *testing.T) {
	m := validModule()
	idx := uint32(3)
	m.Start = &idx
	if err := m.Validate(); err == nil || !strings.Contains(err.Error(), "start") {
		t.Errorf("expected start error, got %v", err)
	}
}

func TestValidateMemoryLimits(t *testing.T) {
	m := validModule()
	m.Memories = []MemoryType{{Limits: Limits{Min: maxMemoryPages + 1}}}
	if err := m.Validate(); err == nil {
		t.Error("expected error for oversized memory")
	}
}
