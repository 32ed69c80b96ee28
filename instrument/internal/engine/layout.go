package engine

import (
	"math"
	"strconv"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
)

const (
	// SlotSize is the width in bytes of one counter slot.
	SlotSize = 4
	// PageSize is the WebAssembly linear memory page unit.
	PageSize = 65536
)

// FuncLayout is one function's counter range within the instrumentation
// memory: bytes [Offset, Offset+Slots*SlotSize).
type FuncLayout struct {
	FuncIdx uint32
	Offset  uint32
	Slots   uint32
}

// Layout assigns each instrumented function a contiguous counter range.
// Functions are appended in module order, producing disjoint ranges.
type Layout struct {
	Funcs      []FuncLayout
	TotalBytes uint32
}

// Add reserves slots for a function and returns its base offset.
// Counter addresses are materialized as i32.const, so the whole range must
// stay below 2^31.
func (l *Layout) Add(funcIdx, slots uint32) (uint32, error) {
	offset := l.TotalBytes

	size := uint64(slots) * SlotSize
	if uint64(offset)+size > math.MaxInt32 {
		return 0, errors.Overflow(errors.PhaseInstrument, []string{"func", strconv.FormatUint(uint64(funcIdx), 10)}, uint64(offset)+size, "i32 address space")
	}

	l.Funcs = append(l.Funcs, FuncLayout{FuncIdx: funcIdx, Offset: offset, Slots: slots})
	l.TotalBytes = offset + uint32(size)
	return offset, nil
}

// Pages returns the memory size in pages needed to hold all counters,
// with a floor of one page.
func (l *Layout) Pages() uint64 {
	pages := (uint64(l.TotalBytes) + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	return pages
}
