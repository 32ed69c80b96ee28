package report

import (
	"fmt"
	"io"

	"github.com/tetratelabs/wazero/api"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument"
)

// FuncCounters holds one function's drained counter values.
type FuncCounters struct {
	Counters []uint32
	FuncIdx  uint32
	Offset   uint32
}

// Snapshot is the counter state of an instrumented instance at one moment.
type Snapshot struct {
	Funcs   []FuncCounters
	Monitor instrument.Monitor
}

// Read drains all counters described by the manifest from the exported
// counter memory.
func Read(mem api.Memory, manifest *instrument.Manifest) (*Snapshot, error) {
	if mem == nil {
		return nil, errors.NotFound(errors.PhaseRun, "memory export", manifest.MemoryName())
	}

	snap := &Snapshot{Monitor: manifest.Monitor, Funcs: make([]FuncCounters, 0, len(manifest.Funcs))}
	for _, f := range manifest.Funcs {
		fc := FuncCounters{FuncIdx: f.FuncIdx, Offset: f.Offset, Counters: make([]uint32, f.Slots)}
		for slot := uint32(0); slot < f.Slots; slot++ {
			v, ok := mem.ReadUint32Le(f.Offset + slot*4)
			if !ok {
				return nil, errors.InvalidData(errors.PhaseRun, nil,
					fmt.Sprintf("counter %d of function %d outside memory", slot, f.FuncIdx))
			}
			fc.Counters[slot] = v
		}
		snap.Funcs = append(snap.Funcs, fc)
	}
	return snap, nil
}

// Total sums all counters in the snapshot.
func (s *Snapshot) Total() uint64 {
	var total uint64
	for _, f := range s.Funcs {
		for _, c := range f.Counters {
			total += uint64(c)
		}
	}
	return total
}

// Render writes a plain-text table of the snapshot, skipping functions
// whose counters are all zero.
func (s *Snapshot) Render(w io.Writer) {
	fmt.Fprintf(w, "monitor: %s (total %d)\n", s.Monitor, s.Total())
	for _, f := range s.Funcs {
		if len(f.Counters) == 0 {
			continue
		}
		nonzero := false
		for _, c := range f.Counters {
			if c != 0 {
				nonzero = true
				break
			}
		}
		if !nonzero {
			continue
		}

		fmt.Fprintf(w, "func %d (base %d):\n", f.FuncIdx, f.Offset)
		for i, c := range f.Counters {
			fmt.Fprintf(w, "  slot %4d: %d\n", i, c)
		}
	}
}
