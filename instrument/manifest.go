package instrument

import (
	"bytes"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument/internal/engine"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"
)

// ManifestSection is the name of the custom section carrying the counter
// manifest in instrumented modules.
const ManifestSection = "instrument.map"

// FuncRange is one function's counter range: slots occupy bytes
// [Offset, Offset+Slots*4) of the counter memory.
type FuncRange struct {
	FuncIdx uint32
	Offset  uint32
	Slots   uint32
}

// Manifest maps functions to their counter ranges. Without it, counter
// slots cannot be attributed back to code.
type Manifest struct {
	Funcs   []FuncRange
	Monitor Monitor
}

// MemoryName returns the export name of the counter memory.
func (mf *Manifest) MemoryName() string {
	return mf.Monitor.MemoryName()
}

// TotalSlots returns the number of counter slots across all functions.
func (mf *Manifest) TotalSlots() uint32 {
	var n uint32
	for _, f := range mf.Funcs {
		n += f.Slots
	}
	return n
}

// Encode serializes the manifest for embedding in a custom section:
// a monitor byte, an entry count, then funcidx/offset/slots per entry,
// all LEB128.
func (mf *Manifest) Encode() []byte {
	out := []byte{byte(mf.Monitor)}
	out = wasm.AppendVarU32(out, uint32(len(mf.Funcs)))
	for _, f := range mf.Funcs {
		out = wasm.AppendVarU32(out, f.FuncIdx)
		out = wasm.AppendVarU32(out, f.Offset)
		out = wasm.AppendVarU32(out, f.Slots)
	}
	return out
}

// DecodeManifest parses a manifest from custom section data.
func DecodeManifest(data []byte) (*Manifest, error) {
	r := bytes.NewReader(data)

	monitorByte, err := r.ReadByte()
	if err != nil {
		return nil, errors.ParseFailed("manifest monitor", err)
	}
	monitor := Monitor(monitorByte)
	if monitor != Hotness && monitor != Branch {
		return nil, errors.InvalidData(errors.PhaseParse, []string{ManifestSection}, "unknown monitor byte")
	}

	count, err := wasm.ReadVarU32(r)
	if err != nil {
		return nil, errors.ParseFailed("manifest entry count", err)
	}

	mf := &Manifest{Monitor: monitor, Funcs: make([]FuncRange, 0, count)}
	for i := uint32(0); i < count; i++ {
		var f FuncRange
		if f.FuncIdx, err = wasm.ReadVarU32(r); err != nil {
			return nil, errors.ParseFailed("manifest entry", err)
		}
		if f.Offset, err = wasm.ReadVarU32(r); err != nil {
			return nil, errors.ParseFailed("manifest entry", err)
		}
		if f.Slots, err = wasm.ReadVarU32(r); err != nil {
			return nil, errors.ParseFailed("manifest entry", err)
		}
		mf.Funcs = append(mf.Funcs, f)
	}
	return mf, nil
}

// ManifestFromModule extracts the manifest from an instrumented module's
// custom section.
func ManifestFromModule(m *wasm.Module) (*Manifest, error) {
	for _, cs := range m.CustomSections {
		if cs.Name == ManifestSection {
			return DecodeManifest(cs.Data)
		}
	}
	return nil, errors.NotFound(errors.PhaseParse, "custom section", ManifestSection)
}

// manifestFromLayout converts the engine's layout into the host-visible
// manifest.
func manifestFromLayout(monitor Monitor, layout *engine.Layout) *Manifest {
	mf := &Manifest{Monitor: monitor, Funcs: make([]FuncRange, 0, len(layout.Funcs))}
	for _, f := range layout.Funcs {
		mf.Funcs = append(mf.Funcs, FuncRange{FuncIdx: f.FuncIdx, Offset: f.Offset, Slots: f.Slots})
	}
	return mf
}
