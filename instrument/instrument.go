package instrument

import (
	"go.uber.org/zap"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument/internal/engine"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"
)

// Transform rewrites a WebAssembly binary to count its own execution
// under the given monitor. It returns the rewritten binary and the
// counter manifest, which is also embedded in the output as the
// "instrument.map" custom section.
//
// The input bytes are not modified. A failed transform returns no partial
// output.
func Transform(wasmData []byte, monitor Monitor) ([]byte, *Manifest, error) {
	m, err := wasm.ParseModule(wasmData)
	if err != nil {
		return nil, nil, errors.ParseFailed("module", err)
	}

	manifest, err := TransformModule(m, monitor)
	if err != nil {
		return nil, nil, err
	}

	return m.Encode(), manifest, nil
}

// TransformModule instruments an already-parsed module in place and
// attaches the manifest custom section. On error the module is left in an
// undefined state and must be discarded.
func TransformModule(m *wasm.Module, monitor Monitor) (*Manifest, error) {
	layout, err := engine.New(m, monitor).Run()
	if err != nil {
		return nil, err
	}

	manifest := manifestFromLayout(monitor, layout)
	m.CustomSections = append(m.CustomSections, wasm.CustomSection{
		Name: ManifestSection,
		Data: manifest.Encode(),
	})

	log := engine.Logger()
	for _, f := range manifest.Funcs {
		log.Debug("counter range",
			zap.Uint32("func", f.FuncIdx),
			zap.Uint32("base", f.Offset),
			zap.Uint32("slots", f.Slots),
		)
	}

	return manifest, nil
}

// IsInstrumented reports whether a parsed module already carries a
// counter manifest.
func IsInstrumented(m *wasm.Module) bool {
	for _, cs := range m.CustomSections {
		if cs.Name == ManifestSection {
			return true
		}
	}
	return false
}
