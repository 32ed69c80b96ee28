package report

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"
)

// Instance is a live instrumented module whose counters can be sampled
// between calls.
type Instance struct {
	runtime  wazero.Runtime
	module   api.Module
	manifest *instrument.Manifest
}

// Open instantiates an instrumented binary under wazero. The binary must
// carry the counter manifest custom section.
func Open(ctx context.Context, instrumented []byte) (*Instance, error) {
	parsed, err := wasm.ParseModule(instrumented)
	if err != nil {
		return nil, errors.ParseFailed("instrumented module", err)
	}
	manifest, err := instrument.ManifestFromModule(parsed)
	if err != nil {
		return nil, err
	}

	cfg := wazero.NewRuntimeConfig().
		WithCoreFeatures(api.CoreFeaturesV2 | api.CoreFeatureMultipleMemories)
	runtime := wazero.NewRuntimeWithConfig(ctx, cfg)

	module, err := runtime.Instantiate(ctx, instrumented)
	if err != nil {
		runtime.Close(ctx)
		return nil, errors.Instantiation(err)
	}

	return &Instance{runtime: runtime, module: module, manifest: manifest}, nil
}

// Manifest returns the counter manifest embedded in the module.
func (in *Instance) Manifest() *instrument.Manifest {
	return in.manifest
}

// Module exposes the underlying wazero module, e.g. for export
// introspection.
func (in *Instance) Module() api.Module {
	return in.module
}

// ExportedFunctions lists the module's exported function names.
func (in *Instance) ExportedFunctions() []string {
	defs := in.module.ExportedFunctionDefinitions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	return names
}

// Call invokes an exported function with the given raw arguments.
func (in *Instance) Call(ctx context.Context, fn string, args ...uint64) ([]uint64, error) {
	f := in.module.ExportedFunction(fn)
	if f == nil {
		return nil, errors.NotFound(errors.PhaseRun, "exported function", fn)
	}
	results, err := f.Call(ctx, args...)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseRun, errors.KindInvalidData, err, "call "+fn)
	}
	return results, nil
}

// Snapshot drains the current counter values.
func (in *Instance) Snapshot() (*Snapshot, error) {
	mem := in.module.ExportedMemory(in.manifest.MemoryName())
	return Read(mem, in.manifest)
}

// Close releases the underlying runtime.
func (in *Instance) Close(ctx context.Context) error {
	return in.runtime.Close(ctx)
}

// Run is a convenience wrapper: instantiate, call one exported function,
// and return its results plus the resulting counter snapshot.
func Run(ctx context.Context, instrumented []byte, fn string, args ...uint64) ([]uint64, *Snapshot, error) {
	in, err := Open(ctx, instrumented)
	if err != nil {
		return nil, nil, err
	}
	defer in.Close(ctx)

	results, err := in.Call(ctx, fn, args...)
	if err != nil {
		return nil, nil, err
	}
	snap, err := in.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	return results, snap, nil
}
