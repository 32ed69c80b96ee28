package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := &Error{
		Phase:  PhaseInstrument,
		Kind:   KindOverflow,
		Path:   []string{"func", "3"},
		Detail: "offset too large",
	}

	got := err.Error()
	for _, want := range []string{"[instrument]", "overflow", "func.3", "offset too large"} {
		if !strings.Contains(got, want) {
			t.Errorf("Error() = %q, missing %q", got, want)
		}
	}
}

func TestErrorCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(PhaseParse, KindInvalidData, cause, "decode body")

	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("Error() = %q, missing cause", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should match the wrapped cause")
	}
}

func TestErrorIs(t *testing.T) {
	a := InvalidMonitor("bogus")
	b := &Error{Phase: PhaseInstrument, Kind: KindInvalidMonitor}
	c := &Error{Phase: PhaseParse, Kind: KindInvalidData}

	if !stderrors.Is(a, b) {
		t.Error("errors with same phase and kind should match")
	}
	if stderrors.Is(a, c) {
		t.Error("errors with different phase/kind should not match")
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err  *Error
		want Kind
	}{
		{InvalidMonitor("x"), KindInvalidMonitor},
		{InvalidData(PhaseParse, nil, "bad"), KindInvalidData},
		{NotFound(PhaseRun, "export", "main"), KindNotFound},
		{Overflow(PhaseInstrument, nil, 1<<33, "u32"), KindOverflow},
		{Unsupported(PhaseParse, "gc types"), KindUnsupported},
		{Mismatch(PhaseInstrument, nil, "slot count"), KindMismatch},
		{Instantiation(stderrors.New("no")), KindInstantiation},
		{ParseFailed("module", stderrors.New("eof")), KindInvalidData},
	}

	for _, tt := range tests {
		if tt.err.Kind != tt.want {
			t.Errorf("kind = %s, want %s", tt.err.Kind, tt.want)
		}
	}
}
