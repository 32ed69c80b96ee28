package engine

import (
	stderrors "errors"
	"testing"

	"github.com/yashanand1910/wasm-bytecode-instrumenter/errors"
)

func TestLayoutAdd(t *testing.T) {
	l := &Layout{}

	off0, err := l.Add(0, 3)
	if err != nil || off0 != 0 {
		t.Fatalf("Add(0, 3) = %d, %v", off0, err)
	}
	off1, err := l.Add(1, 3)
	if err != nil || off1 != 12 {
		t.Fatalf("Add(1, 3) = %d, %v, want offset 12", off1, err)
	}
	if l.TotalBytes != 24 {
		t.Errorf("TotalBytes = %d, want 24", l.TotalBytes)
	}

	// Ranges are disjoint and ordered
	for i := 1; i < len(l.Funcs); i++ {
		prev, cur := l.Funcs[i-1], l.Funcs[i]
		if prev.Offset+prev.Slots*SlotSize > cur.Offset {
			t.Errorf("ranges overlap: %+v then %+v", prev, cur)
		}
	}
}

func TestLayoutZeroSlotFunction(t *testing.T) {
	l := &Layout{}
	if _, err := l.Add(0, 0); err != nil {
		t.Fatal(err)
	}
	off, err := l.Add(1, 2)
	if err != nil || off != 0 {
		t.Errorf("Add after empty function = %d, %v, want 0", off, err)
	}
}

func TestLayoutPages(t *testing.T) {
	tests := []struct {
		bytes uint32
		want  uint64
	}{
		{0, 1},
		{4, 1},
		{PageSize, 1},
		{PageSize + 1, 2},
		{3 * PageSize, 3},
	}

	for _, tt := range tests {
		l := &Layout{TotalBytes: tt.bytes}
		if got := l.Pages(); got != tt.want {
			t.Errorf("Pages(%d bytes) = %d, want %d", tt.bytes, got, tt.want)
		}
	}
}

func TestLayoutOverflow(t *testing.T) {
	l := &Layout{}
	if _, err := l.Add(0, 1<<28); err != nil {
		t.Fatalf("first half should fit: %v", err)
	}
	_, err := l.Add(1, 1<<28)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	var e *errors.Error
	if !stderrors.As(err, &e) || e.Kind != errors.KindOverflow {
		t.Errorf("expected overflow kind, got %v", err)
	}
}
