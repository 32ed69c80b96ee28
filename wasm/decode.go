package wasm

import (
	"errors"
	"fmt"
)

// Parsing errors returned by ParseModule.
var (
	ErrInvalidMagic   = errors.New("invalid wasm magic number")
	ErrInvalidVersion = errors.New("invalid wasm version")
)

// sectionRank gives the mandatory ordering of non-custom sections. Rank
// differs from the raw section ID because DataCount precedes Code.
var sectionRank = [SectionDataCount + 1]int{
	SectionType:      1,
	SectionImport:    2,
	SectionFunction:  3,
	SectionTable:     4,
	SectionMemory:    5,
	SectionGlobal:    6,
	SectionExport:    7,
	SectionStart:     8,
	SectionElement:   9,
	SectionDataCount: 10,
	SectionCode:      11,
	SectionData:      12,
}

// ParseModule parses a WebAssembly binary module
func ParseModule(data []byte) (*Module, error) {
	c := newCursor(data)

	magic, err := c.u32le()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, ErrInvalidMagic
	}
	version, err := c.u32le()
	if err != nil {
		return nil, err
	}
	if version != Version {
		return nil, ErrInvalidVersion
	}

	m := &Module{}
	prevRank := 0

	for c.remaining() > 0 {
		id, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := c.varU32()
		if err != nil {
			return nil, fmt.Errorf("section %d size: %w", id, err)
		}
		body, err := c.view(int(size))
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}

		if id != SectionCustom {
			if int(id) >= len(sectionRank) || sectionRank[id] == 0 {
				return nil, fmt.Errorf("unknown section ID: 0x%02x", id)
			}
			if sectionRank[id] <= prevRank {
				return nil, fmt.Errorf("section %d appears out of order", id)
			}
			prevRank = sectionRank[id]
		}

		if err := m.decodeSection(id, body); err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
		if body.remaining() != 0 {
			return nil, fmt.Errorf("section %d: %d trailing bytes", id, body.remaining())
		}
	}

	return m, nil
}

// vec runs fn once per element of a length-prefixed vector.
func vec(c *cursor, fn func() error) error {
	n, err := c.varU32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Module) decodeSection(id byte, c *cursor) error {
	switch id {
	case SectionCustom:
		name, err := c.name()
		if err != nil {
			return err
		}
		m.CustomSections = append(m.CustomSections, CustomSection{Name: name, Data: c.rest()})
		return nil

	case SectionType:
		return vec(c, func() error {
			form, err := c.ReadByte()
			if err != nil {
				return err
			}
			if form != FuncTypeByte {
				return fmt.Errorf("unsupported type form 0x%02x", form)
			}
			params, err := decodeValTypes(c)
			if err != nil {
				return err
			}
			results, err := decodeValTypes(c)
			if err != nil {
				return err
			}
			m.Types = append(m.Types, FuncType{Params: params, Results: results})
			return nil
		})

	case SectionImport:
		return vec(c, func() error {
			imp, err := decodeImport(c)
			if err != nil {
				return err
			}
			m.Imports = append(m.Imports, imp)
			return nil
		})

	case SectionFunction:
		return vec(c, func() error {
			typeIdx, err := c.varU32()
			if err != nil {
				return err
			}
			m.Funcs = append(m.Funcs, typeIdx)
			return nil
		})

	case SectionTable:
		return vec(c, func() error {
			t, err := decodeTableType(c)
			if err != nil {
				return err
			}
			m.Tables = append(m.Tables, t)
			return nil
		})

	case SectionMemory:
		return vec(c, func() error {
			l, err := decodeLimits(c)
			if err != nil {
				return err
			}
			m.Memories = append(m.Memories, MemoryType{Limits: l})
			return nil
		})

	case SectionGlobal:
		return vec(c, func() error {
			gt, err := decodeGlobalType(c)
			if err != nil {
				return err
			}
			init, err := constExpr(c)
			if err != nil {
				return err
			}
			m.Globals = append(m.Globals, Global{Type: gt, Init: init})
			return nil
		})

	case SectionExport:
		return vec(c, func() error {
			name, err := c.name()
			if err != nil {
				return err
			}
			kind, err := c.ReadByte()
			if err != nil {
				return err
			}
			if kind > KindGlobal {
				return fmt.Errorf("invalid export kind: 0x%02x", kind)
			}
			idx, err := c.varU32()
			if err != nil {
				return err
			}
			m.Exports = append(m.Exports, Export{Name: name, Kind: kind, Idx: idx})
			return nil
		})

	case SectionStart:
		idx, err := c.varU32()
		if err != nil {
			return err
		}
		m.Start = &idx
		return nil

	case SectionElement:
		return vec(c, func() error {
			elem, err := decodeElement(c)
			if err != nil {
				return err
			}
			m.Elements = append(m.Elements, elem)
			return nil
		})

	case SectionCode:
		return vec(c, func() error {
			fb, err := decodeFuncBody(c)
			if err != nil {
				return err
			}
			m.Code = append(m.Code, fb)
			return nil
		})

	case SectionData:
		return vec(c, func() error {
			seg, err := decodeDataSegment(c)
			if err != nil {
				return err
			}
			m.Data = append(m.Data, seg)
			return nil
		})

	case SectionDataCount:
		n, err := c.varU32()
		if err != nil {
			return err
		}
		m.DataCount = &n
		return nil
	}

	return fmt.Errorf("unknown section ID: 0x%02x", id)
}

func decodeValTypes(c *cursor) ([]ValType, error) {
	n, err := c.varU32()
	if err != nil || n == 0 {
		return nil, err
	}
	out := make([]ValType, n)
	for i := range out {
		b, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		out[i] = ValType(b)
	}
	return out, nil
}

func decodeImport(c *cursor) (Import, error) {
	module, err := c.name()
	if err != nil {
		return Import{}, err
	}
	name, err := c.name()
	if err != nil {
		return Import{}, err
	}
	kind, err := c.ReadByte()
	if err != nil {
		return Import{}, err
	}

	desc := ImportDesc{Kind: kind}
	switch kind {
	case KindFunc:
		if desc.TypeIdx, err = c.varU32(); err != nil {
			return Import{}, err
		}
	case KindTable:
		t, err := decodeTableType(c)
		if err != nil {
			return Import{}, err
		}
		desc.Table = &t
	case KindMemory:
		l, err := decodeLimits(c)
		if err != nil {
			return Import{}, err
		}
		desc.Memory = &MemoryType{Limits: l}
	case KindGlobal:
		g, err := decodeGlobalType(c)
		if err != nil {
			return Import{}, err
		}
		desc.Global = &g
	default:
		return Import{}, fmt.Errorf("unknown import kind: %d", kind)
	}

	return Import{Module: module, Name: name, Desc: desc}, nil
}

func decodeLimits(c *cursor) (Limits, error) {
	flags, err := c.ReadByte()
	if err != nil {
		return Limits{}, err
	}
	if flags&^(LimitsHasMax|LimitsShared|LimitsMemory64) != 0 {
		return Limits{}, fmt.Errorf("invalid limits flags 0x%02x", flags)
	}

	l := Limits{
		Shared:   flags&LimitsShared != 0,
		Memory64: flags&LimitsMemory64 != 0,
	}

	bound := func() (uint64, error) {
		if l.Memory64 {
			return c.varU64()
		}
		v, err := c.varU32()
		return uint64(v), err
	}

	if l.Min, err = bound(); err != nil {
		return Limits{}, err
	}
	if flags&LimitsHasMax != 0 {
		max, err := bound()
		if err != nil {
			return Limits{}, err
		}
		if l.Min > max {
			return Limits{}, fmt.Errorf("limits min (%d) exceeds max (%d)", l.Min, max)
		}
		l.Max = &max
	}

	return l, nil
}

func decodeTableType(c *cursor) (TableType, error) {
	elemType, err := c.ReadByte()
	if err != nil {
		return TableType{}, err
	}
	if elemType != byte(ValFuncRef) && elemType != byte(ValExtern) {
		return TableType{}, fmt.Errorf("unsupported table element type 0x%02x", elemType)
	}
	limits, err := decodeLimits(c)
	if err != nil {
		return TableType{}, err
	}
	return TableType{ElemType: elemType, Limits: limits}, nil
}

func decodeGlobalType(c *cursor) (GlobalType, error) {
	valType, err := c.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	mut, err := c.ReadByte()
	if err != nil {
		return GlobalType{}, err
	}
	return GlobalType{ValType: ValType(valType), Mutable: mut != 0}, nil
}

func decodeElement(c *cursor) (Element, error) {
	flags, err := c.varU32()
	if err != nil {
		return Element{}, err
	}
	if flags > 7 {
		return Element{}, fmt.Errorf("invalid element segment flags: %d", flags)
	}

	elem := Element{Flags: flags}
	active := flags&0x01 == 0
	usesExprs := flags&0x04 != 0

	if active && flags&0x02 != 0 {
		if elem.TableIdx, err = c.varU32(); err != nil {
			return Element{}, err
		}
	}
	if active {
		if elem.Offset, err = constExpr(c); err != nil {
			return Element{}, err
		}
	}

	// Flags 1, 2, 3 carry an elemkind byte; flags 5, 6, 7 a reftype byte.
	if flags&0x03 != 0 {
		b, err := c.ReadByte()
		if err != nil {
			return Element{}, err
		}
		if usesExprs {
			elem.Type = ValType(b)
		} else {
			elem.ElemKind = b
		}
	}

	if usesExprs {
		err = vec(c, func() error {
			expr, err := constExpr(c)
			if err != nil {
				return err
			}
			elem.Exprs = append(elem.Exprs, expr)
			return nil
		})
	} else {
		err = vec(c, func() error {
			idx, err := c.varU32()
			if err != nil {
				return err
			}
			elem.FuncIdxs = append(elem.FuncIdxs, idx)
			return nil
		})
	}
	if err != nil {
		return Element{}, err
	}
	return elem, nil
}

func decodeFuncBody(c *cursor) (FuncBody, error) {
	size, err := c.varU32()
	if err != nil {
		return FuncBody{}, err
	}
	body, err := c.view(int(size))
	if err != nil {
		return FuncBody{}, err
	}

	var fb FuncBody
	err = vec(body, func() error {
		count, err := body.varU32()
		if err != nil {
			return err
		}
		t, err := body.ReadByte()
		if err != nil {
			return err
		}
		fb.Locals = append(fb.Locals, LocalEntry{Count: count, ValType: ValType(t)})
		return nil
	})
	if err != nil {
		return FuncBody{}, err
	}

	fb.Code = body.rest()
	return fb, nil
}

func decodeDataSegment(c *cursor) (DataSegment, error) {
	flags, err := c.varU32()
	if err != nil {
		return DataSegment{}, err
	}
	if flags > 2 {
		return DataSegment{}, fmt.Errorf("invalid data segment flags: %d", flags)
	}

	seg := DataSegment{Flags: flags}
	if flags == 2 {
		if seg.MemIdx, err = c.varU32(); err != nil {
			return DataSegment{}, err
		}
	}
	if flags != 1 {
		if seg.Offset, err = constExpr(c); err != nil {
			return DataSegment{}, err
		}
	}

	n, err := c.varU32()
	if err != nil {
		return DataSegment{}, err
	}
	if seg.Init, err = c.take(int(n)); err != nil {
		return DataSegment{}, err
	}
	return seg, nil
}

// constExpr captures the bytes of one constant expression, through its
// terminating end opcode.
func constExpr(c *cursor) ([]byte, error) {
	start := c.pos
	for {
		op, err := c.ReadByte()
		if err != nil {
			return nil, err
		}
		if op == OpEnd {
			return append([]byte(nil), c.data[start:c.pos]...), nil
		}
		if err := skipConstImmediate(c, op); err != nil {
			return nil, err
		}
	}
}

func skipConstImmediate(c *cursor, op byte) error {
	switch op {
	case OpI32Const, OpI64Const, OpGlobalGet, OpRefNull, OpRefFunc:
		return c.skipVarint()
	case OpF32Const:
		return c.skip(4)
	case OpF64Const:
		return c.skip(8)
	// Extended-const proposal: arithmetic and bitwise in init expressions
	case OpI32Add, OpI32Sub, OpI32Mul, OpI32And, OpI32Or, OpI32Xor,
		OpI64Add, OpI64Sub, OpI64Mul, OpI64And, OpI64Or, OpI64Xor:
		return nil
	case OpPrefixSIMD:
		sub, err := c.varU32()
		if err != nil {
			return err
		}
		if sub == SimdV128Const {
			return c.skip(16)
		}
		return nil
	default:
		return fmt.Errorf("unsupported opcode 0x%02x in constant expression", op)
	}
}
