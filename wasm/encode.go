package wasm

import "encoding/binary"

// Encode encodes the module to WebAssembly binary format. Each section
// body is assembled as a byte slice and framed by appendSection, so the
// encoder is a single pass of append calls.
func (m *Module) Encode() []byte {
	out := make([]byte, 0, 256)
	out = binary.LittleEndian.AppendUint32(out, Magic)
	out = binary.LittleEndian.AppendUint32(out, Version)

	if len(m.Types) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Types)))
		for _, ft := range m.Types {
			b = append(b, FuncTypeByte)
			b = appendValTypes(b, ft.Params)
			b = appendValTypes(b, ft.Results)
		}
		out = appendSection(out, SectionType, b)
	}

	if len(m.Imports) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			b = appendName(b, imp.Module)
			b = appendName(b, imp.Name)
			b = append(b, imp.Desc.Kind)
			switch imp.Desc.Kind {
			case KindFunc:
				b = AppendVarU32(b, imp.Desc.TypeIdx)
			case KindTable:
				if imp.Desc.Table != nil {
					b = appendTableType(b, *imp.Desc.Table)
				}
			case KindMemory:
				if imp.Desc.Memory != nil {
					b = appendLimits(b, imp.Desc.Memory.Limits)
				}
			case KindGlobal:
				if imp.Desc.Global != nil {
					b = appendGlobalType(b, *imp.Desc.Global)
				}
			}
		}
		out = appendSection(out, SectionImport, b)
	}

	if len(m.Funcs) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			b = AppendVarU32(b, typeIdx)
		}
		out = appendSection(out, SectionFunction, b)
	}

	if len(m.Tables) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Tables)))
		for _, t := range m.Tables {
			b = appendTableType(b, t)
		}
		out = appendSection(out, SectionTable, b)
	}

	if len(m.Memories) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			b = appendLimits(b, mem.Limits)
		}
		out = appendSection(out, SectionMemory, b)
	}

	if len(m.Globals) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Globals)))
		for _, g := range m.Globals {
			b = appendGlobalType(b, g.Type)
			b = append(b, g.Init...)
		}
		out = appendSection(out, SectionGlobal, b)
	}

	if len(m.Exports) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			b = appendName(b, exp.Name)
			b = append(b, exp.Kind)
			b = AppendVarU32(b, exp.Idx)
		}
		out = appendSection(out, SectionExport, b)
	}

	if m.Start != nil {
		out = appendSection(out, SectionStart, AppendVarU32(nil, *m.Start))
	}

	if len(m.Elements) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Elements)))
		for _, elem := range m.Elements {
			b = appendElement(b, elem)
		}
		out = appendSection(out, SectionElement, b)
	}

	// DataCount must precede Code when present.
	if m.DataCount != nil {
		out = appendSection(out, SectionDataCount, AppendVarU32(nil, *m.DataCount))
	}

	if len(m.Code) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Code)))
		for _, fb := range m.Code {
			entry := AppendVarU32(nil, uint32(len(fb.Locals)))
			for _, local := range fb.Locals {
				entry = AppendVarU32(entry, local.Count)
				entry = append(entry, byte(local.ValType))
			}
			entry = append(entry, fb.Code...)
			b = AppendVarU32(b, uint32(len(entry)))
			b = append(b, entry...)
		}
		out = appendSection(out, SectionCode, b)
	}

	if len(m.Data) > 0 {
		b := AppendVarU32(nil, uint32(len(m.Data)))
		for _, d := range m.Data {
			b = AppendVarU32(b, d.Flags)
			if d.Flags == 2 {
				b = AppendVarU32(b, d.MemIdx)
			}
			if d.Flags != 1 {
				b = append(b, d.Offset...)
			}
			b = AppendVarU32(b, uint32(len(d.Init)))
			b = append(b, d.Init...)
		}
		out = appendSection(out, SectionData, b)
	}

	// Custom sections go at the end.
	for _, cs := range m.CustomSections {
		b := appendName(nil, cs.Name)
		b = append(b, cs.Data...)
		out = appendSection(out, SectionCustom, b)
	}

	return out
}

func appendSection(dst []byte, id byte, body []byte) []byte {
	dst = append(dst, id)
	dst = AppendVarU32(dst, uint32(len(body)))
	return append(dst, body...)
}

func appendName(dst []byte, s string) []byte {
	dst = AppendVarU32(dst, uint32(len(s)))
	return append(dst, s...)
}

func appendValTypes(dst []byte, types []ValType) []byte {
	dst = AppendVarU32(dst, uint32(len(types)))
	for _, t := range types {
		dst = append(dst, byte(t))
	}
	return dst
}

func appendLimits(dst []byte, l Limits) []byte {
	var flags byte
	if l.Max != nil {
		flags |= LimitsHasMax
	}
	if l.Shared {
		flags |= LimitsShared
	}
	if l.Memory64 {
		flags |= LimitsMemory64
	}
	dst = append(dst, flags)

	if l.Memory64 {
		dst = AppendVarU64(dst, l.Min)
		if l.Max != nil {
			dst = AppendVarU64(dst, *l.Max)
		}
		return dst
	}
	dst = AppendVarU32(dst, uint32(l.Min))
	if l.Max != nil {
		dst = AppendVarU32(dst, uint32(*l.Max))
	}
	return dst
}

func appendTableType(dst []byte, t TableType) []byte {
	dst = append(dst, t.ElemType)
	return appendLimits(dst, t.Limits)
}

func appendGlobalType(dst []byte, g GlobalType) []byte {
	dst = append(dst, byte(g.ValType))
	if g.Mutable {
		return append(dst, 1)
	}
	return append(dst, 0)
}

func appendElement(dst []byte, elem Element) []byte {
	dst = AppendVarU32(dst, elem.Flags)

	active := elem.Flags&0x01 == 0
	usesExprs := elem.Flags&0x04 != 0

	if active && elem.Flags&0x02 != 0 {
		dst = AppendVarU32(dst, elem.TableIdx)
	}
	if active {
		dst = append(dst, elem.Offset...)
	}

	// Flags 1, 2, 3 carry an elemkind byte; flags 5, 6, 7 a reftype byte.
	if elem.Flags&0x03 != 0 {
		if usesExprs {
			dst = append(dst, byte(elem.Type))
		} else {
			dst = append(dst, elem.ElemKind)
		}
	}

	if usesExprs {
		dst = AppendVarU32(dst, uint32(len(elem.Exprs)))
		for _, expr := range elem.Exprs {
			dst = append(dst, expr...)
		}
		return dst
	}
	dst = AppendVarU32(dst, uint32(len(elem.FuncIdxs)))
	for _, idx := range elem.FuncIdxs {
		dst = AppendVarU32(dst, idx)
	}
	return dst
}
