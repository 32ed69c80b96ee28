package ir

import "github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"

// Flatten converts a tree back into a linear instruction stream. Block and
// if nodes re-emit their else/end delimiters; the root sequence's trailing
// end opcode is NOT emitted, matching what Parse consumed.
func Flatten(root *SeqNode) []wasm.Instruction {
	var result []wasm.Instruction
	return appendSeq(result, root)
}

func appendSeq(result []wasm.Instruction, seq *SeqNode) []wasm.Instruction {
	for _, child := range seq.Children {
		result = appendNode(result, child)
	}
	return result
}

func appendNode(result []wasm.Instruction, node Node) []wasm.Instruction {
	switch n := node.(type) {
	case *SeqNode:
		result = appendSeq(result, n)

	case *BlockNode:
		result = append(result, wasm.Instruction{Opcode: n.Opcode, Imm: n.Imm})
		result = appendSeq(result, n.Body)
		result = append(result, wasm.Instruction{Opcode: wasm.OpEnd})

	case *IfNode:
		result = append(result, wasm.Instruction{Opcode: wasm.OpIf, Imm: n.Imm})
		result = appendSeq(result, n.Then)
		if n.Else != nil {
			result = append(result, wasm.Instruction{Opcode: wasm.OpElse})
			result = appendSeq(result, n.Else)
		}
		result = append(result, wasm.Instruction{Opcode: wasm.OpEnd})

	case *InstrNode:
		result = append(result, n.Instr)
	}
	return result
}

// CountInstrs returns the number of linear instructions the tree flattens
// to, excluding the root's trailing end.
func CountInstrs(root *SeqNode) int {
	return countSeq(root)
}

func countSeq(seq *SeqNode) int {
	n := 0
	for _, child := range seq.Children {
		switch c := child.(type) {
		case *SeqNode:
			n += countSeq(c)
		case *BlockNode:
			n += 2 + countSeq(c.Body) // opcode + end
		case *IfNode:
			n += 2 + countSeq(c.Then) // opcode + end
			if c.Else != nil {
				n += 1 + countSeq(c.Else) // else delimiter
			}
		case *InstrNode:
			n++
		}
	}
	return n
}
