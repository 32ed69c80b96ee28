// Package ir provides a tree representation of WebAssembly structured
// control flow, enabling per-sequence edits before re-linearizing.
package ir

import "github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"

// Node represents a node in the instruction tree.
type Node interface {
	// IsControlFlow returns true if this node represents control flow (block, loop, if).
	IsControlFlow() bool
}

// SeqNode represents one instruction sequence: a function body, a block or
// loop body, or one arm of an if/else. It is the unit of probe insertion.
type SeqNode struct {
	Children []Node
}

func (n *SeqNode) IsControlFlow() bool { return false }

// InsertAt inserts nodes before index i, shifting subsequent children.
func (n *SeqNode) InsertAt(i int, nodes ...Node) {
	n.Children = append(n.Children[:i], append(append([]Node{}, nodes...), n.Children[i:]...)...)
}

// BlockNode represents block or loop constructs.
type BlockNode struct {
	Body   *SeqNode
	Imm    wasm.BlockImm
	Opcode byte
}

func (n *BlockNode) IsControlFlow() bool { return true }

// IfNode represents if/else constructs. Else is nil when the construct has
// no else arm.
type IfNode struct {
	Then *SeqNode
	Else *SeqNode
	Imm  wasm.BlockImm
}

func (n *IfNode) IsControlFlow() bool { return true }

// InstrNode represents a single non-structured instruction.
type InstrNode struct {
	Instr wasm.Instruction
}

func (n *InstrNode) IsControlFlow() bool { return false }

// Parse converts a linear instruction stream into a tree. The stream is
// expected to carry the function body's trailing end opcode, which
// terminates the root sequence.
func Parse(instrs []wasm.Instruction) *SeqNode {
	p := &parser{instrs: instrs}
	return p.parseSeq()
}

type parser struct {
	instrs []wasm.Instruction
	pos    int
}

func (p *parser) parseSeq() *SeqNode {
	var children []Node

	for p.pos < len(p.instrs) {
		instr := p.instrs[p.pos]

		switch instr.Opcode {
		case wasm.OpEnd:
			p.pos++
			return &SeqNode{Children: children}

		case wasm.OpElse:
			// Return without consuming - caller handles else
			return &SeqNode{Children: children}

		case wasm.OpBlock, wasm.OpLoop:
			children = append(children, p.parseBlock())

		case wasm.OpIf:
			children = append(children, p.parseIf())

		default:
			children = append(children, &InstrNode{Instr: instr})
			p.pos++
		}
	}

	return &SeqNode{Children: children}
}

func (p *parser) parseBlock() Node {
	instr := p.instrs[p.pos]
	imm := instr.Imm.(wasm.BlockImm)
	p.pos++

	body := p.parseSeq()

	return &BlockNode{
		Opcode: instr.Opcode,
		Body:   body,
		Imm:    imm,
	}
}

func (p *parser) parseIf() Node {
	instr := p.instrs[p.pos]
	imm := instr.Imm.(wasm.BlockImm)
	p.pos++

	thenBranch := p.parseSeq()

	var elseBranch *SeqNode
	if p.pos < len(p.instrs) && p.instrs[p.pos].Opcode == wasm.OpElse {
		p.pos++ // consume else
		elseBranch = p.parseSeq()
	}

	return &IfNode{
		Then: thenBranch,
		Else: elseBranch,
		Imm:  imm,
	}
}
