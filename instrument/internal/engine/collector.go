package engine

import (
	"github.com/yashanand1910/wasm-bytecode-instrumenter/instrument/internal/ir"
	"github.com/yashanand1910/wasm-bytecode-instrumenter/wasm"
)

// SiteKind classifies what probe a site receives.
type SiteKind int

const (
	// SiteDescent recurses into a child sequence and owns no slots.
	SiteDescent SiteKind = iota
	// SiteCounter is a hotness increment before a single instruction.
	SiteCounter
	// SiteCond is a two-edge condition probe (if/else, br_if).
	SiteCond
	// SiteTable is a selector probe for br_table (one slot per label plus default).
	SiteTable
)

// SiteTree records where probes attach within one instruction sequence.
// Blocks can be indefinitely nested, so descent sites carry their own
// subtree.
type SiteTree struct {
	Seq   *ir.SeqNode
	Sites []Site
}

// Site is a single attachment point. Pos indexes the sequence's original
// children; multiple sites may share a position (both arms of an if/else
// and its condition probe). Fanout is the number of counter slots the site
// owns: 0 for a descent site, 1 for a hotness counter, 2 for a two-edge
// branch, N+1 for a br_table with N labels.
type Site struct {
	Child  *SiteTree
	Pos    int
	Fanout int
	Kind   SiteKind
}

// Collect walks a sequence in position order and classifies each
// instruction according to the monitor. Descent sites are emitted in the
// order the child bodies appear; descent sites precede the leaf probe at
// the same position.
func Collect(seq *ir.SeqNode, monitor Monitor) *SiteTree {
	tree := &SiteTree{Seq: seq}

	for i, child := range seq.Children {
		switch n := child.(type) {
		case *ir.BlockNode:
			tree.Sites = append(tree.Sites, Site{Pos: i, Kind: SiteDescent, Child: Collect(n.Body, monitor)})

		case *ir.IfNode:
			tree.Sites = append(tree.Sites, Site{Pos: i, Kind: SiteDescent, Child: Collect(n.Then, monitor)})
			if n.Else != nil {
				tree.Sites = append(tree.Sites, Site{Pos: i, Kind: SiteDescent, Child: Collect(n.Else, monitor)})
			}
			if monitor == MonitorBranch {
				tree.Sites = append(tree.Sites, Site{Pos: i, Kind: SiteCond, Fanout: 2})
			}

		case *ir.InstrNode:
			switch monitor {
			case MonitorHotness:
				tree.Sites = append(tree.Sites, Site{Pos: i, Kind: SiteCounter, Fanout: 1})

			case MonitorBranch:
				switch n.Instr.Opcode {
				case wasm.OpBrIf:
					tree.Sites = append(tree.Sites, Site{Pos: i, Kind: SiteCond, Fanout: 2})
				case wasm.OpBrTable:
					imm := n.Instr.Imm.(wasm.BrTableImm)
					tree.Sites = append(tree.Sites, Site{Pos: i, Kind: SiteTable, Fanout: len(imm.Labels) + 1})
				}
			}
		}
	}

	return tree
}

// CountSlots sums the fanout over all sites, in the same single traversal
// order the emitter visits.
func CountSlots(tree *SiteTree) uint32 {
	var slots uint32
	for _, site := range tree.Sites {
		if site.Child != nil {
			slots += CountSlots(site.Child)
			continue
		}
		slots += uint32(site.Fanout)
	}
	return slots
}

// hasTableProbe reports whether any leaf site is a br_table selector probe,
// which needs the extra scratch local.
func hasTableProbe(tree *SiteTree) bool {
	for _, site := range tree.Sites {
		if site.Child != nil {
			if hasTableProbe(site.Child) {
				return true
			}
			continue
		}
		if site.Kind == SiteTable {
			return true
		}
	}
	return false
}
