package backend

import (
	"strings"

	"github.com/regenix-dev/machgen/regalloc"
)

// VBlock is one basic block of lowered machine instructions. Instrs is
// always in forward (execution) order; the lowering driver builds it
// back-to-front internally and reverses once per block.
type VBlock struct {
	id     int
	Instrs []Instr

	preds []int
	succs []int
}

// ID returns the block's dense index within its VCode.
func (b *VBlock) ID() int { return b.id }

// VCode is the ordered container of lowered basic blocks. ExtraOperands is
// a side table for additional (Reg, Mode) references a lowered instruction
// needs beyond what its own Operands() reports, keyed by the VBlock/
// instruction-index pair that produced them. In this backend's flat
// tagged-union instruction model every Instr already reports its full
// operand set directly, so ExtraOperands stays empty in practice; it is
// kept on the container so a future fused-instruction optimization has
// somewhere to record extras without rewriting instruction operand lists.
type VCode struct {
	Blocks        []*VBlock
	NumVRegs      int
	EntryBlock    int
	ExtraOperands map[[2]int][]regalloc.Operand
}

// NewVCode creates an empty container.
func NewVCode() *VCode {
	return &VCode{ExtraOperands: map[[2]int][]regalloc.Operand{}}
}

// AddBlock appends a new, empty VBlock and returns its index.
func (vc *VCode) AddBlock() int {
	id := len(vc.Blocks)
	vc.Blocks = append(vc.Blocks, &VBlock{id: id})
	return id
}

// LinkEdge records a CFG edge between two VCode blocks for regalloc glue
// and branch-finalization purposes.
func (vc *VCode) LinkEdge(from, to int) {
	vc.Blocks[from].succs = append(vc.Blocks[from].succs, to)
	vc.Blocks[to].preds = append(vc.Blocks[to].preds, from)
}

// CheckInvariants checks structural well-formedness: every block is
// non-empty and ends in exactly one terminator, with no terminator
// appearing mid-block. The one allowed exception is a Cond terminator
// immediately followed by the not-taken Uncond branch it was lowered
// alongside (lowerCondBranch always emits both; RemoveRedundantBranches
// elides the Uncond later when it is a fallthrough) — that pair is still
// checked before this elision runs, so a lone Cond one-before-last with an
// Uncond last is accepted. VReg range/class consistency is enforced by
// construction via regalloc.VReg and needs no separate check here.
//
// A violation here can only come from a bug in lowering or regalloc glue,
// never from the input IR, so it panics via panicInvariant rather than
// returning an error for the caller to propagate.
func (vc *VCode) CheckInvariants() {
	for _, b := range vc.Blocks {
		if len(b.Instrs) == 0 {
			panicInvariant("block has no instructions")
		}
		last := len(b.Instrs) - 1
		for i, instr := range b.Instrs {
			term := instr.Terminator()
			if term.Kind == TermNone {
				if i == last {
					panicInvariant("block does not end in a terminator")
				}
				continue
			}
			if i == last {
				continue
			}
			if term.Kind == TermCond && i == last-1 && b.Instrs[last].Terminator().Kind == TermUncond {
				continue
			}
			panicInvariant("terminator appears mid-block")
		}
	}
}

// String renders every block's instructions, for debugging and golden
// disassembly output.
func (vc *VCode) String() string {
	var sb strings.Builder
	for _, b := range vc.Blocks {
		sb.WriteString(blockLabel(b.id))
		sb.WriteString(":\n")
		for _, instr := range b.Instrs {
			sb.WriteString("\t")
			sb.WriteString(instr.String())
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func blockLabel(id int) string {
	return "block" + itoa(id)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
