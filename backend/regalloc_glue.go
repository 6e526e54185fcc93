package backend

import (
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

// vcodeBlock adapts a single VBlock to regalloc.Block.
type vcodeBlock struct {
	vc *VCode
	b  *VBlock
}

func (vb vcodeBlock) ID() int        { return vb.b.id }
func (vb vcodeBlock) Instrs() []regalloc.Instr {
	out := make([]regalloc.Instr, len(vb.b.Instrs))
	for i, instr := range vb.b.Instrs {
		out[i] = instr
	}
	return out
}
func (vb vcodeBlock) Entry() bool { return vb.b.id == vb.vc.EntryBlock }

func (vb vcodeBlock) Preds() []regalloc.Block {
	out := make([]regalloc.Block, len(vb.b.preds))
	for i, p := range vb.b.preds {
		out[i] = vcodeBlock{vc: vb.vc, b: vb.vc.Blocks[p]}
	}
	return out
}

func (vb vcodeBlock) Succs() []regalloc.Block {
	out := make([]regalloc.Block, len(vb.b.succs))
	for i, s := range vb.b.succs {
		out[i] = vcodeBlock{vc: vb.vc, b: vb.vc.Blocks[s]}
	}
	return out
}

// vcodeFunction adapts a VCode plus its ABI to regalloc.Function, so a
// LinearScanAllocator (or any other implementation of the same contract)
// can run directly over lowered machine code without knowing the ISA.
type vcodeFunction struct {
	vc  *VCode
	abi ABI

	// before/after accumulate pending block-local edits (spills, reloads,
	// fix-up moves) keyed by the instruction they're relative to, applied
	// in Done so that mutating slices mid-allocation never invalidates
	// the index the allocator is iterating over.
	before map[Instr][]Instr
	after  map[Instr][]Instr
}

// NewRegallocFunction wraps vc for handoff to a register allocator. abi
// supplies the spill-slot load/store and move instruction generators.
func NewRegallocFunction(vc *VCode, abi ABI) regalloc.Function {
	return &vcodeFunction{
		vc:     vc,
		abi:    abi,
		before: map[Instr][]Instr{},
		after:  map[Instr][]Instr{},
	}
}

func (f *vcodeFunction) Blocks() []regalloc.Block {
	out := make([]regalloc.Block, len(f.vc.Blocks))
	for i, b := range f.vc.Blocks {
		out[i] = vcodeBlock{vc: f.vc, b: b}
	}
	return out
}

func (f *vcodeFunction) ClobberedRegisters(regs []regalloc.VReg) {
	f.abi.SetClobbered(regs)
}

func (f *vcodeFunction) StoreRegisterAfter(v regalloc.VReg, instr regalloc.Instr) {
	mi := instr.(Instr)
	store := f.abi.StoreSpillSlot(int(v.ID()), v.Class(), v)
	f.after[mi] = append(f.after[mi], store)
}

func (f *vcodeFunction) ReloadRegisterBefore(v regalloc.VReg, instr regalloc.Instr) {
	mi := instr.(Instr)
	load := f.abi.LoadSpillSlot(int(v.ID()), v.Class(), v)
	f.before[mi] = append(f.before[mi], load)
}

func (f *vcodeFunction) InsertMoveBefore(dst, src regalloc.VReg, instr regalloc.Instr) {
	mi := instr.(Instr)
	mv := f.abi.GenMove(dst, src, classToMoveType(dst.Class()))
	f.before[mi] = append(f.before[mi], mv)
}

func classToMoveType(c regalloc.RegClass) ir.Type {
	if c == regalloc.RegClassVector {
		return ir.TypeF64
	}
	return ir.TypeI64
}

// Done splices every pending spill/reload/move edit into its block's
// instruction slice in a single pass per block. The spill-slot count is
// reported to the ABI separately, by FinishSpillAccounting.
func (f *vcodeFunction) Done() {
	for _, b := range f.vc.Blocks {
		var rebuilt []Instr
		for _, instr := range b.Instrs {
			rebuilt = append(rebuilt, f.before[instr]...)
			rebuilt = append(rebuilt, instr)
			rebuilt = append(rebuilt, f.after[instr]...)
		}
		b.Instrs = rebuilt
	}
}

// FinishSpillAccounting must be called after Done with the allocator's
// reported NumSpillSlots, since the allocator hands that count back only
// in the Result it returns once Done's splice has already run.
func FinishSpillAccounting(abi ABI, numSpillSlots int) {
	abi.SetNumSpillSlots(numSpillSlots)
}
