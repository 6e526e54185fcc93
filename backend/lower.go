package backend

import (
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

// Machine is the per-ISA lowering contract. A concrete target package
// implements this once, and LowerFunction drives it opcode by opcode.
type Machine interface {
	// LowerInstr lowers a single non-branch, non-call, non-return IR
	// instruction, appending the result through ctx.Emit.
	LowerInstr(ctx *LowerCtx, instr *ir.Instruction)
	// LowerJump appends an unconditional branch to the given VCode block.
	LowerJump(ctx *LowerCtx, target int)
	// LowerCondBranch appends a conditional branch, taken to target when
	// (cond == 0) == zero, falling through otherwise. The driver always
	// follows this with a LowerJump to the not-taken block, which branch
	// finalization elides when layout makes it redundant.
	LowerCondBranch(ctx *LowerCtx, cond regalloc.VReg, zero bool, target int)
	// NewABI builds this target's ABI object for sig under conv.
	// stackSlotSizes gives the byte size of every IR-declared local stack
	// slot, in declaration order, so the ABI can lay out its frame before
	// any instruction referencing OpStackAddr is lowered.
	NewABI(sig ir.Signature, stackSlotSizes []int64, conv CallingConvention, settings Settings) (ABI, error)
	// NewABICall builds this target's call-site ABI object for a direct
	// call to callee with the given signature.
	NewABICall(sig ir.Signature, callee string) (ABICall, error)
	// RegisterInfo returns this target's static allocation policy.
	RegisterInfo() *regalloc.RegisterInfo
}

// LowerCtx carries the per-function state a Machine's lowering methods
// need: the value-to-vreg map, the emission buffer for the block currently
// being lowered, and lookups into the function's ABI.
type LowerCtx struct {
	f   *ir.Function
	abi ABI

	nextVReg regalloc.VRegID
	values   map[ir.Value]regalloc.VReg

	blockIndex map[ir.BlockID]int // ir.BlockID -> VCode block index

	// buf accumulates this block's instructions in reverse (last-lowered
	// first); LowerFunction reverses it once the block is done, which is
	// what lets lowering consume a value's IR definition without having
	// pre-scanned the whole function for liveness.
	buf []Instr
}

// VRegOf returns the VReg assigned to v, allocating a fresh one of the
// appropriate class on first use.
func (c *LowerCtx) VRegOf(v ir.Value) regalloc.VReg {
	if vr, ok := c.values[v]; ok {
		return vr
	}
	class := regalloc.RegClassInt
	if c.f.ValueType(v).IsFloat() {
		class = regalloc.RegClassVector
	}
	vr := regalloc.NewVReg(c.nextVReg, class)
	c.nextVReg++
	c.values[v] = vr
	return vr
}

// NewVReg allocates a fresh virtual register not tied to any IR value, for
// ISA-internal temporaries.
func (c *LowerCtx) NewVReg(class regalloc.RegClass) regalloc.VReg {
	vr := regalloc.NewVReg(c.nextVReg, class)
	c.nextVReg++
	return vr
}

// ValueType looks up the IR type of v.
func (c *LowerCtx) ValueType(v ir.Value) ir.Type { return c.f.ValueType(v) }

// ABI returns the function's ABI object, for opcode lowerings (e.g. stack
// addressing) that need to resolve a stack slot.
func (c *LowerCtx) ABI() ABI { return c.abi }

// BlockIndex maps an IR block to its VCode block index, for lowering
// branch targets.
func (c *LowerCtx) BlockIndex(b ir.BlockID) int { return c.blockIndex[b] }

// Emit appends instr to the block currently being lowered. Calls within a
// single block's lowering push in reverse execution order: the driver
// walks each block's IR instructions from its terminator back to its
// first instruction, so the first Emit call for a block is for what will
// end up as that block's last machine instruction.
func (c *LowerCtx) Emit(instr Instr) { c.buf = append(c.buf, instr) }

// LowerFunction runs the lowering driver over f, producing a VCode and its
// resolved ABI. Each block is walked backward, instruction by instruction,
// so that a Machine implementation can fuse an instruction with its single
// use by checking whether the producing instruction has already been
// lowered; this package's construction API never lets a value be used more
// than once as an immediate operand across block boundaries, so a simple
// tree-style fusion check is always safe. The per-block buffer is reversed
// once lowering of that block completes, restoring forward order.
func LowerFunction(f *ir.Function, m Machine, conv CallingConvention, settings Settings) (*VCode, ABI, error) {
	if err := settings.Validate(conv); err != nil {
		return nil, nil, err
	}

	stackSlotSizes := make([]int64, f.NumStackSlots())
	for i := range stackSlotSizes {
		stackSlotSizes[i] = f.StackSlotSize(i)
	}
	abi, err := m.NewABI(f.Sig, stackSlotSizes, conv, settings)
	if err != nil {
		return nil, nil, err
	}

	vc := NewVCode()
	ctx := &LowerCtx{
		f:          f,
		abi:        abi,
		values:     map[ir.Value]regalloc.VReg{},
		blockIndex: map[ir.BlockID]int{},
	}

	for _, b := range f.Blocks {
		ctx.blockIndex[b.ID()] = vc.AddBlock()
	}
	vc.EntryBlock = ctx.blockIndex[f.EntryBlock().ID()]

	entryID := f.EntryBlock().ID()
	for _, b := range f.Blocks {
		idx := ctx.blockIndex[b.ID()]
		ctx.buf = ctx.buf[:0]

		instrs := b.Instrs
		for i := len(instrs) - 1; i >= 0; i-- {
			instr := instrs[i]
			switch instr.Op {
			case ir.OpReturn:
				lowerReturn(ctx, abi, instr)
			case ir.OpJump:
				m.LowerJump(ctx, ctx.blockIndex[instr.Targets[0]])
			case ir.OpBrz, ir.OpBrnz:
				lowerCondBranch(ctx, m, instr)
			case ir.OpCall:
				if err := lowerCall(ctx, m, instr); err != nil {
					return nil, nil, err
				}
			default:
				m.LowerInstr(ctx, instr)
			}
		}

		if b.ID() == entryID {
			lowerEntryArgs(ctx, abi, b)
		}

		fwd := make([]Instr, len(ctx.buf))
		for i, instr := range ctx.buf {
			fwd[len(ctx.buf)-1-i] = instr
		}
		vc.Blocks[idx].Instrs = fwd
	}

	for _, b := range f.Blocks {
		from := ctx.blockIndex[b.ID()]
		for _, s := range b.Succs() {
			vc.LinkEdge(from, ctx.blockIndex[s])
		}
	}

	vc.NumVRegs = int(ctx.nextVReg)
	return vc, abi, nil
}

// lowerEntryArgs appends the argument-to-register copies at the very start
// of the entry block, after everything else has been lowered in reverse.
func lowerEntryArgs(ctx *LowerCtx, abi ABI, entry *ir.BasicBlock) {
	for i := len(entry.Params) - 1; i >= 0; i-- {
		dst := ctx.VRegOf(entry.Params[i])
		ctx.Emit(abi.GenCopyArgToReg(i, dst))
	}
}

func lowerReturn(ctx *LowerCtx, abi ABI, instr *ir.Instruction) {
	ctx.Emit(abi.GenRet())
	ctx.Emit(abi.GenEpiloguePlaceholder())
	for i := len(instr.Args) - 1; i >= 0; i-- {
		ctx.Emit(abi.GenCopyRegToRetval(i, ctx.VRegOf(instr.Args[i])))
	}
}

func lowerCondBranch(ctx *LowerCtx, m Machine, instr *ir.Instruction) {
	taken := ctx.blockIndex[instr.Targets[0]]
	notTaken := ctx.blockIndex[instr.Targets[1]]
	m.LowerJump(ctx, notTaken)
	cond := ctx.VRegOf(instr.Args[0])
	zero := instr.Op == ir.OpBrz
	m.LowerCondBranch(ctx, cond, zero, taken)
}

// lowerCall emits the call sequence, reverse-ordered per Emit's convention
// so the driver's once-per-block flip restores the bracketed forward order
// spec.md §4.2 requires: PreAdjust, ArgCopy(0..N-1), Call, RetvalCopy,
// PostAdjust. PostAdjust must only run after the call has returned and its
// result has been captured, never before an argument is written.
func lowerCall(ctx *LowerCtx, m Machine, instr *ir.Instruction) error {
	call, err := m.NewABICall(instr.CalleeSig, instr.Callee)
	if err != nil {
		return err
	}
	for _, ci := range call.GenStackPostAdjust() {
		ctx.Emit(ci)
	}
	if instr.Result != ir.ValueInvalid {
		ctx.Emit(call.GenCopyRetvalToReg(0, ctx.VRegOf(instr.Result)))
	}
	for _, ci := range call.GenCall() {
		ctx.Emit(ci)
	}
	for i := len(instr.Args) - 1; i >= 0; i-- {
		ctx.Emit(call.GenCopyRegToArg(i, ctx.VRegOf(instr.Args[i])))
	}
	for _, ci := range call.GenStackPreAdjust() {
		ctx.Emit(ci)
	}
	return nil
}
