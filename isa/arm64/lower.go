package arm64

import (
	"fmt"

	"github.com/regenix-dev/machgen/backend"
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

// emitForward emits instrs, an already forward-ordered sequence, onto ctx in
// the call order that survives LowerFunction's once-per-block reversal:
// since that reversal applies uniformly across every instruction the whole
// block lowers, a multi-instruction expansion must itself be queued back to
// front to read forward once the block is done.
func emitForward(ctx *backend.LowerCtx, instrs ...backend.Instr) {
	for i := len(instrs) - 1; i >= 0; i-- {
		ctx.Emit(instrs[i])
	}
}

// movWideChunks materializes the low size bits of bits into dst via one
// MOVZ and as many MOVK instructions as have a nonzero 16-bit chunk beyond
// the first, in ascending-shift forward order.
func movWideChunks(dst regalloc.VReg, bits uint64, size byte) []backend.Instr {
	chunks := 2
	if size == 64 {
		chunks = 4
	}
	out := []backend.Instr{&instr{op: opMovz, rd: dst, imm: int64(bits & 0xffff), shift: 0, size: size}}
	for c := 1; c < chunks; c++ {
		v := (bits >> uint(c*16)) & 0xffff
		if v == 0 {
			continue
		}
		out = append(out, &instr{op: opMovk, rd: dst, imm: int64(v), shift: uint8(c * 16), size: size})
	}
	return out
}

type machine struct{}

// Machine returns this target's backend.Machine implementation.
func Machine() backend.Machine { return machine{} }

func (machine) RegisterInfo() *regalloc.RegisterInfo { return NewRegisterInfo() }

func (machine) NewABI(sig ir.Signature, stackSlotSizes []int64, conv backend.CallingConvention, settings backend.Settings) (backend.ABI, error) {
	return NewABI(sig, stackSlotSizes, conv, settings)
}

func (machine) NewABICall(sig ir.Signature, callee string) (backend.ABICall, error) {
	return NewABICall(sig, callee)
}

func (machine) LowerJump(ctx *backend.LowerCtx, target int) {
	ctx.Emit(&instr{op: opB, target: target, term: backend.Terminator{Kind: backend.TermUncond, Target: target}})
}

func (machine) LowerCondBranch(ctx *backend.LowerCtx, cond regalloc.VReg, zero bool, target int) {
	op := opCbnz
	if zero {
		op = opCbz
	}
	ctx.Emit(&instr{op: op, rn: cond, target: target, size: 64, term: backend.Terminator{Kind: backend.TermCond, Target: target}})
}

func (machine) LowerInstr(ctx *backend.LowerCtx, i *ir.Instruction) {
	switch i.Op {
	case ir.OpIconst:
		dst := ctx.VRegOf(i.Result)
		emitForward(ctx, movWideChunks(dst, uint64(i.Imm), ctx.ValueType(i.Result).Bits())...)

	case ir.OpFconst:
		dst := ctx.VRegOf(i.Result)
		size := ctx.ValueType(i.Result).Bits()
		tmp := ctx.NewVReg(regalloc.RegClassInt)
		chunks := movWideChunks(tmp, uint64(i.Imm), size)
		emitForward(ctx, append(chunks, &instr{op: opFMovFromInt, rd: dst, rm: tmp, size: size})...)

	case ir.OpIadd:
		lowerBinop(ctx, i, opAdd)
	case ir.OpIsub:
		lowerBinop(ctx, i, opSub)
	case ir.OpImul:
		lowerBinop(ctx, i, opMadd)

	case ir.OpIcmp:
		dst := ctx.VRegOf(i.Result)
		lhs, rhs := ctx.VRegOf(i.Args[0]), ctx.VRegOf(i.Args[1])
		size := ctx.ValueType(i.Args[0]).Bits()
		emitForward(ctx,
			&instr{op: opSubs, rn: lhs, rm: rhs, size: size},
			&instr{op: opCSet, rd: dst, cc: condFromICmp(i.Cond), size: 32},
		)

	case ir.OpStackAddr:
		dst := ctx.VRegOf(i.Result)
		off := ctx.ABI().LocalSlotOffset(i.StackSlot) + i.Offset
		ctx.Emit(&instr{op: opSubImm, rd: dst, rn: regalloc.FromRealReg(fp, regalloc.RegClassInt), imm: -off, size: 64})

	case ir.OpLoad:
		dst := ctx.VRegOf(i.Result)
		addr := ctx.VRegOf(i.Args[0])
		ctx.Emit(&instr{op: opLoad, rd: dst, rn: addr, imm: i.Offset, size: i.Type.Bits()})

	case ir.OpStore:
		addr := ctx.VRegOf(i.Args[0])
		val := ctx.VRegOf(i.Args[1])
		ctx.Emit(&instr{op: opStore, rd: val, rn: addr, imm: i.Offset, size: i.Type.Bits()})

	default:
		panic(fmt.Sprintf("BUG: unhandled opcode %v in arm64 lowering", i.Op))
	}
}

func lowerBinop(ctx *backend.LowerCtx, i *ir.Instruction, o op) {
	dst := ctx.VRegOf(i.Result)
	lhs, rhs := ctx.VRegOf(i.Args[0]), ctx.VRegOf(i.Args[1])
	ctx.Emit(&instr{op: o, rd: dst, rn: lhs, rm: rhs, size: ctx.ValueType(i.Result).Bits()})
}
