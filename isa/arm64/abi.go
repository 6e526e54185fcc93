package arm64

import (
	"github.com/regenix-dev/machgen/backend"
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

// argIntRegs/argVecRegs are the AAPCS64 argument registers, in preference
// order: x0-x7 for integers, v0-v7 for floats/doubles.
var argIntRegs = []regalloc.RealReg{x0, x1, x2, x3, x4, x5, x6, x7}
var argVecRegs = []regalloc.RealReg{v0, v1, v2, v3, v4, v5, v6, v7}

// vmCtxPinnedReg is the register pinned to the VM-context argument under
// backend.HostRuntime. x21 sits in the middle of the callee-saved
// range so ordinary AAPCS calls out of generated code still leave it intact
// across the call without any special handling.
const vmCtxPinnedReg = x21

// abi is this target's ir.Signature-to-frame resolution: argument/result
// locations, the IR-declared local stack slots, and the running register-
// allocation state (clobbered set, spill count) needed to finalize frame
// layout once allocation completes.
type abi struct {
	conv     backend.CallingConvention
	settings backend.Settings

	args          []backend.ABIArg
	rets          []backend.ABIArg
	argStackBytes int64

	localSlotSizes  []int64
	localSlotOffset []int64 // fp-relative, negative, parallel to localSlotSizes
	localAreaSize   int64

	clobbered     []regalloc.VReg
	numSpillSlots int
}

// NewABI resolves sig's arguments and results to concrete locations and lays
// out the fixed (non-spill) portion of the stack frame.
func NewABI(sig ir.Signature, stackSlotSizes []int64, conv backend.CallingConvention, settings backend.Settings) (backend.ABI, error) {
	args, argStackBytes, err := backend.AssignArgs(sig.Params, argIntRegs, argVecRegs, conv, vmCtxPinnedReg)
	if err != nil {
		return nil, err
	}
	rets, _, err := backend.AssignArgs(sig.Results, argIntRegs, argVecRegs, backend.Standard, regalloc.RealRegInvalid)
	if err != nil {
		return nil, err
	}
	for _, ret := range rets {
		if ret.Kind != backend.ABIArgKindReg {
			return nil, &backend.UnsupportedConstructError{Reason: "return value does not fit in the return registers"}
		}
	}

	offsets := make([]int64, len(stackSlotSizes))
	var cur int64
	for i, sz := range stackSlotSizes {
		sz = alignUp(sz, 8)
		cur += sz
		offsets[i] = -cur
	}

	return &abi{
		conv:            conv,
		settings:        settings,
		args:            args,
		rets:            rets,
		argStackBytes:   argStackBytes,
		localSlotSizes:  stackSlotSizes,
		localSlotOffset: offsets,
		localAreaSize:   cur,
	}, nil
}

func alignUp(v, align int64) int64 { return (v + align - 1) &^ (align - 1) }

func (a *abi) Liveins() []regalloc.VReg {
	var out []regalloc.VReg
	for _, arg := range a.args {
		if arg.Kind == backend.ABIArgKindReg {
			out = append(out, arg.Reg)
		}
	}
	return out
}

func (a *abi) Liveouts() []regalloc.VReg {
	var out []regalloc.VReg
	for _, ret := range a.rets {
		if ret.Kind == backend.ABIArgKindReg {
			out = append(out, ret.Reg)
		}
	}
	return out
}

func (a *abi) NumArgs() int { return len(a.args) }
func (a *abi) NumRets() int { return len(a.rets) }

// NumStackSlots counts the incoming arguments passed on the caller's stack,
// i.e. beyond the eight integer / eight vector register slots.
func (a *abi) NumStackSlots() int {
	n := 0
	for _, arg := range a.args {
		if arg.Kind == backend.ABIArgKindStack {
			n++
		}
	}
	return n
}

func (a *abi) GenCopyArgToReg(i int, dst regalloc.VReg) backend.Instr {
	arg := a.args[i]
	if arg.Kind == backend.ABIArgKindReg {
		return genMove(dst, arg.Reg, arg.Type)
	}
	return a.LoadStackSlot(i, arg.Offset, arg.Type, dst)
}

func (a *abi) GenCopyRegToRetval(i int, src regalloc.VReg) backend.Instr {
	ret := a.rets[i]
	if ret.Kind == backend.ABIArgKindReg {
		return genMove(ret.Reg, src, ret.Type)
	}
	return a.StoreStackSlot(i, ret.Offset, ret.Type, src)
}

func (a *abi) GenRet() backend.Instr { return &instr{op: opRet, term: backend.Terminator{Kind: backend.TermRet}} }

func (a *abi) GenEpiloguePlaceholder() backend.Instr { return &instr{op: opEpilogue} }

// LoadStackSlot/StoreStackSlot address an incoming or outgoing ABI argument
// passed on the stack, fp-relative: after the standard prologue establishes
// fp, the caller's own stack pointer at the call instant is fp+16 (the
// frame-record pair sits at [fp, fp+8]).
func (a *abi) LoadStackSlot(slot int, offset int64, typ ir.Type, dst regalloc.VReg) backend.Instr {
	return &instr{op: opLoad, rd: dst, rn: regalloc.FromRealReg(fp, regalloc.RegClassInt), imm: 16 + offset, size: typ.Bits()}
}

func (a *abi) StoreStackSlot(slot int, offset int64, typ ir.Type, src regalloc.VReg) backend.Instr {
	return &instr{op: opStore, rd: src, rn: regalloc.FromRealReg(fp, regalloc.RegClassInt), imm: 16 + offset, size: typ.Bits()}
}

func (a *abi) LocalSlotOffset(slot int) int64 { return a.localSlotOffset[slot] }

func (a *abi) LoadSpillSlot(slot int, class regalloc.RegClass, dst regalloc.VReg) backend.Instr {
	return &instr{op: opLoad, rd: dst, rn: regalloc.FromRealReg(fp, regalloc.RegClassInt), imm: a.spillSlotOffset(slot), size: 64}
}

func (a *abi) StoreSpillSlot(slot int, class regalloc.RegClass, src regalloc.VReg) backend.Instr {
	return &instr{op: opStore, rd: src, rn: regalloc.FromRealReg(fp, regalloc.RegClassInt), imm: a.spillSlotOffset(slot), size: 64}
}

// spillSlotOffset places the register allocator's spill area immediately
// below the IR-declared locals, growing further down the frame.
func (a *abi) spillSlotOffset(slot int) int64 {
	return -a.localAreaSize - 8*int64(slot+1)
}

// clobberedSaveOffset places callee-saved-register save slots below the
// spill area, at the bottom of the frame.
func (a *abi) clobberedSaveOffset(idx int) int64 {
	return -a.localAreaSize - 8*int64(a.numSpillSlots) - 8*int64(idx+1)
}

func (a *abi) SetNumSpillSlots(n int) { a.numSpillSlots = n }
func (a *abi) SetClobbered(regs []regalloc.VReg) { a.clobbered = regs }

// FrameSize is the total byte count subtracted from sp below the 16-byte
// frame record, 16-byte aligned: locals, spill slots, and clobbered-register
// saves.
func (a *abi) FrameSize() int64 {
	size := a.localAreaSize + 8*int64(a.numSpillSlots) + 8*int64(len(a.clobbered))
	if a.conv == backend.HostRuntime {
		size += 8 * int64(a.settings.HostRuntimePrologueWords)
	}
	return alignUp(size, 16)
}

// GenPrologue emits the standard AAPCS64 frame setup. Under HostRuntime the
// caller already owns a frame record and reserved HostRuntimePrologueWords
// of scratch space for us, so the frame-record push/mov are suppressed and
// only the local/spill/clobbered area is carved out of that reservation.
func (a *abi) GenPrologue() []backend.Instr {
	var out []backend.Instr
	if a.conv == backend.Standard {
		out = append(out, &instr{op: opStpPre, rd: regalloc.FromRealReg(fp, regalloc.RegClassInt), rn: regalloc.FromRealReg(lr, regalloc.RegClassInt), imm: 16})
		// mov fp, sp must go through ADD (immediate), not the ORR-based
		// register move: register 31 means the zero register there, and
		// only means sp in the add/sub-immediate and load/store classes.
		out = append(out, &instr{op: opAddImm, rd: regalloc.FromRealReg(fp, regalloc.RegClassInt), rn: regalloc.FromRealReg(xzrOrSp, regalloc.RegClassInt), imm: 0, size: 64})
	}
	if frame := a.FrameSize(); frame > 0 {
		out = append(out, &instr{op: opSubImm, rd: regalloc.FromRealReg(xzrOrSp, regalloc.RegClassInt), rn: regalloc.FromRealReg(xzrOrSp, regalloc.RegClassInt), imm: frame, size: 64})
	}
	for i, r := range a.clobbered {
		out = append(out, &instr{op: opStore, rd: r, rn: regalloc.FromRealReg(fp, regalloc.RegClassInt), imm: a.clobberedSaveOffset(i), size: regWidth(r)})
	}
	return out
}

func (a *abi) GenEpilogue() []backend.Instr {
	var out []backend.Instr
	for i, r := range a.clobbered {
		out = append(out, &instr{op: opLoad, rd: r, rn: regalloc.FromRealReg(fp, regalloc.RegClassInt), imm: a.clobberedSaveOffset(i), size: regWidth(r)})
	}
	if frame := a.FrameSize(); frame > 0 {
		out = append(out, &instr{op: opAddImm, rd: regalloc.FromRealReg(xzrOrSp, regalloc.RegClassInt), rn: regalloc.FromRealReg(xzrOrSp, regalloc.RegClassInt), imm: frame, size: 64})
	}
	if a.conv == backend.Standard {
		out = append(out, &instr{op: opLdpPost, rd: regalloc.FromRealReg(fp, regalloc.RegClassInt), rn: regalloc.FromRealReg(lr, regalloc.RegClassInt), imm: 16})
	}
	return out
}

func (a *abi) GenMove(dst, src regalloc.VReg, typ ir.Type) backend.Instr { return genMove(dst, src, typ) }

func genMove(dst, src regalloc.VReg, typ ir.Type) backend.Instr {
	if typ.IsFloat() {
		return &instr{op: opFMovReg, rd: dst, rm: src, size: typ.Bits()}
	}
	return &instr{op: opMovReg, rd: dst, rm: src, size: typ.Bits()}
}

// regWidth is always 64 here: AAPCS64 callee-saved registers, integer or
// vector, are always saved/restored at their full width.
func regWidth(regalloc.VReg) byte { return 64 }
