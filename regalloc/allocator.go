package regalloc

import (
	"fmt"
	"sort"
)

// Result is what the allocator returns to the ISA-specific glue: the
// spill-slot count and the clobbered callee-saved set. The
// virtual-to-physical mapping is not returned; Allocate has already
// applied it to every operand through Instr.SetOperandReg. The glue then
// asks the ABI layer to emit prologue/epilogue accordingly.
type Result struct {
	NumSpillSlots int
	Clobbered     []VReg
}

// Error is a register allocation failure: a fatal compile error carrying
// enough context to report which value/class could not be placed.
type Error struct {
	Reason string
}

func (e *Error) Error() string { return "register allocation failed: " + e.Reason }

type interval struct {
	vregID VRegID
	class  RegClass
	fixed  RealReg // RealRegInvalid unless this interval is a pinned-register reservation
	start  programPoint
	end    programPoint
}

// LinearScanAllocator implements the register-allocation glue contract
// using the linear-scan algorithm (Poletto & Sarkar, "Linear Scan Register
// Allocation", TOPLAS 1999) as an alternative to a full backtracking or
// graph-coloring allocator.
type LinearScanAllocator struct {
	Info *RegisterInfo
}

// Allocate performs liveness analysis, runs linear scan to assign physical
// registers (spilling when a class is exhausted), rewrites every
// instruction's operands in place via f's Function/Block/Instr contract,
// and inserts spill stores / reload loads through the Function callbacks.
// Each virtual register keeps one location for its whole interval, so no
// edge fix-up moves are inserted and InsertMoveBefore is never called.
func (a *LinearScanAllocator) Allocate(fn Function) (*Result, error) {
	blocks := fn.Blocks()
	liveIn, liveOut := computeLiveness(blocks)

	// Assign a dense program point to every instruction, and a
	// [start,end) range to every block, by flattening in the order the
	// caller provided (expected to be reverse-post-order).
	ranges := make([]blockRange, len(blocks))
	var flat []Instr
	for i, b := range blocks {
		start := programPoint(len(flat))
		flat = append(flat, b.Instrs()...)
		ranges[i] = blockRange{start: start, end: programPoint(len(flat))}
	}

	intervals := map[VRegID]*interval{}
	extend := func(id VRegID, class RegClass, p programPoint, fixed RealReg) {
		iv, ok := intervals[id]
		if !ok {
			intervals[id] = &interval{vregID: id, class: class, fixed: fixed, start: p, end: p}
			return
		}
		if p < iv.start {
			iv.start = p
		}
		if p > iv.end {
			iv.end = p
		}
	}

	for i, b := range blocks {
		r := ranges[i]
		for id := range liveIn[i] {
			extend(id, 0, r.start, RealRegInvalid) // class fixed up below on first real sighting
		}
		for id := range liveOut[i] {
			extend(id, 0, r.end-1, RealRegInvalid)
		}
		for off, instr := range b.Instrs() {
			p := r.start + programPoint(off)
			for _, op := range instr.Operands() {
				if op.Reg.IsRealReg() {
					fixedID := syntheticFixedID(op.Reg.RealReg(), p)
					extend(fixedID, op.Reg.Class(), p, op.Reg.RealReg())
					continue
				}
				iv := intervals[op.Reg.ID()]
				class := op.Reg.Class()
				extend(op.Reg.ID(), class, p, RealRegInvalid)
				if iv != nil {
					iv.class = class
				}
			}
		}
	}

	list := make([]*interval, 0, len(intervals))
	for _, iv := range intervals {
		list = append(list, iv)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].start < list[j].start })

	free := [NumRegClasses][]RealReg{}
	for c := RegClass(0); c < NumRegClasses; c++ {
		regs := append([]RealReg(nil), a.Info.AllocatableByClass[c]...)
		// Reverse the preference order: pop from the end = most-preferred first.
		for i, j := 0, len(regs)-1; i < j; i, j = i+1, j-1 {
			regs[i], regs[j] = regs[j], regs[i]
		}
		free[c] = regs
	}

	assigned := map[VRegID]RealReg{}
	spilled := map[VRegID]int{}
	numSpillSlots := 0

	type activeEntry struct {
		iv  *interval
		reg RealReg
	}
	var active []activeEntry

	popFree := func(c RegClass) (RealReg, bool) {
		l := free[c]
		if len(l) == 0 {
			return RealRegInvalid, false
		}
		r := l[len(l)-1]
		free[c] = l[:len(l)-1]
		return r, true
	}
	pushFree := func(c RegClass, r RealReg) { free[c] = append(free[c], r) }

	expireBefore := func(start programPoint) {
		kept := active[:0]
		for _, e := range active {
			if e.iv.end < start {
				pushFree(e.iv.class, e.reg)
			} else {
				kept = append(kept, e)
			}
		}
		active = kept
		sort.Slice(active, func(i, j int) bool { return active[i].iv.end < active[j].iv.end })
	}

	for _, iv := range list {
		expireBefore(iv.start)

		if iv.fixed != RealRegInvalid {
			// Pinned operand: reserve its register for the (tiny) window it's live.
			removeFree(&free[iv.class], iv.fixed)
			active = append(active, activeEntry{iv: iv, reg: iv.fixed})
			sort.Slice(active, func(i, j int) bool { return active[i].iv.end < active[j].iv.end })
			continue
		}

		if reg, ok := popFree(iv.class); ok {
			assigned[iv.vregID] = reg
			active = append(active, activeEntry{iv: iv, reg: reg})
			sort.Slice(active, func(i, j int) bool { return active[i].iv.end < active[j].iv.end })
			continue
		}

		// Exhausted: spill the active interval (of the same class) with
		// the furthest end, if it ends later than the candidate.
		spillIdx := -1
		for i, e := range active {
			if e.iv.class != iv.class || e.iv.fixed != RealRegInvalid {
				continue
			}
			if spillIdx == -1 || e.iv.end > active[spillIdx].iv.end {
				spillIdx = i
			}
		}
		if spillIdx != -1 && active[spillIdx].iv.end > iv.end {
			victim := active[spillIdx]
			spilled[victim.iv.vregID] = numSpillSlots
			numSpillSlots++
			assigned[iv.vregID] = victim.reg
			active = append(active[:spillIdx], active[spillIdx+1:]...)
			active = append(active, activeEntry{iv: iv, reg: victim.reg})
			sort.Slice(active, func(i, j int) bool { return active[i].iv.end < active[j].iv.end })
		} else {
			spilled[iv.vregID] = numSpillSlots
			numSpillSlots++
		}
	}

	if err := rewrite(fn, blocks, assigned, spilled, a.Info); err != nil {
		return nil, err
	}

	var clobbered []VReg
	seen := map[RealReg]bool{}
	for _, r := range assigned {
		if a.Info.CalleeSaved[r] && !seen[r] {
			seen[r] = true
			clobbered = append(clobbered, FromRealReg(r, classOfReal(a.Info, r)))
		}
	}
	fn.ClobberedRegisters(clobbered)
	fn.Done()

	return &Result{NumSpillSlots: numSpillSlots, Clobbered: clobbered}, nil
}

func classOfReal(info *RegisterInfo, r RealReg) RegClass {
	for c := RegClass(0); c < NumRegClasses; c++ {
		for _, x := range info.AllocatableByClass[c] {
			if x == r {
				return c
			}
		}
	}
	return RegClassInt
}

func removeFree(l *[]RealReg, r RealReg) {
	for i, x := range *l {
		if x == r {
			*l = append((*l)[:i], (*l)[i+1:]...)
			return
		}
	}
}

// syntheticFixedID gives each pinned-register operand occurrence its own
// interval identity (point-sized, since pinned operands are always
// immediately consumed and never span an instruction boundary in this
// backend's lowering), so two different pinned operands never collide in
// the intervals map.
func syntheticFixedID(r RealReg, p programPoint) VRegID {
	return VRegID(0x8000_0000 | uint32(r)<<16 | uint32(p&0xffff))
}

// rewrite walks every instruction, replacing virtual operands with their
// assigned physical register, and for spilled virtuals, materializing a
// reload before each use and a store after each def through a reserved
// scratch register, plus a second one for the rare case of two
// simultaneously-spilled operands of the same class in one instruction.
func rewrite(fn Function, blocks []Block, assigned map[VRegID]RealReg, spilled map[VRegID]int, info *RegisterInfo) error {
	for _, b := range blocks {
		for _, instr := range b.Instrs() {
			ops := instr.Operands()
			scratchUsed := [NumRegClasses]int{}
			for i, op := range ops {
				if op.Reg.IsRealReg() {
					continue
				}
				id := op.Reg.ID()
				class := op.Reg.Class()
				if slot, ok := spilled[id]; ok {
					scratch, err := pickScratch(info, class, scratchUsed[:])
					if err != nil {
						return err
					}
					real := FromRealReg(scratch, class)
					instr.SetOperandReg(i, real)
					spillRef := spillVReg(id, class, slot).WithRealReg(scratch)
					if op.Mode == Use || op.Mode == Modify {
						fn.ReloadRegisterBefore(spillRef, instr)
					}
					if op.Mode == Def || op.Mode == Modify {
						fn.StoreRegisterAfter(spillRef, instr)
					}
					continue
				}
				real, ok := assigned[id]
				if !ok {
					return &Error{Reason: fmt.Sprintf("v%d never assigned", id)}
				}
				instr.SetOperandReg(i, FromRealReg(real, class))
			}
		}
	}
	return nil
}

func pickScratch(info *RegisterInfo, class RegClass, used []int) (RealReg, error) {
	switch used[class] {
	case 0:
		used[class]++
		if info.ScratchByClass[class] == RealRegInvalid {
			return RealRegInvalid, &Error{Reason: "no scratch register configured for class " + class.String()}
		}
		return info.ScratchByClass[class], nil
	case 1:
		used[class]++
		if info.Scratch2ByClass[class] == RealRegInvalid {
			return RealRegInvalid, &Error{Reason: "instruction needs a second simultaneous spill reload for class " + class.String() + " but none is configured"}
		}
		return info.Scratch2ByClass[class], nil
	default:
		return RealRegInvalid, &Error{Reason: "instruction needs more than two simultaneous spill reloads of class " + class.String()}
	}
}

// spillVReg encodes the spill slot index into a VReg's identity so the
// Function.StoreRegisterAfter/ReloadRegisterBefore callbacks (implemented
// by the ABI layer) can recover which slot to address; the caller then
// chains WithRealReg to also carry the scratch register the reload/store
// must target, since the original vreg id is meaningless once spilled.
func spillVReg(id VRegID, class RegClass, slot int) VReg {
	return NewVReg(VRegID(slot), class)
}
