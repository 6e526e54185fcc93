package regalloc_test

import (
	"testing"

	"github.com/regenix-dev/machgen/internal/testing/require"
	"github.com/regenix-dev/machgen/regalloc"
)

type fakeInstr struct {
	ops   []regalloc.Operand
	call  bool
	move  bool
	mvDst regalloc.VReg
	mvSrc regalloc.VReg
}

func (i *fakeInstr) Operands() []regalloc.Operand              { return i.ops }
func (i *fakeInstr) SetOperandReg(idx int, real regalloc.VReg) { i.ops[idx].Reg = real }
func (i *fakeInstr) IsCall() bool                              { return i.call }
func (i *fakeInstr) IsMove() (dst, src regalloc.VReg, ok bool) {
	if !i.move {
		return 0, 0, false
	}
	return i.mvDst, i.mvSrc, true
}

func use(v regalloc.VReg) regalloc.Operand {
	return regalloc.Operand{Reg: v, Mode: regalloc.Use, Pinned: regalloc.RealRegInvalid}
}
func def(v regalloc.VReg) regalloc.Operand {
	return regalloc.Operand{Reg: v, Mode: regalloc.Def, Pinned: regalloc.RealRegInvalid}
}

type fakeBlock struct {
	id     int
	instrs []regalloc.Instr
	preds  []regalloc.Block
	succs  []regalloc.Block
	entry  bool
}

func (b *fakeBlock) ID() int                  { return b.id }
func (b *fakeBlock) Instrs() []regalloc.Instr { return b.instrs }
func (b *fakeBlock) Preds() []regalloc.Block  { return b.preds }
func (b *fakeBlock) Succs() []regalloc.Block  { return b.succs }
func (b *fakeBlock) Entry() bool              { return b.entry }

type fakeFunction struct {
	blocks    []regalloc.Block
	clobbered []regalloc.VReg
	stores    int
	reloads   int
	moves     int
	done      bool
}

func (f *fakeFunction) Blocks() []regalloc.Block                                      { return f.blocks }
func (f *fakeFunction) ClobberedRegisters(regs []regalloc.VReg)                       { f.clobbered = regs }
func (f *fakeFunction) StoreRegisterAfter(regalloc.VReg, regalloc.Instr)              { f.stores++ }
func (f *fakeFunction) ReloadRegisterBefore(regalloc.VReg, regalloc.Instr)            { f.reloads++ }
func (f *fakeFunction) InsertMoveBefore(regalloc.VReg, regalloc.VReg, regalloc.Instr) { f.moves++ }
func (f *fakeFunction) Done()                                                         { f.done = true }

func basicInfo(allocatable ...regalloc.RealReg) *regalloc.RegisterInfo {
	info := &regalloc.RegisterInfo{}
	info.AllocatableByClass[regalloc.RegClassInt] = allocatable
	info.CalleeSaved = map[regalloc.RealReg]bool{2: true}
	info.CallerSaved = map[regalloc.RealReg]bool{1: true, 3: true}
	info.ScratchByClass[regalloc.RegClassInt] = regalloc.RealReg(9)
	info.Scratch2ByClass[regalloc.RegClassInt] = regalloc.RealRegInvalid
	info.RealRegName = func(r regalloc.RealReg) string { return "x" }
	return info
}

func TestAllocateNonOverlappingNeedsNoSpill(t *testing.T) {
	v1 := regalloc.NewVReg(1, regalloc.RegClassInt)
	v2 := regalloc.NewVReg(2, regalloc.RegClassInt)

	i0 := &fakeInstr{ops: []regalloc.Operand{def(v1)}}
	i1 := &fakeInstr{ops: []regalloc.Operand{def(v2)}}
	i2 := &fakeInstr{ops: []regalloc.Operand{use(v1), use(v2)}}
	entry := &fakeBlock{id: 0, instrs: []regalloc.Instr{i0, i1, i2}, entry: true}

	fn := &fakeFunction{blocks: []regalloc.Block{entry}}
	alloc := &regalloc.LinearScanAllocator{Info: basicInfo(1, 2, 3)}

	res, err := alloc.Allocate(fn)
	require.NoError(t, err)
	require.Zero(t, res.NumSpillSlots)
	require.True(t, fn.done)
	require.True(t, i0.ops[0].Reg.IsRealReg())
	require.True(t, i2.ops[0].Reg.IsRealReg())
	require.NotEqual(t, i2.ops[0].Reg.RealReg(), i2.ops[1].Reg.RealReg())
}

func TestAllocateSpillsWhenRegistersExhausted(t *testing.T) {
	v1 := regalloc.NewVReg(1, regalloc.RegClassInt)
	v2 := regalloc.NewVReg(2, regalloc.RegClassInt)

	i0 := &fakeInstr{ops: []regalloc.Operand{def(v1)}}
	i1 := &fakeInstr{ops: []regalloc.Operand{def(v2)}}
	i2 := &fakeInstr{ops: []regalloc.Operand{use(v1), use(v2)}}
	entry := &fakeBlock{id: 0, instrs: []regalloc.Instr{i0, i1, i2}, entry: true}

	fn := &fakeFunction{blocks: []regalloc.Block{entry}}
	// Only a single allocatable register for two simultaneously-live values.
	alloc := &regalloc.LinearScanAllocator{Info: basicInfo(1)}

	res, err := alloc.Allocate(fn)
	require.NoError(t, err)
	require.Equal(t, 1, res.NumSpillSlots)
	require.True(t, fn.reloads+fn.stores > 0)
}

func TestAllocateFailsWithoutScratchOnSpill(t *testing.T) {
	v1 := regalloc.NewVReg(1, regalloc.RegClassInt)
	v2 := regalloc.NewVReg(2, regalloc.RegClassInt)

	i0 := &fakeInstr{ops: []regalloc.Operand{def(v1)}}
	i1 := &fakeInstr{ops: []regalloc.Operand{def(v2)}}
	i2 := &fakeInstr{ops: []regalloc.Operand{use(v1), use(v2)}}
	entry := &fakeBlock{id: 0, instrs: []regalloc.Instr{i0, i1, i2}, entry: true}

	fn := &fakeFunction{blocks: []regalloc.Block{entry}}
	info := basicInfo(1)
	info.ScratchByClass[regalloc.RegClassInt] = regalloc.RealRegInvalid

	alloc := &regalloc.LinearScanAllocator{Info: info}
	_, err := alloc.Allocate(fn)
	require.Error(t, err)
}
