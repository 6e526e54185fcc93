package backend_test

import (
	"testing"

	"github.com/regenix-dev/machgen/backend"
	"github.com/regenix-dev/machgen/internal/testing/require"
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

var (
	intRegs = []regalloc.RealReg{0, 1, 2, 3}
	vecRegs = []regalloc.RealReg{10, 11}
)

func TestAssignArgsFillsRegistersBeforeStack(t *testing.T) {
	params := []ir.Param{
		{Type: ir.TypeI64}, {Type: ir.TypeI64}, {Type: ir.TypeI64},
		{Type: ir.TypeI64}, {Type: ir.TypeI64}, // fifth overflows intRegs
	}
	args, stackBytes, err := backend.AssignArgs(params, intRegs, vecRegs, backend.Standard, regalloc.RealRegInvalid)
	require.NoError(t, err)
	require.Equal(t, 5, len(args))
	for i := 0; i < 4; i++ {
		require.Equal(t, backend.ABIArgKindReg, args[i].Kind)
		require.Equal(t, intRegs[i], args[i].Reg.RealReg())
	}
	require.Equal(t, backend.ABIArgKindStack, args[4].Kind)
	require.Equal(t, int64(0), args[4].Offset)
	require.Equal(t, int64(16), stackBytes) // 8 bytes rounded up to 16-byte alignment
}

func TestAssignArgsVMContextRequiresHostRuntime(t *testing.T) {
	params := []ir.Param{{Type: ir.TypeI64, Purpose: ir.PurposeVMContext}}
	_, _, err := backend.AssignArgs(params, intRegs, vecRegs, backend.Standard, regalloc.RealReg(9))
	require.Error(t, err)

	args, _, err := backend.AssignArgs(params, intRegs, vecRegs, backend.HostRuntime, regalloc.RealReg(9))
	require.NoError(t, err)
	require.Equal(t, backend.ABIArgKindReg, args[0].Kind)
	require.Equal(t, regalloc.RealReg(9), args[0].Reg.RealReg())
}

func TestAssignArgsRejectsUntypedParam(t *testing.T) {
	params := []ir.Param{{}}
	_, _, err := backend.AssignArgs(params, intRegs, vecRegs, backend.Standard, regalloc.RealRegInvalid)
	require.Error(t, err)
}

func TestSplitCriticalEdgesInsertsBlockOnlyForCriticalEdges(t *testing.T) {
	sig := ir.Signature{Params: []ir.Param{{Type: ir.TypeI64}}, Results: []ir.Param{{Type: ir.TypeI64}}}
	f := ir.NewFunction("diamond", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	p := b.AddParam(entry, ir.TypeI64)
	left := b.CreateBlock()
	right := b.CreateBlock()
	join := b.CreateBlock()
	jp := b.AddParam(join, ir.TypeI64)

	b.Brz(entry, p, left, nil, right, nil)
	lv := b.Iconst(left, ir.TypeI64, 1)
	b.Jump(left, join, []ir.Value{lv})
	rv := b.Iconst(right, ir.TypeI64, 2)
	b.Jump(right, join, []ir.Value{rv})
	b.Return(join, []ir.Value{jp})

	before := len(f.Blocks)
	backend.SplitCriticalEdges(f)

	// entry->left and entry->right each have single-pred destinations, so
	// neither edge is critical; no blocks should have been inserted.
	require.Equal(t, before, len(f.Blocks))
}

func TestSplitCriticalEdgesSplitsTrueCriticalEdge(t *testing.T) {
	sig := ir.Signature{Params: []ir.Param{{Type: ir.TypeI64}}, Results: []ir.Param{{Type: ir.TypeI64}}}
	f := ir.NewFunction("critical", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	p := b.AddParam(entry, ir.TypeI64)
	mid := b.CreateBlock()
	join := b.CreateBlock()
	jp := b.AddParam(join, ir.TypeI64)

	// entry has two successors (mid, join) and join has two predecessors
	// (entry, mid): the entry->join edge is critical.
	b.Brz(entry, p, mid, nil, join, []ir.Value{p})
	mv := b.Iconst(mid, ir.TypeI64, 1)
	b.Jump(mid, join, []ir.Value{mv})
	b.Return(join, []ir.Value{jp})

	before := len(f.Blocks)
	backend.SplitCriticalEdges(f)
	require.Equal(t, before+1, len(f.Blocks))

	split := f.Block(ir.BlockID(before))
	require.Equal(t, ir.OpJump, split.Terminator().Op)
	require.Equal(t, join.ID(), split.Terminator().Targets[0])
}
