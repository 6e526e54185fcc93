package ir_test

import (
	"testing"

	"github.com/regenix-dev/machgen/internal/testing/require"
	"github.com/regenix-dev/machgen/ir"
)

func TestBuilderIaddProducesCorrectType(t *testing.T) {
	f := ir.NewFunction("add", ir.Signature{Results: []ir.Param{{Type: ir.TypeI64}}})
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	c1 := b.Iconst(entry, ir.TypeI64, 1)
	c2 := b.Iconst(entry, ir.TypeI64, 2)
	sum := b.Iadd(entry, c1, c2)
	b.Return(entry, []ir.Value{sum})

	require.Equal(t, ir.TypeI64, f.ValueType(sum))
	require.Equal(t, 3, len(entry.Instrs))
	require.True(t, entry.Terminator().IsTerminator())
	require.Equal(t, ir.OpReturn, entry.Terminator().Op)
}

func TestFinalizeComputesDiamondPredsSuccs(t *testing.T) {
	sig := ir.Signature{
		Params:  []ir.Param{{Type: ir.TypeI64}},
		Results: []ir.Param{{Type: ir.TypeI64}},
	}
	f := ir.NewFunction("diamond", sig)
	b := ir.NewBuilder(f)

	entry := b.CreateBlock()
	p := b.AddParam(entry, ir.TypeI64)
	left := b.CreateBlock()
	right := b.CreateBlock()
	join := b.CreateBlock()
	joinParam := b.AddParam(join, ir.TypeI64)

	b.Brz(entry, p, left, nil, right, nil)

	lv := b.Iconst(left, ir.TypeI64, 1)
	b.Jump(left, join, []ir.Value{lv})

	rv := b.Iconst(right, ir.TypeI64, 2)
	b.Jump(right, join, []ir.Value{rv})

	b.Return(join, []ir.Value{joinParam})

	f.Finalize()

	require.Equal(t, []ir.BlockID{left.ID(), right.ID()}, entry.Succs())
	require.Equal(t, []ir.BlockID{entry.ID()}, left.Preds())
	require.Equal(t, []ir.BlockID{entry.ID()}, right.Preds())
	require.Equal(t, []ir.BlockID{left.ID(), right.ID()}, join.Preds())
	require.Equal(t, 0, len(join.Succs()))
}

func TestFinalizeIsIdempotentAcrossRebuilds(t *testing.T) {
	f := ir.NewFunction("loop_edge", ir.Signature{})
	b := ir.NewBuilder(f)
	entry := b.CreateBlock()
	b.Jump(entry, entry, nil)

	f.Finalize()
	require.Equal(t, []ir.BlockID{entry.ID()}, entry.Succs())
	require.Equal(t, []ir.BlockID{entry.ID()}, entry.Preds())

	// Finalize must recompute from scratch, not accumulate duplicates.
	f.Finalize()
	require.Equal(t, []ir.BlockID{entry.ID()}, entry.Succs())
	require.Equal(t, []ir.BlockID{entry.ID()}, entry.Preds())
}

func TestDeclareStackSlotTracksSizes(t *testing.T) {
	f := ir.NewFunction("slots", ir.Signature{})
	b := ir.NewBuilder(f)
	s0 := b.DeclareStackSlot(8)
	s1 := b.DeclareStackSlot(16)

	require.Equal(t, 0, s0)
	require.Equal(t, 1, s1)
	require.Equal(t, 2, f.NumStackSlots())
	require.Equal(t, int64(8), f.StackSlotSize(s0))
	require.Equal(t, int64(16), f.StackSlotSize(s1))
}
