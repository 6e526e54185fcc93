package arm64_test

import (
	"strings"
	"testing"

	"github.com/regenix-dev/machgen/backend"
	"github.com/regenix-dev/machgen/internal/testing/require"
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/isa/arm64"
)

func compile(t *testing.T, f *ir.Function, conv backend.CallingConvention, settings backend.Settings) *backend.CompileResult {
	t.Helper()
	res, err := backend.CompileFunction(f, arm64.Machine(), conv, settings)
	require.NoError(t, err)
	require.True(t, len(res.Code) > 0, "expected non-empty emitted code")
	return res
}

func TestIdentityFunction(t *testing.T) {
	sig := ir.Signature{
		Params:  []ir.Param{{Type: ir.TypeI64}},
		Results: []ir.Param{{Type: ir.TypeI64}},
	}
	f := ir.NewFunction("identity", sig)
	builder := ir.NewBuilder(f)
	entry := builder.CreateBlock()
	p := builder.AddParam(entry, ir.TypeI64)
	builder.Return(entry, []ir.Value{p})

	res := compile(t, f, backend.Standard, backend.Settings{})
	require.Contains(t, res.Disasm, "ret")
}

// TestConstantAddGoldenDisasm mirrors the original machinst backend's
// test_compile_function scenario: an (i32)->i32 function returning
// arg+0x12345678. The original lowers the constant through a PC-relative
// literal-pool load and asserts byte-identical output; this backend always
// materializes constants inline via movz/movk (see DESIGN.md), so the
// assertion here is on the shared instruction structure rather than exact
// bytes.
func TestConstantAddGoldenDisasm(t *testing.T) {
	sig := ir.Signature{
		Params:  []ir.Param{{Type: ir.TypeI32}},
		Results: []ir.Param{{Type: ir.TypeI32}},
	}
	f := ir.NewFunction("add_const", sig)
	builder := ir.NewBuilder(f)
	entry := builder.CreateBlock()
	arg := builder.AddParam(entry, ir.TypeI32)
	c := builder.Iconst(entry, ir.TypeI32, 0x12345678)
	sum := builder.Iadd(entry, arg, c)
	builder.Return(entry, []ir.Value{sum})

	res := compile(t, f, backend.Standard, backend.Settings{})
	require.Contains(t, res.Disasm, "movz")
	require.Contains(t, res.Disasm, "movk")
	require.Contains(t, res.Disasm, "add")
	require.Contains(t, res.Disasm, "ret")
}

func TestManyLiveValuesForcesSpill(t *testing.T) {
	sig := ir.Signature{Results: []ir.Param{{Type: ir.TypeI64}}}
	f := ir.NewFunction("spill_heavy", sig)
	builder := ir.NewBuilder(f)
	entry := builder.CreateBlock()

	var vals []ir.Value
	for i := int64(0); i < 40; i++ {
		vals = append(vals, builder.Iconst(entry, ir.TypeI64, i))
	}
	acc := vals[0]
	for _, v := range vals[1:] {
		acc = builder.Iadd(entry, acc, v)
	}
	builder.Return(entry, []ir.Value{acc})

	res := compile(t, f, backend.Standard, backend.Settings{})
	require.Contains(t, res.Disasm, "str", "forcing 40 simultaneously-live values should spill at least one")
	require.Contains(t, res.Disasm, "ldr")
}

func TestFallthroughElidesRedundantBranch(t *testing.T) {
	sig := ir.Signature{
		Params:  []ir.Param{{Type: ir.TypeI64}},
		Results: []ir.Param{{Type: ir.TypeI64}},
	}
	f := ir.NewFunction("branchy", sig)
	builder := ir.NewBuilder(f)
	entry := builder.CreateBlock()
	p := builder.AddParam(entry, ir.TypeI64)
	notTaken := builder.CreateBlock()
	taken := builder.CreateBlock()

	builder.Brz(entry, p, taken, nil, notTaken, nil)

	zero := builder.Iconst(taken, ir.TypeI64, 0)
	builder.Return(taken, []ir.Value{zero})

	one := builder.Iconst(notTaken, ir.TypeI64, 1)
	builder.Return(notTaken, []ir.Value{one})

	res := compile(t, f, backend.Standard, backend.Settings{})
	require.Contains(t, res.Disasm, "cbz")
	// notTaken is laid out immediately after entry, so the driver's
	// fallthrough jump to it must have been elided.
	lines := strings.Split(res.Disasm, "\n")
	uncondCount := 0
	for _, l := range lines {
		if strings.Contains(l, "\tb block") {
			uncondCount++
		}
	}
	require.Zero(t, uncondCount)
}

func TestCallClobbersCalleeSavedAcrossCall(t *testing.T) {
	sig := ir.Signature{Results: []ir.Param{{Type: ir.TypeI64}}}
	f := ir.NewFunction("caller", sig)
	builder := ir.NewBuilder(f)
	entry := builder.CreateBlock()

	keepAlive := builder.Iconst(entry, ir.TypeI64, 7)
	callSig := ir.Signature{Results: []ir.Param{{Type: ir.TypeI64}}}
	ret := builder.Call(entry, "helper", callSig, nil)
	sum := builder.Iadd(entry, keepAlive, ret)
	builder.Return(entry, []ir.Value{sum})

	res := compile(t, f, backend.Standard, backend.Settings{})
	require.Contains(t, res.Disasm, "bl helper")
}

func TestCallWithStackArgsBracketsAdjustAroundCall(t *testing.T) {
	callParams := make([]ir.Param, 9)
	for i := range callParams {
		callParams[i] = ir.Param{Type: ir.TypeI64}
	}
	callSig := ir.Signature{Params: callParams, Results: []ir.Param{{Type: ir.TypeI64}}}

	sig := ir.Signature{Results: []ir.Param{{Type: ir.TypeI64}}}
	f := ir.NewFunction("caller_many_args", sig)
	builder := ir.NewBuilder(f)
	entry := builder.CreateBlock()

	args := make([]ir.Value, len(callParams))
	for i := range args {
		args[i] = builder.Iconst(entry, ir.TypeI64, int64(i))
	}
	ret := builder.Call(entry, "many_args", callSig, args)
	builder.Return(entry, []ir.Value{ret})

	res := compile(t, f, backend.Standard, backend.Settings{})

	lines := strings.Split(res.Disasm, "\n")
	var subIdx, addIdx, blIdx int = -1, -1, -1
	for i, l := range lines {
		switch {
		case strings.HasPrefix(l, "\tsub") && subIdx == -1:
			subIdx = i
		case strings.HasPrefix(l, "\tbl many_args"):
			blIdx = i
		case strings.HasPrefix(l, "\tadd") && blIdx != -1 && addIdx == -1:
			addIdx = i
		}
	}
	require.NotEqual(t, -1, subIdx, "expected a stack pre-adjust sub before the call")
	require.NotEqual(t, -1, blIdx, "expected the call itself")
	require.NotEqual(t, -1, addIdx, "expected a stack post-adjust add after the call")
	require.True(t, subIdx < blIdx, "pre-adjust must run before the call")
	require.True(t, blIdx < addIdx, "post-adjust must run after the call returns")
}

func TestStackPassedNinthArgument(t *testing.T) {
	params := make([]ir.Param, 9)
	for i := range params {
		params[i] = ir.Param{Type: ir.TypeI64}
	}
	sig := ir.Signature{Params: params, Results: []ir.Param{{Type: ir.TypeI64}}}
	f := ir.NewFunction("ninth_arg", sig)
	builder := ir.NewBuilder(f)
	entry := builder.CreateBlock()

	var args []ir.Value
	for _, p := range params {
		args = append(args, builder.AddParam(entry, p.Type))
	}
	builder.Return(entry, []ir.Value{args[8]})

	res := compile(t, f, backend.Standard, backend.Settings{})
	require.Contains(t, res.Disasm, "ldr")
}
