package arm64

import (
	"github.com/regenix-dev/machgen/backend"
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

// abiCall is the call-site counterpart of abi: it resolves a callee's
// signature to argument/result locations the way abi resolves a function's
// own signature, but always under the standard convention, since a call out
// of generated code (even host-runtime code) still targets an ordinary
// AAPCS64 routine.
type abiCall struct {
	callee     string
	args       []backend.ABIArg
	rets       []backend.ABIArg
	stackBytes int64
}

func NewABICall(sig ir.Signature, callee string) (backend.ABICall, error) {
	args, stackBytes, err := backend.AssignArgs(sig.Params, argIntRegs, argVecRegs, backend.Standard, regalloc.RealRegInvalid)
	if err != nil {
		return nil, err
	}
	rets, _, err := backend.AssignArgs(sig.Results, argIntRegs, argVecRegs, backend.Standard, regalloc.RealRegInvalid)
	if err != nil {
		return nil, err
	}
	return &abiCall{callee: callee, args: args, rets: rets, stackBytes: stackBytes}, nil
}

func (c *abiCall) NumArgs() int { return len(c.args) }

func (c *abiCall) GenStackPreAdjust() []backend.Instr {
	if c.stackBytes == 0 {
		return nil
	}
	return []backend.Instr{spAdjust(opSubImm, c.stackBytes)}
}

func (c *abiCall) GenStackPostAdjust() []backend.Instr {
	if c.stackBytes == 0 {
		return nil
	}
	return []backend.Instr{spAdjust(opAddImm, c.stackBytes)}
}

func (c *abiCall) GenCopyRegToArg(i int, src regalloc.VReg) backend.Instr {
	arg := c.args[i]
	if arg.Kind == backend.ABIArgKindReg {
		return genMove(arg.Reg, src, arg.Type)
	}
	return &instr{op: opStore, rd: src, rn: regalloc.FromRealReg(xzrOrSp, regalloc.RegClassInt), imm: arg.Offset, size: arg.Type.Bits()}
}

func (c *abiCall) GenCopyRetvalToReg(i int, dst regalloc.VReg) backend.Instr {
	ret := c.rets[i]
	return genMove(dst, ret.Reg, ret.Type)
}

func (c *abiCall) GenCall() []backend.Instr {
	return []backend.Instr{&instr{op: opBL, callee: c.callee}}
}

func spAdjust(o op, imm int64) backend.Instr {
	sp := regalloc.FromRealReg(xzrOrSp, regalloc.RegClassInt)
	return &instr{op: o, rd: sp, rn: sp, imm: imm, size: 64}
}
