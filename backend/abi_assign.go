package backend

import (
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

// AssignArgs walks a parameter list and resolves each one to a register or
// stack-slot location, shared by every ISA's ABI construction for both
// parameter and result lists. It is architecture-independent: callers pass
// their own integer/vector argument register lists in preference order.
//
// vmCtxReg is only consulted when conv == HostRuntime; it pins every
// PurposeVMContext parameter to that fixed register instead of going
// through the normal register/stack walk.
func AssignArgs(params []ir.Param, intRegs, vecRegs []regalloc.RealReg, conv CallingConvention, vmCtxReg regalloc.RealReg) (args []ABIArg, stackBytes int64, err error) {
	args = make([]ABIArg, len(params))
	nextInt, nextVec := 0, 0
	var stackOffset int64

	for i, p := range params {
		arg := &args[i]
		arg.Index = i
		arg.Type = p.Type

		if p.Purpose == ir.PurposeVMContext {
			if conv != HostRuntime {
				return nil, 0, &UnsupportedConstructError{Reason: "VM-context argument purpose requires the host-runtime calling convention"}
			}
			if !p.Type.IsInt() {
				return nil, 0, &UnsupportedConstructError{Reason: "VM-context argument must be an integer type"}
			}
			arg.Kind = ABIArgKindReg
			arg.Reg = regalloc.FromRealReg(vmCtxReg, regalloc.RegClassInt)
			continue
		}

		switch {
		case p.Type.IsInt():
			if nextInt < len(intRegs) {
				arg.Kind = ABIArgKindReg
				arg.Reg = regalloc.FromRealReg(intRegs[nextInt], regalloc.RegClassInt)
				nextInt++
			} else {
				const slotSize = 8
				arg.Kind = ABIArgKindStack
				arg.Offset = stackOffset
				stackOffset += slotSize
			}
		case p.Type.IsFloat():
			if nextVec < len(vecRegs) {
				arg.Kind = ABIArgKindReg
				arg.Reg = regalloc.FromRealReg(vecRegs[nextVec], regalloc.RegClassVector)
				nextVec++
			} else {
				size := p.Type.Size()
				if size < 8 {
					size = 8
				}
				stackOffset = alignUp(stackOffset, size)
				arg.Kind = ABIArgKindStack
				arg.Offset = stackOffset
				stackOffset += size
			}
		default:
			return nil, 0, &UnsupportedConstructError{Reason: "unsupported argument type " + p.Type.String()}
		}
	}

	stackBytes = alignUp(stackOffset, 16)
	return args, stackBytes, nil
}

func alignUp(v, align int64) int64 {
	return (v + align - 1) &^ (align - 1)
}
