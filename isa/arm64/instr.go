package arm64

import (
	"fmt"

	"github.com/regenix-dev/machgen/backend"
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

type op byte

const (
	opMovz op = iota // movz Rd, #imm16, lsl #shift
	opMovk           // movk Rd, #imm16, lsl #shift
	opAdd            // add Rd, Rn, Rm
	opSub            // sub Rd, Rn, Rm
	opMadd           // madd Rd, Rn, Rm, xzr (multiply)
	opSubs           // subs xzr, Rn, Rm (compare, flags only)
	opCSet           // cset Rd, cond
	opMovReg         // orr Rd, xzr, Rm  (register move, int class)
	opFMovReg        // fmov Dd, Dn      (register move, vector class)
	opFMovFromInt    // fmov Dd, Xn      (raw bit pattern transfer, general to vector)
	opLoad           // ldr Rt, [Rn, #imm]
	opStore          // str Rt, [Rn, #imm]
	opAddImm         // add Rd, Rn, #imm (unsigned 12-bit)
	opSubImm         // sub Rd, Rn, #imm (unsigned 12-bit)
	opStpPre         // stp Rt1, Rt2, [sp, #-imm]!
	opLdpPost        // ldp Rt1, Rt2, [sp], #imm
	opStrPre         // str Rt, [sp, #-imm]!  (single-register clobber save)
	opLdrPost        // ldr Rt, [sp], #imm    (single-register clobber restore)
	opB              // b <target>
	opBCond          // b.cond <target>
	opCbz            // cbz Rt, <target>
	opCbnz           // cbnz Rt, <target>
	opBL             // bl <callee>
	opRet            // ret
	opEpilogue       // placeholder, replaced by the real epilogue once frame size is known
	opNop            // nop; encodes as the AArch64 NOP word 0xD503201F
)

// cond is AArch64's 4-bit condition-code field, independent of ir.ICmpCond
// so the encoder never has to reach back into the ir package.
type cond byte

const (
	condEQ cond = iota
	condNE
	condLT
	condLE
	condGT
	condGE
)

func condFromICmp(c ir.ICmpCond) cond {
	switch c {
	case ir.CondEq:
		return condEQ
	case ir.CondNe:
		return condNE
	case ir.CondSlt:
		return condLT
	case ir.CondSle:
		return condLE
	case ir.CondSgt:
		return condGT
	case ir.CondSge:
		return condGE
	default:
		panic(fmt.Sprintf("BUG: unhandled comparison predicate %v", c))
	}
}

func (c cond) encoding() uint32 {
	switch c {
	case condEQ:
		return 0b0000
	case condNE:
		return 0b0001
	case condLT:
		return 0b1011
	case condLE:
		return 0b1101
	case condGT:
		return 0b1100
	case condGE:
		return 0b1010
	default:
		panic("BUG: unhandled condition code")
	}
}

func (c cond) String() string {
	switch c {
	case condEQ:
		return "eq"
	case condNE:
		return "ne"
	case condLT:
		return "lt"
	case condLE:
		return "le"
	case condGT:
		return "gt"
	case condGE:
		return "ge"
	default:
		return "?"
	}
}

// instr is the single flat instruction type for this target: every
// opcode uses whichever subset of these fields it needs. This mirrors the
// tagged-union shape a hand-written AArch64 assembler's instruction list
// naturally takes, rather than one Go type per opcode.
type instr struct {
	op         op
	rd, rn, rm regalloc.VReg
	class      regalloc.RegClass // class of rd/rn/rm, when they're integer vs vector matters for encoding width
	imm        int64
	shift      uint8 // MOVZ/MOVK shift amount in multiples of 16 bits
	cc         cond
	size       byte // 32 or 64, access width for load/store/add/sub/movz

	target     int // VCode block index, for branches
	disp       int32
	callee     string

	term backend.Terminator
}

func (i *instr) Terminator() backend.Terminator { return i.term }

func (i *instr) EpiloguePlaceholder() bool { return i.op == opEpilogue }

// Operands implements regalloc.Instr. Order is significant: SetOperandReg
// indexes into exactly this slice.
func (i *instr) Operands() []regalloc.Operand {
	switch i.op {
	case opMovz, opStpPre, opLdpPost, opStrPre, opLdrPost, opB, opBCond, opBL, opRet, opEpilogue, opNop:
		return i.fixedOperands()
	case opMovk, opCSet:
		return append(i.fixedOperands(), regalloc.Operand{Reg: i.rd, Mode: regalloc.Modify})
	case opAdd, opSub, opMadd:
		return append(i.fixedOperands(),
			regalloc.Operand{Reg: i.rd, Mode: regalloc.Def},
			regalloc.Operand{Reg: i.rn, Mode: regalloc.Use},
			regalloc.Operand{Reg: i.rm, Mode: regalloc.Use})
	case opSubs:
		return append(i.fixedOperands(),
			regalloc.Operand{Reg: i.rn, Mode: regalloc.Use},
			regalloc.Operand{Reg: i.rm, Mode: regalloc.Use})
	case opMovReg, opFMovReg, opFMovFromInt:
		return append(i.fixedOperands(),
			regalloc.Operand{Reg: i.rd, Mode: regalloc.Def},
			regalloc.Operand{Reg: i.rm, Mode: regalloc.Use})
	case opCbz, opCbnz:
		return append(i.fixedOperands(), regalloc.Operand{Reg: i.rn, Mode: regalloc.Use})
	case opLoad:
		return append(i.fixedOperands(),
			regalloc.Operand{Reg: i.rd, Mode: regalloc.Def},
			regalloc.Operand{Reg: i.rn, Mode: regalloc.Use})
	case opStore:
		return append(i.fixedOperands(),
			regalloc.Operand{Reg: i.rd, Mode: regalloc.Use},
			regalloc.Operand{Reg: i.rn, Mode: regalloc.Use})
	case opAddImm, opSubImm:
		return append(i.fixedOperands(),
			regalloc.Operand{Reg: i.rd, Mode: regalloc.Def},
			regalloc.Operand{Reg: i.rn, Mode: regalloc.Use})
	default:
		panic(fmt.Sprintf("BUG: unhandled opcode %d in Operands", i.op))
	}
}

func (i *instr) fixedOperands() []regalloc.Operand {
	switch i.op {
	case opMovz:
		return []regalloc.Operand{{Reg: i.rd, Mode: regalloc.Def}}
	default:
		return nil
	}
}

// SetOperandReg rewrites operand idx (indexed as Operands() returns them)
// to real.
func (i *instr) SetOperandReg(idx int, real regalloc.VReg) {
	ops := i.namedOperandSlots()
	*ops[idx] = real
}

// namedOperandSlots returns, in the exact order Operands() reports them,
// pointers to the struct fields backing each operand.
func (i *instr) namedOperandSlots() []*regalloc.VReg {
	switch i.op {
	case opMovz, opStpPre, opLdpPost, opStrPre, opLdrPost, opB, opBCond, opBL, opRet, opEpilogue, opNop:
		if i.op == opMovz {
			return []*regalloc.VReg{&i.rd}
		}
		return nil
	case opMovk, opCSet:
		return []*regalloc.VReg{&i.rd}
	case opAdd, opSub, opMadd:
		return []*regalloc.VReg{&i.rd, &i.rn, &i.rm}
	case opSubs:
		return []*regalloc.VReg{&i.rn, &i.rm}
	case opMovReg, opFMovReg, opFMovFromInt:
		return []*regalloc.VReg{&i.rd, &i.rm}
	case opCbz, opCbnz:
		return []*regalloc.VReg{&i.rn}
	case opLoad:
		return []*regalloc.VReg{&i.rd, &i.rn}
	case opStore:
		return []*regalloc.VReg{&i.rd, &i.rn}
	case opAddImm, opSubImm:
		return []*regalloc.VReg{&i.rd, &i.rn}
	default:
		panic(fmt.Sprintf("BUG: unhandled opcode %d in SetOperandReg", i.op))
	}
}

func (i *instr) IsMove() (dst, src regalloc.VReg, ok bool) {
	if i.op == opMovReg || i.op == opFMovReg {
		return i.rd, i.rm, true
	}
	return regalloc.VRegInvalid, regalloc.VRegInvalid, false
}

func (i *instr) IsCall() bool { return i.op == opBL }

func (i *instr) String() string {
	switch i.op {
	case opMovz:
		return fmt.Sprintf("movz %s, #%d, lsl #%d", i.rd, i.imm, i.shift)
	case opMovk:
		return fmt.Sprintf("movk %s, #%d, lsl #%d", i.rd, i.imm, i.shift)
	case opAdd:
		return fmt.Sprintf("add %s, %s, %s", i.rd, i.rn, i.rm)
	case opSub:
		return fmt.Sprintf("sub %s, %s, %s", i.rd, i.rn, i.rm)
	case opMadd:
		return fmt.Sprintf("mul %s, %s, %s", i.rd, i.rn, i.rm)
	case opSubs:
		return fmt.Sprintf("cmp %s, %s", i.rn, i.rm)
	case opCSet:
		return fmt.Sprintf("cset %s, %s", i.rd, i.cc)
	case opMovReg, opFMovReg:
		return fmt.Sprintf("mov %s, %s", i.rd, i.rm)
	case opLoad:
		return fmt.Sprintf("ldr %s, [%s, #%d]", i.rd, i.rn, i.imm)
	case opStore:
		return fmt.Sprintf("str %s, [%s, #%d]", i.rd, i.rn, i.imm)
	case opAddImm:
		return fmt.Sprintf("add %s, %s, #%d", i.rd, i.rn, i.imm)
	case opSubImm:
		return fmt.Sprintf("sub %s, %s, #%d", i.rd, i.rn, i.imm)
	case opStpPre:
		return fmt.Sprintf("stp %s, %s, [sp, #-%d]!", i.rd, i.rn, i.imm)
	case opLdpPost:
		return fmt.Sprintf("ldp %s, %s, [sp], #%d", i.rd, i.rn, i.imm)
	case opStrPre:
		return fmt.Sprintf("str %s, [sp, #-%d]!", i.rd, i.imm)
	case opLdrPost:
		return fmt.Sprintf("ldr %s, [sp], #%d", i.rd, i.imm)
	case opFMovFromInt:
		return fmt.Sprintf("fmov %s, %s", i.rd, i.rm)
	case opB:
		return fmt.Sprintf("b block%d", i.target)
	case opBCond:
		return fmt.Sprintf("b.%s block%d", i.cc, i.target)
	case opCbz:
		return fmt.Sprintf("cbz %s, block%d", i.rn, i.target)
	case opCbnz:
		return fmt.Sprintf("cbnz %s, block%d", i.rn, i.target)
	case opBL:
		return fmt.Sprintf("bl %s", i.callee)
	case opRet:
		return "ret"
	case opEpilogue:
		return "; epilogue"
	case opNop:
		return "nop"
	default:
		return "?"
	}
}
