package arm64

import (
	"fmt"

	"github.com/regenix-dev/machgen/backend"
)

// Size returns the encoded length of i in bytes. Every AArch64 instruction
// modeled here is a single 4-byte word, except the epilogue placeholder,
// which reports 0 bytes; CompileFunction replaces it with the real
// epilogue instructions before branch offsets are computed.
func (i *instr) Size() int64 {
	if i.op == opEpilogue {
		return 0
	}
	return 4
}

func sf64(size byte) uint32 {
	if size == 64 {
		return 1
	}
	return 0
}

func rEnc(r uint8) uint32 { return uint32(r) }

// Emit serializes i's bytes to sink. Physical registers are read off
// rd/rn/rm's RealReg(); by the time Emit runs, FinalizeBranches has
// already patched disp on every branch and register allocation has
// resolved every operand to a real register, so no VReg here is still
// virtual.
func (i *instr) Emit(sink backend.CodeSink) {
	switch i.op {
	case opMovz:
		sink.Put4(encMoveWideImm(0b10, uint32(i.size), uint32(i.shift/16), uint32(i.imm), encoding(i.rd.RealReg())))
	case opMovk:
		sink.Put4(encMoveWideImm(0b11, uint32(i.size), uint32(i.shift/16), uint32(i.imm), encoding(i.rd.RealReg())))
	case opAdd:
		sink.Put4(encAddSubShifted(0, uint32(i.size), encoding(i.rm.RealReg()), encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opSub:
		sink.Put4(encAddSubShifted(1, uint32(i.size), encoding(i.rm.RealReg()), encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opMadd:
		sink.Put4(encMadd(uint32(i.size), encoding(i.rm.RealReg()), encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opSubs:
		sink.Put4(encAddSubShiftedFlags(uint32(i.size), encoding(i.rm.RealReg()), encoding(i.rn.RealReg())))
	case opCSet:
		sink.Put4(encCSet(uint32(i.size), i.cc, encoding(i.rd.RealReg())))
	case opMovReg:
		sink.Put4(encOrrShifted(uint32(i.size), encoding(i.rm.RealReg()), encoding(i.rd.RealReg())))
	case opFMovReg:
		sink.Put4(encFMovReg(encoding(i.rm.RealReg()), encoding(i.rd.RealReg())))
	case opFMovFromInt:
		sink.Put4(encFMovFromInt(i.size, encoding(i.rm.RealReg()), encoding(i.rd.RealReg())))
	case opLoad:
		sink.Put4(encLoadStoreUnsignedImm(true, isVector(i.rd.RealReg()), i.size, i.imm, encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opStore:
		sink.Put4(encLoadStoreUnsignedImm(false, isVector(i.rd.RealReg()), i.size, i.imm, encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opAddImm:
		sink.Put4(encAddSubImm(0, uint32(i.size), uint32(i.imm), encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opSubImm:
		sink.Put4(encAddSubImm(1, uint32(i.size), uint32(i.imm), encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opStpPre:
		sink.Put4(encStpPre(isVector(i.rd.RealReg()), int32(i.imm), encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opLdpPost:
		sink.Put4(encLdpPost(isVector(i.rd.RealReg()), int32(i.imm), encoding(i.rn.RealReg()), encoding(i.rd.RealReg())))
	case opStrPre:
		sink.Put4(encStrPre(isVector(i.rd.RealReg()), int32(i.imm), encoding(i.rd.RealReg())))
	case opLdrPost:
		sink.Put4(encLdrPost(isVector(i.rd.RealReg()), int32(i.imm), encoding(i.rd.RealReg())))
	case opB:
		sink.Put4(encB(i.disp))
	case opBCond:
		sink.Put4(encBCond(i.cc, i.disp))
	case opCbz:
		sink.Put4(encCbz(false, i.size, i.disp, encoding(i.rn.RealReg())))
	case opCbnz:
		sink.Put4(encCbz(true, i.size, i.disp, encoding(i.rn.RealReg())))
	case opBL:
		sink.RecordRelocation("call26", i.callee, 0)
		sink.Put4(0x94000000)
	case opRet:
		sink.Put4(0xD65F0000 | rEnc(uint8(lr))<<5)
	case opNop:
		sink.Put4(0xD503201F)
	case opEpilogue:
		panic("BUG: epilogue placeholder reached Emit; replaceEpiloguePlaceholders must run first")
	default:
		panic(fmt.Sprintf("BUG: unhandled opcode %d in Emit", i.op))
	}
}

// SetBranchDisplacement patches a branch's PC-relative byte displacement.
// Returns false if it overflows the instruction's encodable range, in
// which case compilation aborts rather than re-materializing a long form.
func (i *instr) SetBranchDisplacement(deltaBytes int64) bool {
	switch i.op {
	case opB:
		// 26-bit signed word immediate: +/-128MiB.
		if deltaBytes < -(1<<27) || deltaBytes >= 1<<27 || deltaBytes%4 != 0 {
			return false
		}
		i.disp = int32(deltaBytes)
		return true
	case opBCond, opCbz, opCbnz:
		// 19-bit signed word immediate: +/-1MiB.
		if deltaBytes < -(1<<20) || deltaBytes >= 1<<20 || deltaBytes%4 != 0 {
			return false
		}
		i.disp = int32(deltaBytes)
		return true
	default:
		return true
	}
}

// Move-wide immediate (MOVZ/MOVK), 64/32-bit: opc(2) sf(1) 100101 hw(2) imm16(16) Rd(5).
func encMoveWideImm(opc, size, hw, imm16, rd uint32) uint32 {
	return opc<<29 | sf64(byte(size))<<31 | 0b100101<<23 | hw<<21 | (imm16&0xffff)<<5 | rd
}

// ADD/SUB (shifted register), no shift: sf op S 01011 shift(2)=00 0 Rm imm6=0 Rn Rd.
func encAddSubShifted(op, size, rm, rn, rd uint32) uint32 {
	return sf64(byte(size))<<31 | op<<30 | 0<<29 | 0b01011<<24 | 0<<22 | 0<<21 | rm<<16 | 0<<10 | rn<<5 | rd
}

// SUBS (shifted register) with Rd = xzr (31): used for CMP.
func encAddSubShiftedFlags(size, rm, rn uint32) uint32 {
	return sf64(byte(size))<<31 | 1<<30 | 1<<29 | 0b01011<<24 | 0<<22 | 0<<21 | rm<<16 | 0<<10 | rn<<5 | 31
}

// MADD: sf 0011011000 Rm 0 Ra Rn Rd, with Ra = xzr (31) for plain multiply.
func encMadd(size, rm, rn, rd uint32) uint32 {
	return sf64(byte(size))<<31 | 0b0011011000<<21 | rm<<16 | 0<<15 | 31<<10 | rn<<5 | rd
}

// CSET Rd, cond == CSINC Rd, xzr, xzr, invert(cond).
func encCSet(size uint32, c cond, rd uint32) uint32 {
	invCond := c.encoding() ^ 1
	return sf64(byte(size))<<31 | 0<<30 | 0<<29 | 0b11010100<<21 | 31<<16 | invCond<<12 | 1<<10 | 31<<5 | rd
}

// ORR (shifted register), Rn = xzr (31): register-move alias (MOV Rd, Rm).
func encOrrShifted(size, rm, rd uint32) uint32 {
	return sf64(byte(size))<<31 | 0b01<<29 | 0b01010<<24 | 0<<22 | 0<<21 | rm<<16 | 0<<10 | 31<<5 | rd
}

// FMOV (register), double-precision.
func encFMovReg(rn, rd uint32) uint32 {
	return 0x1E604000 | rn<<5 | rd
}

// FMOV (general, to vector): raw bit-pattern transfer from a GPR into the
// low bits of a vector register, distinct from the vector-vector FMOV
// encFMovReg encodes. sf selects the 64-bit (double) vs 32-bit (single)
// form: 1001 1110 0110 0111 0000 00nn nnnd dddd (64-bit), 0001 1110 0010
// 0111 0000 00nn nnnd dddd (32-bit).
func encFMovFromInt(size byte, rn, rd uint32) uint32 {
	if size == 64 {
		return 0x9E670000 | rn<<5 | rd
	}
	return 0x1E270000 | rn<<5 | rd
}

// CBZ/CBNZ: sf 011010 op(0=Z,1=NZ) imm19 Rt.
func encCbz(nonZero bool, size byte, deltaBytes int32, rt uint32) uint32 {
	op := uint32(0)
	if nonZero {
		op = 1
	}
	imm19 := uint32(deltaBytes/4) & 0x7ffff
	return sf64(size)<<31 | 0b011010<<25 | op<<24 | imm19<<5 | rt
}

// LDR/STR (unsigned offset): size(2) 111 0 01 opc(2) imm12 Rn Rt. Vector
// variants use a 1-bit size extension but this backend only spills/reloads
// 64-bit-wide slots, so V=1 with size=11 covers both Xt and Dt.
func encLoadStoreUnsignedImm(isLoad, vector bool, size byte, imm int64, rn, rt uint32) uint32 {
	sizeBits := uint32(0b11)
	if size == 32 {
		sizeBits = 0b10
	}
	v := uint32(0)
	if vector {
		v = 1
	}
	opc := uint32(0)
	if isLoad {
		opc = 1
	}
	scale := int64(8)
	if size == 32 {
		scale = 4
	}
	imm12 := uint32(imm / scale)
	return sizeBits<<30 | 0b111<<27 | v<<26 | 0b01<<24 | opc<<22 | (imm12&0xfff)<<10 | rn<<5 | rt
}

// ADD/SUB (immediate), 12-bit unsigned, no shift: sf op S 100010 sh(1)=0 imm12 Rn Rd.
func encAddSubImm(op, size, imm12, rn, rd uint32) uint32 {
	return sf64(byte(size))<<31 | op<<30 | 0<<29 | 0b100010<<23 | 0<<22 | (imm12&0xfff)<<10 | rn<<5 | rd
}

// STP (pre-index, 64-bit): pairs Rt1=rd,Rt2=rn at [sp, #-imm]!. opc(2)=10
// for 64-bit integer pairs, 01 for double-precision vector pairs.
// 1 0 1 0100 110 imm7 Rt2 Rn Rt1.
func encStpPre(vector bool, negImm int32, rt2, rt1 uint32) uint32 {
	opc := uint32(0b10)
	v := uint32(0)
	if vector {
		opc = 0b01
		v = 1
	}
	imm7 := uint32((-negImm / 8) & 0x7f)
	return opc<<30 | 0b101<<27 | v<<26 | 0b0<<25 | 0b11<<23 | imm7<<15 | rt2<<10 | uint32(xzrOrSp)<<5 | rt1
}

// LDP (post-index, 64-bit). Identical to STP's encoding but with the L
// (load) bit at position 22 set.
func encLdpPost(vector bool, imm int32, rt2, rt1 uint32) uint32 {
	opc := uint32(0b10)
	v := uint32(0)
	if vector {
		opc = 0b01
		v = 1
	}
	imm7 := uint32((imm / 8) & 0x7f)
	return opc<<30 | 0b101<<27 | v<<26 | 0b0<<25 | 0b01<<23 | 1<<22 | imm7<<15 | rt2<<10 | uint32(xzrOrSp)<<5 | rt1
}

// STR (pre-index, single register): size 111 0 00 opc(0=store) 0 imm9 11 Rn Rt.
func encStrPre(vector bool, negImm int32, rt uint32) uint32 {
	size := uint32(0b11)
	v := uint32(0)
	if vector {
		v = 1
	}
	imm9 := uint32(-negImm) & 0x1ff
	return size<<30 | 0b111<<27 | v<<26 | 0b00<<24 | 0<<22 | 0<<21 | imm9<<12 | 0b11<<10 | uint32(xzrOrSp)<<5 | rt
}

// LDR (post-index, single register): size 111 0 00 opc(1=load) 0 imm9 01 Rn Rt.
func encLdrPost(vector bool, imm int32, rt uint32) uint32 {
	size := uint32(0b11)
	v := uint32(0)
	if vector {
		v = 1
	}
	imm9 := uint32(imm) & 0x1ff
	return size<<30 | 0b111<<27 | v<<26 | 0b00<<24 | 1<<22 | 0<<21 | imm9<<12 | 0b01<<10 | uint32(xzrOrSp)<<5 | rt
}

// B: 0 00101 imm26.
func encB(deltaBytes int32) uint32 {
	imm26 := uint32(deltaBytes/4) & 0x3ffffff
	return 0b000101<<26 | imm26
}

// B.cond: 01010100 imm19 0 cond.
func encBCond(c cond, deltaBytes int32) uint32 {
	imm19 := uint32(deltaBytes/4) & 0x7ffff
	return 0b01010100<<24 | imm19<<5 | 0<<4 | c.encoding()
}
