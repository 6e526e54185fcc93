// Package arm64 implements the AArch64 target: ABI resolution, IR
// lowering, and binary emission over the shared backend pipeline.
package arm64

import "github.com/regenix-dev/machgen/regalloc"

// Hardware encodings for the 32 integer and 32 vector registers. RealReg
// values for the integer class equal the AArch64 Xn encoding directly;
// vector RealReg values equal the Vn encoding. The two classes are kept in
// disjoint RealReg ranges (0-31 integer, 32-63 vector) so a RealReg alone
// is enough to know which register file it names without also carrying a
// RegClass.
const (
	x0 = regalloc.RealReg(iota)
	x1
	x2
	x3
	x4
	x5
	x6
	x7
	x8
	x9
	x10
	x11
	x12
	x13
	x14
	x15
	x16 // scratch 1
	x17 // scratch 2
	x18 // platform register, reserved, never allocated
	x19
	x20
	x21
	x22
	x23
	x24
	x25
	x26
	x27
	x28
	fp // x29, frame pointer
	lr // x30, link register
	xzrOrSp // x31: stack pointer in most addressing contexts, zero register in others
)

const (
	v0 = regalloc.RealReg(32 + iota)
	v1
	v2
	v3
	v4
	v5
	v6
	v7
	v8
	v9
	v10
	v11
	v12
	v13
	v14
	v15
	v16
	v17
	v18
	v19
	v20
	v21
	v22
	v23
	v24
	v25
	v26
	v27
	v28
	v29
	v30
	v31
)

// intName/vecName give the disassembly text for a RealReg, by hardware
// encoding. Used for both instruction printing and RegisterInfo.RealRegName.
var intNames = [32]string{
	"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7",
	"x8", "x9", "x10", "x11", "x12", "x13", "x14", "x15",
	"x16", "x17", "x18", "x19", "x20", "x21", "x22", "x23",
	"x24", "x25", "x26", "x27", "x28", "fp", "lr", "xzr",
}

func realRegName(r regalloc.RealReg) string {
	if r < 32 {
		return intNames[r]
	}
	return "v" + itoa(int(r-32))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [8]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// NewRegisterInfo builds the allocation policy for this target: caller-
// saved integer and vector registers are listed first (the allocator hands
// out earlier entries first, so they are consumed before callee-saved
// ones, minimizing save/restore traffic), x16 and v16 are reserved as the scratch pair for spill
// reload/store sequences, x17/v17 as the second scratch for the rare
// doubly-spilled instruction, and x18/x29/x30/sp are never handed to the
// allocator at all.
func NewRegisterInfo() *regalloc.RegisterInfo {
	callerSavedInt := []regalloc.RealReg{x0, x1, x2, x3, x4, x5, x6, x7, x8, x9, x10, x11, x12, x13, x14, x15}
	calleeSavedInt := []regalloc.RealReg{x19, x20, x21, x22, x23, x24, x25, x26, x27, x28}
	callerSavedVec := []regalloc.RealReg{v0, v1, v2, v3, v4, v5, v6, v7, v18, v19, v20, v21, v22, v23, v24, v25, v26, v27, v28, v29, v30, v31}
	calleeSavedVec := []regalloc.RealReg{v8, v9, v10, v11, v12, v13, v14, v15}

	allocInt := append(append([]regalloc.RealReg{}, callerSavedInt...), calleeSavedInt...)
	allocVec := append(append([]regalloc.RealReg{}, callerSavedVec...), calleeSavedVec...)

	calleeSaved := map[regalloc.RealReg]bool{}
	for _, r := range calleeSavedInt {
		calleeSaved[r] = true
	}
	for _, r := range calleeSavedVec {
		calleeSaved[r] = true
	}
	callerSaved := map[regalloc.RealReg]bool{}
	for _, r := range callerSavedInt {
		callerSaved[r] = true
	}
	for _, r := range callerSavedVec {
		callerSaved[r] = true
	}

	return &regalloc.RegisterInfo{
		AllocatableByClass: [regalloc.NumRegClasses][]regalloc.RealReg{
			regalloc.RegClassInt:    allocInt,
			regalloc.RegClassVector: allocVec,
		},
		CalleeSaved:     calleeSaved,
		CallerSaved:     callerSaved,
		ScratchByClass:  [regalloc.NumRegClasses]regalloc.RealReg{regalloc.RegClassInt: x16, regalloc.RegClassVector: v16},
		Scratch2ByClass: [regalloc.NumRegClasses]regalloc.RealReg{regalloc.RegClassInt: x17, regalloc.RegClassVector: v17},
		RealRegName:     realRegName,
	}
}

func isVector(r regalloc.RealReg) bool { return r >= 32 }

func encoding(r regalloc.RealReg) uint32 {
	if isVector(r) {
		return uint32(r - 32)
	}
	return uint32(r)
}
