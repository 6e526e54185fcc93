// Package regalloc defines the register-allocation glue contract: the
// Function/Block/Instr interfaces an ISA backend implements so that any
// allocator can run over any ISA's VCode, plus VReg/RealReg, a tagged
// register reference shared by every consumer of this package. A graph-
// coloring or backtracking allocator is a natural drop-in replacement;
// LinearScanAllocator below implements a simpler alternative algorithm
// instead of porting a full external allocator.
package regalloc

import "fmt"

// RegClass is a register's class: a finite set, minimally integer and
// vector.
type RegClass byte

const (
	RegClassInvalid RegClass = iota
	RegClassInt
	RegClassVector

	NumRegClasses
)

func (c RegClass) String() string {
	switch c {
	case RegClassInt:
		return "int"
	case RegClassVector:
		return "vector"
	default:
		return "invalid"
	}
}

// RealReg is the dense index of a physical register within a
// RealRegUniverse. Its numeric value also serves as the architecture's
// hardware encoding for architectures (like AArch64) whose allocatable
// integer and vector register files are each contiguously encoded 0..31;
// a backend that needs a different mapping keeps its own encoding table
// keyed by RealReg instead of overloading this value.
type RealReg uint8

// RealRegInvalid marks the absence of a physical register.
const RealRegInvalid RealReg = 0xff

// VReg is a tagged register reference: either virtual (an opaque ID,
// meaningful only pre-allocation), or backed by a RealReg (either a
// genuine physical pre-coloring, such as an ABI argument register, or the
// post-allocation result of rewriting). The encoding packs three fields
// into one machine word so VReg can be copied and compared cheaply and
// stored inside instruction operand slices without indirection:
//
//	bits 0..31:  VRegID      (opaque identity, ignored once IsRealReg())
//	bits 32..39: RealReg     (RealRegInvalid if still virtual)
//	bits 40..47: RegClass
type VReg uint64

// VRegID is the identity of a virtual register, independent of any
// register class or physical assignment.
type VRegID uint32

// VRegInvalid is the zero VReg, never produced by a valid allocation.
const VRegInvalid VReg = 0

// VRegIDInvalid marks the absence of a virtual register identity.
const VRegIDInvalid VRegID = 0xffff_ffff

// NewVReg returns a fresh, not-yet-allocated virtual register of class c.
func NewVReg(id VRegID, c RegClass) VReg {
	return VReg(RealRegInvalid)<<32 | VReg(c)<<40 | VReg(id)
}

// FromRealReg returns a VReg pinned to the physical register r.
func FromRealReg(r RealReg, c RegClass) VReg {
	return VReg(r)<<32 | VReg(c)<<40 | VReg(uint32(r))
}

// ID returns the identity bits of v.
func (v VReg) ID() VRegID { return VRegID(v & 0xffff_ffff) }

// RealReg returns the physical register backing v, or RealRegInvalid.
func (v VReg) RealReg() RealReg { return RealReg(v >> 32) }

// IsRealReg reports whether v is backed by a physical register.
func (v VReg) IsRealReg() bool { return v.RealReg() != RealRegInvalid }

// Class returns v's register class, preserved across reallocation.
func (v VReg) Class() RegClass { return RegClass(v >> 40) }

// Valid reports whether v is a well-formed register reference.
func (v VReg) Valid() bool { return v.ID() != VRegIDInvalid && v.Class() != RegClassInvalid }

// WithRealReg returns a copy of v rewritten to be backed by r. Used by the
// regalloc glue to turn the allocator's virtual-to-physical mapping into
// concrete operands; the class and identity are
// preserved so later passes (e.g. re-running an idempotency check) see a
// VReg that still round-trips through the same accessors.
func (v VReg) WithRealReg(r RealReg) VReg {
	return VReg(r)<<32 | VReg(v.Class())<<40 | VReg(v.ID())
}

func (v VReg) String() string {
	if v.IsRealReg() {
		return fmt.Sprintf("r%d(%s)", v.RealReg(), v.Class())
	}
	return fmt.Sprintf("v%d(%s)", v.ID(), v.Class())
}

// Mode is how an instruction references a register operand.
type Mode byte

const (
	Use Mode = iota
	Def
	Modify
)

func (m Mode) String() string {
	switch m {
	case Use:
		return "use"
	case Def:
		return "def"
	case Modify:
		return "modify"
	default:
		return "?"
	}
}

// Operand pairs a register reference with the mode it's referenced in, and
// an optional pin: a per-operand constraint that is either free within a
// class or pinned to a specific physical register.
type Operand struct {
	Reg     VReg
	Mode    Mode
	Pinned  RealReg // RealRegInvalid unless this operand must land on a specific register
}

// IsPinned reports whether the operand carries a fixed-register constraint.
func (o Operand) IsPinned() bool { return o.Pinned != RealRegInvalid }
