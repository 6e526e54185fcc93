package ir

import "fmt"

// Value is the opaque identifier of an SSA value: a block parameter, or the
// single result of an Instruction.
type Value uint32

// ValueInvalid is the zero value of Value, never produced by a Builder.
const ValueInvalid Value = 0

// BlockID is the dense index of a BasicBlock within a Function.
type BlockID uint32

// Opcode identifies the operation an Instruction performs.
type Opcode byte

const (
	OpInvalid Opcode = iota
	// OpIconst materializes an integer constant into Instruction.Imm.
	OpIconst
	// OpFconst materializes a float constant (bit pattern in Instruction.Imm).
	OpFconst
	OpIadd
	OpIsub
	OpImul
	// OpIcmp compares Args[0] and Args[1] per Instruction.Cond, producing a boolean (i32 0/1).
	OpIcmp
	// OpStackAddr produces the address of Instruction.StackSlot + Instruction.Offset.
	OpStackAddr
	// OpLoad loads Instruction.Type from the address in Args[0] + Instruction.Offset.
	OpLoad
	// OpStore stores Args[1] to the address in Args[0] + Instruction.Offset.
	OpStore
	// OpCall calls Instruction.Callee with Args, producing at most one result.
	OpCall
	// OpJump is an unconditional intra-function branch to Instruction.Targets[0]
	// passing BlockArgs[0] as the successor's block parameters.
	OpJump
	// OpBrz branches to Targets[0] (with BlockArgs[0]) if Args[0] == 0, else
	// falls through to Targets[1] (with BlockArgs[1]).
	OpBrz
	// OpBrnz is OpBrz with the polarity inverted.
	OpBrnz
	// OpReturn returns Args to the caller.
	OpReturn
)

// ICmpCond is the comparison predicate of an OpIcmp instruction.
type ICmpCond byte

const (
	CondEq ICmpCond = iota
	CondNe
	CondSlt
	CondSle
	CondSgt
	CondSge
)

// Instruction is a single IR operation. Which of Result/Imm/Targets (and the
// other fields) are meaningful depends on Op; see the Opcode doc comments.
type Instruction struct {
	Op        Opcode
	Type      Type // result type, or the access type for Load/Store
	Args      []Value
	Result    Value // ValueInvalid if the instruction has no result
	Imm       int64
	Cond      ICmpCond
	StackSlot int
	Offset    int64
	Callee    string
	CalleeSig Signature
	Targets   [2]BlockID  // valid entries depend on Op
	BlockArgs [2][]Value  // block-parameter actuals per target
}

// IsTerminator reports whether instr ends a BasicBlock.
func (i *Instruction) IsTerminator() bool {
	switch i.Op {
	case OpJump, OpBrz, OpBrnz, OpReturn:
		return true
	default:
		return false
	}
}

// BasicBlock is a single-entry, single-exit sequence of instructions ending
// in exactly one terminator.
type BasicBlock struct {
	id         BlockID
	ParamTypes []Type
	Params     []Value
	Instrs     []*Instruction

	preds []BlockID
	succs []BlockID
}

// ID returns the block's dense index.
func (b *BasicBlock) ID() BlockID { return b.id }

// Preds returns the block's predecessors, valid after Function.Finalize.
func (b *BasicBlock) Preds() []BlockID { return b.preds }

// Succs returns the block's successors, valid after Function.Finalize.
func (b *BasicBlock) Succs() []BlockID { return b.succs }

// Terminator returns the block's terminating instruction, which by
// invariant is always the last one.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		panic("BUG: block has no instructions")
	}
	return b.Instrs[len(b.Instrs)-1]
}

// Function is a single function's IR: a signature and a set of basic blocks
// in layout order, block 0 being the entry block.
type Function struct {
	Name   string
	Sig    Signature
	Blocks []*BasicBlock

	numValues      uint32
	valueTypes     map[Value]Type
	numStackSlots  int
	stackSlotSizes []int64
}

// NewFunction creates an empty function ready for Builder construction.
func NewFunction(name string, sig Signature) *Function {
	return &Function{
		Name:       name,
		Sig:        sig,
		valueTypes: make(map[Value]Type),
	}
}

// ValueType returns the type of v, which must have been produced by this
// function's Builder.
func (f *Function) ValueType(v Value) Type {
	t, ok := f.valueTypes[v]
	if !ok {
		panic(fmt.Sprintf("BUG: unknown value v%d", v))
	}
	return t
}

// NumStackSlots returns the number of IR-declared stack allocations.
func (f *Function) NumStackSlots() int { return f.numStackSlots }

// StackSlotSize returns the declared size, in bytes, of stack slot i.
func (f *Function) StackSlotSize(i int) int64 { return f.stackSlotSizes[i] }

// EntryBlock returns the function's entry block, always block 0.
func (f *Function) EntryBlock() *BasicBlock { return f.Blocks[0] }

// Block looks up a block by ID.
func (f *Function) Block(id BlockID) *BasicBlock { return f.Blocks[id] }

// Finalize computes predecessor/successor lists from the terminators of
// every block. Must be called once after the function body is fully built
// and before it is handed to the lowering driver.
func (f *Function) Finalize() {
	for _, b := range f.Blocks {
		b.succs = b.succs[:0]
		b.preds = b.preds[:0]
	}
	for _, b := range f.Blocks {
		term := b.Terminator()
		for _, t := range terminatorTargets(term) {
			b.succs = append(b.succs, t)
			dst := f.Blocks[t]
			dst.preds = append(dst.preds, b.id)
		}
	}
}

func terminatorTargets(term *Instruction) []BlockID {
	switch term.Op {
	case OpJump:
		return term.Targets[:1]
	case OpBrz, OpBrnz:
		return term.Targets[:2]
	case OpReturn:
		return nil
	default:
		panic("BUG: block does not end in a terminator")
	}
}
