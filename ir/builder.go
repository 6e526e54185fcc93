package ir

// Builder provides the construction API used to hand-assemble or
// test-generate a Function. A real frontend would build IR through a more
// elaborate API (e.g. with variable definitions resolved via block sealing);
// since upstream optimization is out of scope here, Builder only offers the
// direct, already-SSA form construction the lowering driver expects.
type Builder struct {
	f *Function
}

// NewBuilder wraps f for incremental construction.
func NewBuilder(f *Function) *Builder { return &Builder{f: f} }

// CreateBlock appends a new, empty basic block and returns it.
func (b *Builder) CreateBlock() *BasicBlock {
	blk := &BasicBlock{id: BlockID(len(b.f.Blocks))}
	b.f.Blocks = append(b.f.Blocks, blk)
	return blk
}

// AddParam adds a block parameter of type t to blk and returns its Value.
func (b *Builder) AddParam(blk *BasicBlock, t Type) Value {
	v := b.newValue(t)
	blk.ParamTypes = append(blk.ParamTypes, t)
	blk.Params = append(blk.Params, v)
	return v
}

// DeclareStackSlot reserves an IR-level stack allocation of the given size
// and returns its index.
func (b *Builder) DeclareStackSlot(size int64) int {
	idx := b.f.numStackSlots
	b.f.numStackSlots++
	b.f.stackSlotSizes = append(b.f.stackSlotSizes, size)
	return idx
}

func (b *Builder) newValue(t Type) Value {
	b.f.numValues++
	v := Value(b.f.numValues)
	b.f.valueTypes[v] = t
	return v
}

func (b *Builder) emit(blk *BasicBlock, instr *Instruction) Value {
	if instr.Result != ValueInvalid {
		// caller already assigned Result via newValue
	}
	blk.Instrs = append(blk.Instrs, instr)
	return instr.Result
}

// Iconst appends an integer-constant instruction.
func (b *Builder) Iconst(blk *BasicBlock, t Type, imm int64) Value {
	v := b.newValue(t)
	b.emit(blk, &Instruction{Op: OpIconst, Type: t, Imm: imm, Result: v})
	return v
}

// Iadd appends an integer add.
func (b *Builder) Iadd(blk *BasicBlock, x, y Value) Value {
	return b.binop(blk, OpIadd, x, y)
}

// Isub appends an integer subtract.
func (b *Builder) Isub(blk *BasicBlock, x, y Value) Value {
	return b.binop(blk, OpIsub, x, y)
}

// Imul appends an integer multiply.
func (b *Builder) Imul(blk *BasicBlock, x, y Value) Value {
	return b.binop(blk, OpImul, x, y)
}

func (b *Builder) binop(blk *BasicBlock, op Opcode, x, y Value) Value {
	t := b.f.ValueType(x)
	v := b.newValue(t)
	b.emit(blk, &Instruction{Op: op, Type: t, Args: []Value{x, y}, Result: v})
	return v
}

// Icmp appends an integer comparison, producing an i32 0/1.
func (b *Builder) Icmp(blk *BasicBlock, cond ICmpCond, x, y Value) Value {
	v := b.newValue(TypeI32)
	b.emit(blk, &Instruction{Op: OpIcmp, Type: TypeI32, Args: []Value{x, y}, Cond: cond, Result: v})
	return v
}

// StackAddr appends an instruction producing the address of slot+offset.
func (b *Builder) StackAddr(blk *BasicBlock, slot int, offset int64) Value {
	v := b.newValue(TypeI64)
	b.emit(blk, &Instruction{Op: OpStackAddr, Type: TypeI64, StackSlot: slot, Offset: offset, Result: v})
	return v
}

// Load appends a memory load of type t from addr+offset.
func (b *Builder) Load(blk *BasicBlock, t Type, addr Value, offset int64) Value {
	v := b.newValue(t)
	b.emit(blk, &Instruction{Op: OpLoad, Type: t, Args: []Value{addr}, Offset: offset, Result: v})
	return v
}

// Store appends a memory store of val to addr+offset.
func (b *Builder) Store(blk *BasicBlock, addr, val Value, offset int64) {
	t := b.f.ValueType(val)
	b.emit(blk, &Instruction{Op: OpStore, Type: t, Args: []Value{addr, val}, Offset: offset})
}

// Call appends a direct call and returns its result: a fresh Value of
// sig.Results[0]'s type, or ValueInvalid if sig has no results.
func (b *Builder) Call(blk *BasicBlock, callee string, sig Signature, args []Value) Value {
	var v Value
	if len(sig.Results) > 0 {
		v = b.newValue(sig.Results[0].Type)
	}
	b.emit(blk, &Instruction{Op: OpCall, Args: args, Callee: callee, CalleeSig: sig, Result: v})
	return v
}

// Jump appends an unconditional branch to target, passing blockArgs.
func (b *Builder) Jump(blk *BasicBlock, target *BasicBlock, blockArgs []Value) {
	instr := &Instruction{Op: OpJump}
	instr.Targets[0] = target.id
	instr.BlockArgs[0] = blockArgs
	b.emit(blk, instr)
}

// Brz appends a branch taken when cond == 0.
func (b *Builder) Brz(blk *BasicBlock, cond Value, taken *BasicBlock, takenArgs []Value, notTaken *BasicBlock, notTakenArgs []Value) {
	b.condBranch(blk, OpBrz, cond, taken, takenArgs, notTaken, notTakenArgs)
}

// Brnz appends a branch taken when cond != 0.
func (b *Builder) Brnz(blk *BasicBlock, cond Value, taken *BasicBlock, takenArgs []Value, notTaken *BasicBlock, notTakenArgs []Value) {
	b.condBranch(blk, OpBrnz, cond, taken, takenArgs, notTaken, notTakenArgs)
}

func (b *Builder) condBranch(blk *BasicBlock, op Opcode, cond Value, taken *BasicBlock, takenArgs []Value, notTaken *BasicBlock, notTakenArgs []Value) {
	instr := &Instruction{Op: op, Args: []Value{cond}}
	instr.Targets[0] = taken.id
	instr.Targets[1] = notTaken.id
	instr.BlockArgs[0] = takenArgs
	instr.BlockArgs[1] = notTakenArgs
	b.emit(blk, instr)
}

// Return appends the function return terminator.
func (b *Builder) Return(blk *BasicBlock, vals []Value) {
	b.emit(blk, &Instruction{Op: OpReturn, Args: vals})
}
