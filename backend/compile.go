package backend

import (
	"github.com/regenix-dev/machgen/ir"
	"github.com/regenix-dev/machgen/regalloc"
)

// CompileResult is the output of CompileFunction: the encoded bytes, plus
// an optional human-readable disassembly for debugging and golden tests.
type CompileResult struct {
	Code   []byte
	Disasm string
}

// epilogueMarker is implemented by the placeholder Instr an ABI's
// GenEpiloguePlaceholder returns, so CompileFunction can find and replace
// every return site's placeholder once the real epilogue is known.
type epilogueMarker interface {
	EpiloguePlaceholder() bool
}

// CompileFunction runs the full pipeline: critical-edge splitting,
// lowering, register allocation, prologue/epilogue insertion, branch
// finalization, and emission.
func CompileFunction(f *ir.Function, m Machine, conv CallingConvention, settings Settings) (*CompileResult, error) {
	SplitCriticalEdges(f)

	vc, abi, err := LowerFunction(f, m, conv, settings)
	if err != nil {
		return nil, err
	}

	glue := NewRegallocFunction(vc, abi)
	alloc := &regalloc.LinearScanAllocator{Info: m.RegisterInfo()}
	result, err := alloc.Allocate(glue)
	if err != nil {
		return nil, err
	}
	FinishSpillAccounting(abi, result.NumSpillSlots)

	insertPrologue(vc, abi)
	replaceEpiloguePlaceholders(vc, abi)

	vc.CheckInvariants()

	RemoveRedundantBranches(vc)
	if err := FinalizeBranches(vc); err != nil {
		return nil, err
	}

	sink := &ByteSink{}
	Emit(vc, sink)

	return &CompileResult{Code: sink.Code, Disasm: vc.String()}, nil
}

func insertPrologue(vc *VCode, abi ABI) {
	entry := vc.Blocks[vc.EntryBlock]
	prologue := abi.GenPrologue()
	entry.Instrs = append(append([]Instr{}, prologue...), entry.Instrs...)
}

func replaceEpiloguePlaceholders(vc *VCode, abi ABI) {
	for _, b := range vc.Blocks {
		var rebuilt []Instr
		for _, instr := range b.Instrs {
			if marker, ok := instr.(epilogueMarker); ok && marker.EpiloguePlaceholder() {
				rebuilt = append(rebuilt, abi.GenEpilogue()...)
				continue
			}
			rebuilt = append(rebuilt, instr)
		}
		b.Instrs = rebuilt
	}
}
