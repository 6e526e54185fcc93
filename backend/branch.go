package backend

// RemoveRedundantBranches drops any trailing unconditional branch whose
// target is the block immediately following it in layout order, since
// execution already falls through there. Must run after block layout is
// fixed (no further reordering) and before FinalizeBranches computes
// offsets, since removing an instruction changes every later offset.
func RemoveRedundantBranches(vc *VCode) {
	for i, b := range vc.Blocks {
		if len(b.Instrs) == 0 {
			continue
		}
		last := b.Instrs[len(b.Instrs)-1]
		term := last.Terminator()
		if term.Kind == TermUncond && term.Target == i+1 {
			b.Instrs = b.Instrs[:len(b.Instrs)-1]
		}
	}
}

// FinalizeBranches computes each block's final byte offset from the
// program start, then patches every branch instruction's displacement
// immediate in place. It returns BranchRangeExhaustionError if any
// displacement does not fit its instruction's encoding; this backend does
// not re-materialize a long-branch sequence to recover (see DESIGN.md).
func FinalizeBranches(vc *VCode) error {
	offsets := make([]int64, len(vc.Blocks)+1)
	var cur int64
	for i, b := range vc.Blocks {
		offsets[i] = cur
		for _, instr := range b.Instrs {
			cur += instr.Size()
		}
	}
	offsets[len(vc.Blocks)] = cur

	for i, b := range vc.Blocks {
		instrOffset := offsets[i]
		for _, instr := range b.Instrs {
			term := instr.Terminator()
			if term.Kind == TermUncond || term.Kind == TermCond {
				targetOffset := offsets[term.Target]
				delta := targetOffset - instrOffset
				if !instr.SetBranchDisplacement(delta) {
					return &BranchRangeExhaustionError{FromOffset: instrOffset, ToOffset: targetOffset}
				}
			}
			instrOffset += instr.Size()
		}
	}
	return nil
}
