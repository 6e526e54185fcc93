package regalloc

// programPoint is a dense index over every instruction in the function,
// assigned by flattening Function.Blocks() in the order given (the caller
// must hand blocks in reverse-post-order so that, in an SSA CFG, every
// definition's point precedes every use's point).
type programPoint int

type blockRange struct {
	start, end programPoint // end is exclusive
}

// computeLiveness runs the classic backward liveness dataflow (use/def per
// block, iterated live-in/live-out to a fixpoint) over the CFG given by
// Block.Preds/Succs, independent of the chosen flattening order.
func computeLiveness(blocks []Block) (liveIn, liveOut []map[VRegID]bool) {
	n := len(blocks)
	liveIn = make([]map[VRegID]bool, n)
	liveOut = make([]map[VRegID]bool, n)
	use := make([]map[VRegID]bool, n)
	def := make([]map[VRegID]bool, n)
	blockIndex := make(map[Block]int, n)
	for i, b := range blocks {
		blockIndex[b] = i
		use[i] = map[VRegID]bool{}
		def[i] = map[VRegID]bool{}
		liveIn[i] = map[VRegID]bool{}
		liveOut[i] = map[VRegID]bool{}
		for _, instr := range b.Instrs() {
			for _, op := range instr.Operands() {
				if op.Reg.IsRealReg() {
					continue
				}
				id := op.Reg.ID()
				switch op.Mode {
				case Use, Modify:
					if !def[i][id] {
						use[i][id] = true
					}
				case Def:
					def[i][id] = true
				}
			}
		}
	}

	changed := true
	for changed {
		changed = false
		for i := n - 1; i >= 0; i-- {
			b := blocks[i]
			newOut := map[VRegID]bool{}
			for _, s := range b.Succs() {
				si := blockIndex[s]
				for id := range liveIn[si] {
					newOut[id] = true
				}
			}
			newIn := map[VRegID]bool{}
			for id := range use[i] {
				newIn[id] = true
			}
			for id := range newOut {
				if !def[i][id] {
					newIn[id] = true
				}
			}
			if !sameSet(newIn, liveIn[i]) || !sameSet(newOut, liveOut[i]) {
				liveIn[i] = newIn
				liveOut[i] = newOut
				changed = true
			}
		}
	}
	return liveIn, liveOut
}

func sameSet(a, b map[VRegID]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}
