package backend

import "github.com/regenix-dev/machgen/ir"

// SplitCriticalEdges rewrites f in place so that no edge is critical: an
// edge is critical when its source has more than one successor and its
// destination has more than one predecessor. Register-allocation edge
// fix-up moves need a place to live that doesn't also run on a different
// predecessor's path into the same block, so every critical edge gets an
// empty block spliced in to host them. Call this after the function body
// is complete and before handing it to the lowering driver. It calls
// f.Finalize both before and after splitting, so predecessor/successor
// lists are current for the new block count and edges when it returns.
func SplitCriticalEdges(f *ir.Function) {
	f.Finalize()

	multiSucc := make([]bool, len(f.Blocks))
	multiPred := make([]bool, len(f.Blocks))
	for _, b := range f.Blocks {
		multiSucc[b.ID()] = len(b.Succs()) > 1
	}
	for _, b := range f.Blocks {
		multiPred[b.ID()] = len(b.Preds()) > 1
	}

	builder := ir.NewBuilder(f)

	type criticalEdge struct {
		from, to ir.BlockID
		slot     int // which Targets slot on from's terminator
	}
	var edges []criticalEdge
	for _, b := range f.Blocks {
		term := b.Terminator()
		for slot, to := range targetsOf(term) {
			if multiSucc[b.ID()] && multiPred[to] {
				edges = append(edges, criticalEdge{from: b.ID(), to: to, slot: slot})
			}
		}
	}

	for _, e := range edges {
		from := f.Block(e.from)
		term := from.Terminator()
		blockArgs := term.BlockArgs[e.slot]

		split := builder.CreateBlock()
		builder.Jump(split, f.Block(e.to), blockArgs)

		term.Targets[e.slot] = split.ID()
		term.BlockArgs[e.slot] = nil
	}

	f.Finalize()
}

func targetsOf(term *ir.Instruction) map[int]ir.BlockID {
	switch term.Op {
	case ir.OpJump:
		return map[int]ir.BlockID{0: term.Targets[0]}
	case ir.OpBrz, ir.OpBrnz:
		return map[int]ir.BlockID{0: term.Targets[0], 1: term.Targets[1]}
	default:
		return nil
	}
}
