package backend

import "fmt"

// UnsupportedConstructError reports an IR construct outside this backend's
// coverage: an unusual argument purpose, an unsupported type, or a return
// requiring a hidden pointer. Fatal, with no partial recovery.
type UnsupportedConstructError struct {
	Reason string
	Func   string
}

func (e *UnsupportedConstructError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("unsupported construct in %s: %s", e.Func, e.Reason)
	}
	return "unsupported construct: " + e.Reason
}

// BranchRangeExhaustionError reports a branch displacement that does not
// fit the target instruction's encoding. This backend detects the
// condition and aborts compilation rather than re-materializing a long
// branch form; see DESIGN.md for the scope trade-off.
type BranchRangeExhaustionError struct {
	FromOffset, ToOffset int64
}

func (e *BranchRangeExhaustionError) Error() string {
	return fmt.Sprintf("branch from offset %d to %d exceeds the encodable displacement range", e.FromOffset, e.ToOffset)
}

// InternalInvariantViolation marks a programmer error: an undefined
// operand at emit time, a mismatched block count, or similar. Call
// panicInvariant to raise one; it is never meant to be recovered.
type InternalInvariantViolation struct {
	Msg string
}

func (e *InternalInvariantViolation) Error() string { return "BUG: " + e.Msg }

func panicInvariant(format string, args ...any) {
	panic(&InternalInvariantViolation{Msg: fmt.Sprintf(format, args...)})
}
