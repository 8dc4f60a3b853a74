package orders

// Aggregate derives the order-level status from the two side statuses.
//
// The clauses are evaluated in priority order and exactly one applies:
//
//  1. either side is error            -> error
//  2. either side is processing       -> processing
//  3. front printed and retro printed
//     or not required                 -> printed
//  4. otherwise                       -> pending
//
// This is a pure function; every committed side transition re-derives and
// persists the result so the stored overall status is never stale for more
// than one write.
func Aggregate(front, retro SideStatus) OverallStatus {
	switch {
	case front == StatusError || retro == StatusError:
		return OverallError
	case front == StatusProcessing || retro == StatusProcessing:
		return OverallProcessing
	case front == StatusPrinted && (retro == StatusPrinted || retro == StatusNotRequired):
		return OverallPrinted
	default:
		return OverallPending
	}
}
