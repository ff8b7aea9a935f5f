package restock

// transitions maps each status to its legal immediate successors. Receiving
// more stock while partially_received leaves the status in place, which is
// not a transition; fully_received and cancelled are terminal.
var transitions = map[Status][]Status{
	StatusDraft:                   {StatusSubmitted, StatusCancelled},
	StatusSubmitted:               {StatusApprovedPendingSupplier, StatusCancelled},
	StatusApprovedPendingSupplier: {StatusSupplierContacted, StatusCancelled},
	StatusSupplierContacted:       {StatusPartiallyReceived, StatusFullyReceived},
	StatusPartiallyReceived:       {StatusFullyReceived},
}

// CanTransition reports whether moving from one status to the next follows
// the lifecycle graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// canReceive reports whether a delivery event may be recorded in the given
// status.
func canReceive(status Status) bool {
	return status == StatusSupplierContacted || status == StatusPartiallyReceived
}

// receivingTarget picks the post-delivery status from the line quantities.
func receivingTarget(items []RequestItem) Status {
	for _, item := range items {
		if item.ApprovedQty == nil || item.ReceivedQty < *item.ApprovedQty {
			return StatusPartiallyReceived
		}
	}
	return StatusFullyReceived
}
