package domain

var estimateTransitions = map[DocumentStatus][]DocumentStatus{
	StatusDraft:    {StatusSent, StatusCancelled},
	StatusSent:     {StatusSent, StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved: {StatusConverted, StatusCancelled},
}

var invoiceTransitions = map[DocumentStatus][]DocumentStatus{
	StatusDraft: {StatusSent, StatusCancelled},
	StatusSent:  {StatusSent, StatusPaid, StatusCancelled},
}

// IsTerminal reports whether a document in status s can no longer be edited.
func IsTerminal(s DocumentStatus) bool {
	switch s {
	case StatusConverted, StatusPaid, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a document of the given kind may move from one status to another.
func CanTransition(kind DocumentKind, from, to DocumentStatus) bool {
	table := estimateTransitions
	if kind == KindInvoice {
		table = invoiceTransitions
	}
	for _, next := range table[from] {
		if next == to {
			return true
		}
	}
	return false
}
