package port

import "fieldworks/internal/domain"

// Notifier surfaces toast-style notices to the user driving an operation.
type Notifier interface {
	Notify(level domain.NoticeLevel, message string)
}
