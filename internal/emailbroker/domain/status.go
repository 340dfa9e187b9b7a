package domain

// EmailStatus is the last known delivery state of an email record.
type EmailStatus string

const (
	// StatusPending marks a record that has been written by the upstream
	// API but not yet picked up by any broker.
	StatusPending EmailStatus = "Pending"
	// StatusSending marks a record some broker has claimed for delivery.
	StatusSending EmailStatus = "Sending"
	// StatusSent marks a record whose delivery completed.
	StatusSent EmailStatus = "Sent"
	// StatusUnknown is the deserialization fallback for unrecognized stored
	// values. Transitions never produce it.
	StatusUnknown EmailStatus = "Unknown"
)

// ParseEmailStatus maps a stored status value to an EmailStatus. Anything
// unrecognized becomes StatusUnknown rather than an error, so a corrupted
// record is still readable and simply not actionable.
func ParseEmailStatus(s string) EmailStatus {
	switch EmailStatus(s) {
	case StatusPending, StatusSending, StatusSent:
		return EmailStatus(s)
	default:
		return StatusUnknown
	}
}

func (s EmailStatus) String() string {
	return string(s)
}
