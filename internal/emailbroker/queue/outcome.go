package queue

// OutcomeKind classifies the result of processing one queue message.
type OutcomeKind int

const (
	// OutcomeRetry means a transient failure occurred. The queue entry
	// must not be deleted; visibility timeout expiry will redeliver it.
	OutcomeRetry OutcomeKind = iota
	// OutcomeDelivered means the email was sent and its record advanced
	// to Sent.
	OutcomeDelivered
	// OutcomeSkip means the record was not actionable (already Sending,
	// Sent, or Unknown). The entry is safe to delete; this consumer must
	// not act on it.
	OutcomeSkip
	// OutcomeSkipMessage means the raw message was permanently
	// unparsable. The entry is deleted using the raw message's own id and
	// handle since no pointer exists.
	OutcomeSkipMessage
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeRetry:
		return "retry"
	case OutcomeDelivered:
		return "delivered"
	case OutcomeSkip:
		return "skip"
	case OutcomeSkipMessage:
		return "skip_message"
	default:
		return "invalid"
	}
}

// Outcome is the result of one processing attempt. Exactly one of Pointer,
// Raw, or Err is meaningful, selected by Kind.
type Outcome struct {
	Kind    OutcomeKind
	Pointer PointerMessage // Delivered, Skip
	Raw     Message        // SkipMessage
	Err     error          // Retry cause
}

// Delivered reports a completed delivery for the given pointer.
func Delivered(p PointerMessage) Outcome {
	return Outcome{Kind: OutcomeDelivered, Pointer: p}
}

// Skip reports a record that was not actionable.
func Skip(p PointerMessage) Outcome {
	return Outcome{Kind: OutcomeSkip, Pointer: p}
}

// SkipMessage reports a permanently unparsable raw message.
func SkipMessage(raw Message) Outcome {
	return Outcome{Kind: OutcomeSkipMessage, Raw: raw}
}

// Retry reports a transient failure with its cause.
func Retry(err error) Outcome {
	return Outcome{Kind: OutcomeRetry, Err: err}
}

// DeleteEntry returns the queue deletion entry for this outcome and whether
// the entry may be deleted at all. Only Retry withholds deletion.
func (o Outcome) DeleteEntry() (DeleteEntry, bool) {
	switch o.Kind {
	case OutcomeDelivered, OutcomeSkip:
		return o.Pointer.DeleteEntry(), true
	case OutcomeSkipMessage:
		// A message that arrived without an id or handle cannot be
		// deleted at all, so it cannot be counted as deletable.
		if o.Raw.ID == "" || o.Raw.ReceiptHandle == "" {
			return DeleteEntry{}, false
		}
		return DeleteEntry{ID: o.Raw.ID, ReceiptHandle: o.Raw.ReceiptHandle}, true
	default:
		return DeleteEntry{}, false
	}
}
