package notifications

const (
	TypeRequestSubmitted = "request_submitted"
	TypeRequestApproved  = "request_approved"
	TypeRequestRejected  = "request_rejected"
	TypePendingDigest    = "pending_digest"
)
