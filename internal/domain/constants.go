package domain

// Payment lifecycle. A payment is created pending by checkout and is only
// moved by the reconciliation engine. completed, failed and refunded are
// terminal except for the completed -> refunded path.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Booking lifecycle. Bookings are created awaiting_payment by the booking
// flow and transitioned here as a side effect of payment transitions.
const (
	BookingAwaitingPayment = "awaiting_payment"
	BookingConfirmed       = "confirmed"
	BookingCancelled       = "cancelled"
)

const (
	RoleClubManager  = "club_manager"
	RoleStadiumOwner = "stadium_owner"
	RoleOps          = "ops"
)

// Outcomes recorded on the webhook audit row.
const (
	AuditApplied        = "applied"
	AuditAlreadyApplied = "already_applied"
	AuditConflict       = "conflict"
	AuditRecorded       = "recorded"
	AuditUnhandled      = "unhandled"
	AuditNotFound       = "payment_not_found"
	AuditStorageError   = "storage_error"
)
