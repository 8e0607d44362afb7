package history

type EventType string

const (
	EventTypeRecordReconciled     EventType = "record_reconciled"
	EventTypeReservationCreated   EventType = "reservation_created"
	EventTypeReservationDecided   EventType = "reservation_decided"
	EventTypeReservationCancelled EventType = "reservation_cancelled"
	EventTypeAdoptionApplied      EventType = "adoption_applied"
	EventTypeAdoptionDecided      EventType = "adoption_decided"
	EventTypePaymentConfirmed     EventType = "payment_confirmed"
	EventTypeCertificateIssued    EventType = "certificate_issued"
	EventTypeHandoverScheduled    EventType = "handover_scheduled"
	EventTypeStatusAdvanced       EventType = "status_advanced"
	EventTypeOwnershipTransferred EventType = "ownership_transferred"
)
