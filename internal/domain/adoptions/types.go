package adoptions

// Status de la solicitud de adopción.
// @Enum pending, approved, rejected, payment_pending, paid,
// certificate_generated, handover_scheduled, handed_over, completed
type Status string

const (
	StatusPending              Status = "pending"
	StatusApproved             Status = "approved"
	StatusRejected             Status = "rejected"
	StatusPaymentPending       Status = "payment_pending"
	StatusPaid                 Status = "paid"
	StatusCertificateGenerated Status = "certificate_generated"
	StatusHandoverScheduled    Status = "handover_scheduled"
	StatusHandedOver           Status = "handed_over"
	StatusCompleted            Status = "completed"
)

// Tabla explícita del state machine de adopciones. Espeja la de
// reservas pero agrega certificado y handover con OTP.
// rejected es terminal sin salidas: una solicitud rechazada no revive,
// se presenta una nueva.
// handover_scheduled admite re-agendarse: si el traspaso falla con el
// OTP ya consumido, un nuevo schedule emite un código fresco.
var transitions = map[Status][]Status{
	StatusPending:              {StatusApproved, StatusRejected},
	StatusApproved:             {StatusPaymentPending},
	StatusPaymentPending:       {StatusPaid},
	StatusPaid:                 {StatusCertificateGenerated},
	StatusCertificateGenerated: {StatusHandoverScheduled},
	StatusHandoverScheduled:    {StatusHandoverScheduled, StatusHandedOver},
	StatusHandedOver:           {StatusCompleted},
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusRejected
}

// PaymentStatus acompaña al status principal para la UI.
type PaymentStatus string

const (
	PaymentStatusNone    PaymentStatus = "none"
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// HandoverStatus del retiro físico.
type HandoverStatus string

const (
	HandoverStatusNone      HandoverStatus = "none"
	HandoverStatusScheduled HandoverStatus = "scheduled"
	HandoverStatusDone      HandoverStatus = "done"
)
