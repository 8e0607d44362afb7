package adoptions

import "time"

// ApplicationData: lo que declara el solicitante en el formulario.
// El core no valida política de adopción (eso lo hace el coordinador
// humano al aprobar); solo exige los campos mínimos.
type ApplicationData struct {
	HomeType        string
	HasOtherPets    bool
	HoursAlone      int
	ExperienceNotes string
}

// Certificate queda registrado al generar el certificado de adopción.
type Certificate struct {
	Number   string
	IssuedAt time.Time
}

// Handover: retiro físico agendado, protegido por OTP.
type Handover struct {
	Status      HandoverStatus
	ScheduledAt *time.Time
}

// Application es la solicitud de adopción. Misma disciplina de ciclo de
// vida que Reservation: la muta solo el engine, inmutable al terminar.
type Application struct {
	ID      string
	PetCode string

	ApplicantUserID string

	Status        Status
	PaymentStatus PaymentStatus

	Data      ApplicationData
	Documents []string

	// FeeCents: tasa de adopción fijada al aprobar.
	FeeCents int64
	Currency string

	// PaymentRef: orderId de la pasarela mientras hay pago en curso.
	PaymentRef string

	Certificate *Certificate
	Handover    Handover

	RejectionReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}
