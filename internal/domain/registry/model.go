package registry

import (
	"time"

	"pet-registry/internal/ports/sources"
)

// Status es el estado canónico de la mascota en el registry.
// @Enum owned, reserved, sold, adopted, in_temporary_care
type Status string

const (
	StatusOwned           Status = "owned"
	StatusReserved        Status = "reserved"
	StatusSold            Status = "sold"
	StatusAdopted         Status = "adopted"
	StatusInTemporaryCare Status = "in_temporary_care"
)

// Attributes es la vista mezclada que se muestra al usuario.
// Sale de los SourceRecords según la precedencia del resolver.
type Attributes struct {
	Name        string
	Species     string
	Breed       string
	Gender      string
	AgeMonths   int
	Color       string
	Description string
	Images      []string
}

// PetIdentity es el registro canónico: exactamente uno por petCode.
// Nunca se borra; los estados terminales se expresan en CurrentStatus.
type PetIdentity struct {
	PetCode     string
	CanonicalID string

	CurrentStatus Status

	// PrimarySource: subsistema que trajo la mascota a manos del usuario.
	// Puede diferir del origen de los atributos mostrados (ver resolver).
	PrimarySource sources.Type

	MergedAttributes Attributes

	// OwnerUserID solo se setea en estados owned/sold/adopted.
	OwnerUserID string

	// ActiveWorkflowID: reserva o solicitud de adopción viva sobre esta
	// mascota. Vacío = libre. Es el campo del compare-and-swap que
	// garantiza exclusión mutua entre workflows.
	ActiveWorkflowID string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// QuarantinedRecord es un SourceRecord que el resolver se negó a mergear
// (petCode malformado o colisión entre mascotas distintas). Queda visible
// para reconciliación manual; nunca se mergea en silencio.
type QuarantinedRecord struct {
	ID     string
	Record sources.Record
	Reason string

	QuarantinedAt time.Time
}
