package sources

import "time"

// Type identifica el subsistema de origen de un registro de mascota.
// @Enum manual, adopted, purchased, rescued
type Type string

const (
	TypeManual    Type = "manual"
	TypeAdopted   Type = "adopted"
	TypePurchased Type = "purchased"
	TypeRescued   Type = "rescued"
)

// Attributes son los datos descriptivos que cada origen mantiene de la
// mascota. El resolver los mezcla según precedencia; aquí son solo datos.
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

// Record es la representación de una mascota dentro de UN origen.
// El registry lo trata como input de solo lectura: nunca se escribe
// de vuelta al subsistema dueño.
type Record struct {
	Source   Type
	SourceID string

	// PetCode puede venir vacío si el origen aún no lo asignó.
	PetCode string

	// OwnerUserID: dueño actual según el origen (tienda, rescatista, etc).
	OwnerUserID string

	Attributes     Attributes
	LastModifiedAt time.Time
}

// LocalKey devuelve la clave de dedupe cuando no hay petCode.
func (r Record) LocalKey() string {
	return string(r.Source) + ":" + r.SourceID
}
