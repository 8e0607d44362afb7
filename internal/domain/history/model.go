package history

import "time"

type Event struct {
	ID      string
	PetCode string

	Type EventType

	Timestamp time.Time

	PerformedBy     string
	PerformedByRole string

	// Metadata: contexto libre del evento (ids de workflow, montos, etc).
	Metadata map[string]string
}
