package reservations

import "time"

// Reservation es la intención de compra de una mascota de tienda.
// La muta solo el workflow engine; al llegar a at_owner o cancelled
// queda inmutable.
type Reservation struct {
	ID      string
	PetCode string

	BuyerUserID string
	StoreID     string

	Status Status

	// ReservationCode: código corto que el comprador presenta en tienda.
	ReservationCode string

	// PaymentRef: orderId de la pasarela mientras hay pago en curso.
	PaymentRef string

	AmountCents int64
	Currency    string

	Notes string

	CreatedAt time.Time
	UpdatedAt time.Time
}
