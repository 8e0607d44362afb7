package reservations

// Status del trámite de compra en tienda.
// @Enum pending, approved, rejected, going_to_buy, payment_pending, paid,
// ready_pickup, delivered, at_owner, cancelled
type Status string

const (
	StatusPending        Status = "pending"
	StatusApproved       Status = "approved"
	StatusRejected       Status = "rejected"
	StatusGoingToBuy     Status = "going_to_buy"
	StatusPaymentPending Status = "payment_pending"
	StatusPaid           Status = "paid"
	StatusReadyPickup    Status = "ready_pickup"
	StatusDelivered      Status = "delivered"
	StatusAtOwner        Status = "at_owner"
	StatusCancelled      Status = "cancelled"
)

// transitions es la tabla explícita del state machine: estado × destino.
// Toda transición pasa por acá; no hay comparaciones de strings sueltas
// en los call sites. Lo que no figura es InvalidTransition.
var transitions = map[Status][]Status{
	StatusPending:        {StatusApproved, StatusRejected},
	StatusApproved:       {StatusGoingToBuy, StatusCancelled},
	StatusGoingToBuy:     {StatusPaymentPending, StatusCancelled},
	StatusPaymentPending: {StatusPaid, StatusCancelled},
	StatusPaid:           {StatusReadyPickup},
	StatusReadyPickup:    {StatusDelivered},
	StatusDelivered:      {StatusAtOwner},
	// rejected / cancelled / at_owner: terminales, sin salidas
}

// CanTransition reporta si from → to es un arco válido del grafo.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal: una vez acá la reserva es inmutable.
func IsTerminal(s Status) bool {
	return s == StatusAtOwner || s == StatusRejected || s == StatusCancelled
}

// IsCancellable: cancelar solo antes de que se mueva plata o custodia.
// Desde paid en adelante hace falta un flujo de reversa aparte.
func IsCancellable(s Status) bool {
	switch s {
	case StatusPending, StatusApproved, StatusGoingToBuy, StatusPaymentPending:
		return true
	}
	return false
}

// managerOnly marca las transiciones que requieren rol manager.
var managerOnly = map[Status]bool{
	StatusApproved:    true,
	StatusRejected:    true,
	StatusReadyPickup: true,
	StatusDelivered:   true,
	StatusAtOwner:     true,
}

// RequiresManager reporta si entrar a `to` es acción de la tienda.
func RequiresManager(to Status) bool {
	return managerOnly[to]
}
