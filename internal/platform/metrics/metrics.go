package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics agrupa los contadores Prometheus del servicio.
// Todos los métodos toleran receiver nil: los services los llaman sin
// preguntar si hay métricas configuradas (tests, modo dev).
type Metrics struct {
	reservationsCreated prometheus.Counter
	adoptionsCreated    prometheus.Counter

	transitions *prometheus.CounterVec

	paymentVerifications *prometheus.CounterVec

	ownershipTransfers   prometheus.Counter
	recordsQuarantined   prometheus.Counter
	reservationConflicts prometheus.Counter
}

// New registra los contadores en reg. Cada router arma su propio
// registry, así los tests pueden crear varios sin chocar nombres.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		reservationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pet_registry_reservations_created_total",
			Help: "Total reservations submitted",
		}),
		adoptionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pet_registry_adoptions_created_total",
			Help: "Total adoption applications submitted",
		}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pet_registry_workflow_transitions_total",
			Help: "Workflow status transitions applied",
		}, []string{"workflow", "status"}),
		paymentVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pet_registry_payment_verifications_total",
			Help: "Payment verification attempts by outcome",
		}, []string{"outcome"}),
		ownershipTransfers: factory.NewCounter(prometheus.CounterOpts{
			Name: "pet_registry_ownership_transfers_total",
			Help: "Ownership transfers effectively applied",
		}),
		recordsQuarantined: factory.NewCounter(prometheus.CounterOpts{
			Name: "pet_registry_records_quarantined_total",
			Help: "Source records quarantined by the identity resolver",
		}),
		reservationConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "pet_registry_reservation_conflicts_total",
			Help: "Reservation attempts lost against an existing active workflow",
		}),
	}
}

func (m *Metrics) IncReservationsCreated() {
	if m == nil {
		return
	}
	m.reservationsCreated.Inc()
}

func (m *Metrics) IncAdoptionsCreated() {
	if m == nil {
		return
	}
	m.adoptionsCreated.Inc()
}

func (m *Metrics) IncTransition(workflow, status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(workflow, status).Inc()
}

func (m *Metrics) IncPaymentVerification(success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.paymentVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncOwnershipTransfers() {
	if m == nil {
		return
	}
	m.ownershipTransfers.Inc()
}

func (m *Metrics) IncRecordsQuarantined() {
	if m == nil {
		return
	}
	m.recordsQuarantined.Inc()
}

func (m *Metrics) IncReservationConflicts() {
	if m == nil {
		return
	}
	m.reservationConflicts.Inc()
}
