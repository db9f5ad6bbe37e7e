package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contadores e histogramas del ciclo de vida de comprobantes.
// Un *Metrics nil es válido: todos los métodos no hacen nada.
type Metrics struct {
	DocumentsEmitted   *prometheus.CounterVec
	StatusTransitions  *prometheus.CounterVec
	GatewayLatency     *prometheus.HistogramVec
	GatewayErrors      *prometheus.CounterVec
	SigningLatency     prometheus.Histogram
	ValidationFailures *prometheus.CounterVec
}

// New registra las métricas en reg. Con reg nil se usa el registro global.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		DocumentsEmitted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hacienda_documents_emitted_total",
			Help: "Comprobantes emitidos por tipo y modo de firma",
		}, []string{"document_type", "signer"}),

		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hacienda_document_transitions_total",
			Help: "Transiciones de estado de comprobantes",
		}, []string{"from", "to"}),

		GatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hacienda_gateway_duration_seconds",
			Help:    "Duración de las llamadas al API de Hacienda por operación",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"op"}),

		GatewayErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hacienda_gateway_errors_total",
			Help: "Fallos de llamadas al API de Hacienda por operación",
		}, []string{"op", "retryable"}),

		SigningLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "hacienda_signing_duration_seconds",
			Help:    "Duración de la construcción y firma del XML",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "hacienda_validation_failures_total",
			Help: "Documentos rechazados por validación, por campo",
		}, []string{"field"}),
	}
}

func (m *Metrics) IncEmitted(documentType, signer string) {
	if m != nil {
		m.DocumentsEmitted.WithLabelValues(documentType, signer).Inc()
	}
}

func (m *Metrics) IncTransition(from, to string) {
	if m != nil {
		m.StatusTransitions.WithLabelValues(from, to).Inc()
	}
}

// ObserveGateway registra la duración y, si err no es nil, el fallo.
func (m *Metrics) ObserveGateway(op string, d time.Duration, err error, retryable bool) {
	if m == nil {
		return
	}
	m.GatewayLatency.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		r := "false"
		if retryable {
			r = "true"
		}
		m.GatewayErrors.WithLabelValues(op, r).Inc()
	}
}

func (m *Metrics) ObserveSigning(d time.Duration) {
	if m != nil {
		m.SigningLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncValidationFailure(field string) {
	if m != nil {
		m.ValidationFailures.WithLabelValues(field).Inc()
	}
}
