package gifticon

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombor/giftguard/internal/extract"
)

// Sources label how a gifticon reached the service
const (
	sourceUpload = "upload"
	sourceFile   = "file"
	sourceText   = "text"
)

// Metrics counts processing outcomes. A nil *Metrics records nothing.
type Metrics struct {
	processed   *prometheus.CounterVec
	missing     *prometheus.CounterVec
	recognition prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftguard",
			Name:      "gifticons_processed_total",
			Help:      "Gifticon processing attempts by source and outcome.",
		}, []string{"source", "result"}),
		missing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "giftguard",
			Name:      "extraction_missing_fields_total",
			Help:      "Required fields that could not be extracted.",
		}, []string{"field"}),
		recognition: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "giftguard",
			Name:      "recognition_duration_seconds",
			Help:      "Time spent waiting for text recognition.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
	}
	reg.MustRegister(m.processed, m.missing, m.recognition)
	return m
}

// outcome names the result label of err
func outcome(err error) string {
	var incomplete *extract.IncompleteError
	switch {
	case err == nil:
		return "saved"
	case errors.Is(err, ErrNoText):
		return "no_text"
	case errors.As(err, &incomplete):
		return "incomplete"
	case errors.Is(err, ErrDuplicate):
		return "duplicate"
	case errors.Is(err, ErrRecognition):
		return "recognition_error"
	case errors.Is(err, ErrImageAccess):
		return "image_error"
	default:
		return "error"
	}
}

func (m *Metrics) observe(source string, err error) {
	if m == nil {
		return
	}
	m.processed.WithLabelValues(source, outcome(err)).Inc()

	var incomplete *extract.IncompleteError
	if errors.As(err, &incomplete) {
		for _, f := range incomplete.Missing {
			m.missing.WithLabelValues(string(f)).Inc()
		}
	}
}

func (m *Metrics) observeRecognition(d time.Duration) {
	if m == nil {
		return
	}
	m.recognition.Observe(d.Seconds())
}
