package core

// Metrics records business events.
type Metrics interface {
	IncAppointments(status string)
	AddSale(paymentMethod string, amount Money)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) IncAppointments(string) {}
func (NopMetrics) AddSale(string, Money)  {}

// MetricsOrNop returns m, or NopMetrics when m is nil.
func MetricsOrNop(m Metrics) Metrics {
	if m == nil {
		return NopMetrics{}
	}
	return m
}
