package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	codesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundwave_payment_codes_issued_total",
		Help: "Payment codes requested from the vendor, by result.",
	}, []string{"result"})

	confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fundwave_payment_confirmations_total",
		Help: "Vendor confirmations processed, by outcome.",
	}, []string{"outcome"})

	donatedAmount = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fundwave_donations_amount_total",
		Help: "Sum of applied donation amounts in minor units.",
	})
)
