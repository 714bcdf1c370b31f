package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rentalsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentalops_rentals_opened_total",
		Help: "Rentals successfully opened",
	})

	rentalsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentalops_rentals_closed_total",
		Help: "Rentals successfully closed",
	})

	rentalRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rentalops_rental_rejections_total",
		Help: "Rental operations rejected, labeled by operation and failure kind",
	}, []string{"operation", "kind"})

	revenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rentalops_revenue_total",
		Help: "Sum of closing totals charged",
	})
)
