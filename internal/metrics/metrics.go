package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "festreg",
		Name:      "registrations_created_total",
		Help:      "Registrations created, by origin (self or admin).",
	}, []string{"origin"})

	RegistrationsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "festreg",
		Name:      "registrations_refused_total",
		Help:      "Registration attempts refused, by error code.",
	}, []string{"code"})

	RegistrationsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "festreg",
		Name:      "registrations_cancelled_total",
		Help:      "Registrations cancelled by their owner.",
	})

	PaymentDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "festreg",
		Name:      "payment_decisions_total",
		Help:      "Admin payment decisions, by outcome.",
	}, []string{"outcome"})

	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "festreg",
		Name:      "user_code_collisions_total",
		Help:      "Generated user codes that were already taken.",
	})

	NotificationsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "festreg",
		Name:      "notifications_sent_total",
		Help:      "Notifications handed to the transport successfully.",
	})

	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "festreg",
		Name:      "notification_failures_total",
		Help:      "Notifications dropped or failed in delivery.",
	})
)
