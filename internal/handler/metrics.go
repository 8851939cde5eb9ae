package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "users_registrations_total",
		Help: "Total number of successful user registrations.",
	})

	loginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "users_logins_total",
		Help: "Total number of successful logins.",
	})

	refreshesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "users_token_refreshes_total",
		Help: "Total number of successful token refreshes.",
	})

	mediaUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_media_updates_total",
			Help: "Total number of successful media updates by kind.",
		},
		[]string{"kind"},
	)

	tokenVerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "users_token_verifications_total",
			Help: "Total number of token verification attempts by type and status.",
		},
		[]string{"type", "status"},
	)
)
