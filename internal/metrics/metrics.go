package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	otpSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domestyx_otp_send_total",
		Help: "OTP send requests by channel, purpose and outcome",
	}, []string{"channel", "purpose", "outcome"})

	otpVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domestyx_otp_verify_total",
		Help: "OTP verification attempts by outcome",
	}, []string{"purpose", "outcome"})

	otpDeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "domestyx_otp_delivery_duration_seconds",
		Help:    "Latency of OTP delivery backends",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"channel"})

	statusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domestyx_status_transitions_total",
		Help: "Applied status transitions by entity and target status",
	}, []string{"entity", "status"})

	usersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "domestyx_users_created_total",
		Help: "Registered users by role",
	}, []string{"role"})
)

func OTPSent(channel, purpose, outcome string) {
	otpSent.WithLabelValues(channel, purpose, outcome).Inc()
}

func OTPVerified(purpose, outcome string) {
	otpVerified.WithLabelValues(purpose, outcome).Inc()
}

func ObserveDelivery(channel string, started time.Time) {
	otpDeliveryDuration.WithLabelValues(channel).Observe(time.Since(started).Seconds())
}

func StatusTransition(entity, status string) {
	statusTransitions.WithLabelValues(entity, status).Inc()
}

func UserCreated(role string) {
	usersCreated.WithLabelValues(role).Inc()
}
