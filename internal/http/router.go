package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eventhive/ticketing/internal/idempotency"
	"github.com/eventhive/ticketing/internal/observability"
	"github.com/eventhive/ticketing/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter, idemp *idempotency.Idempotency) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)

	// Unauthenticated surface: probes, metrics, and the gateway webhook,
	// which authenticates through its body signature instead.
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Post("/v1/payments/callback", h.PaymentCallback)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware)
		r.Use(RateLimitMiddleware(rl))

		r.With(IdempotencyMiddleware(idemp)).Post("/v1/bookings", h.CreateBooking)
		r.Get("/v1/bookings/{id}", h.GetBooking)
		r.Post("/v1/bookings/{id}/cancel", h.CancelBooking)
		r.Post("/v1/bookings/{id}/refunds", h.RequestRefund)
		r.Post("/v1/bookings/{id}/qr", h.BookingQRBatch)

		r.Post("/v1/refunds/{id}/review", h.ReviewRefund)
		r.Post("/v1/refunds/{id}/process", h.ProcessRefund)

		r.Post("/v1/tickets/{id}/qr", h.TicketQR)
		r.Post("/v1/tickets/{id}/transfer", h.TransferTicket)
		r.Post("/v1/events/{id}/scan", h.ScanTicket)

		r.Post("/v1/payouts", h.RequestPayout)
		r.Get("/v1/payouts", h.ListPayouts)
		r.Get("/v1/payouts/{id}", h.GetPayout)
		r.Post("/v1/payouts/{id}/review", h.ReviewPayout)
		r.Post("/v1/payouts/{id}/dispatch", h.DispatchPayout)
		r.Post("/v1/payouts/{id}/fail", h.FailPayout)
	})

	return r
}
