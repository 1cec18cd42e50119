package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type metrics struct {
	requests     *prometheus.HistogramVec
	logins       *prometheus.CounterVec
	lockedLogins prometheus.Counter
	joins        prometheus.Counter
	answers      *prometheus.CounterVec
	points       prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "atomq",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atomq",
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		lockedLogins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atomq",
			Name:      "login_lockouts_total",
			Help:      "Logins refused because the email is locked out.",
		}),
		joins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atomq",
			Name:      "activity_joins_total",
			Help:      "Activity join requests.",
		}),
		answers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atomq",
			Name:      "activity_answers_total",
			Help:      "Activity answers by correctness.",
		}, []string{"correct"}),
		points: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "atomq",
			Name:      "activity_points_total",
			Help:      "Points awarded in activities.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.logins, m.lockedLogins, m.joins, m.answers, m.points,
	)
	return m
}

func (m *metrics) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				// let the error handler write the response so its status gets recorded
				ctx.Error(err)
			}
			m.requests.WithLabelValues(ctx.Request().Method, ctx.Path(), strconv.Itoa(ctx.Response().Status)).
				Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
