package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jolt"

// Collectors holds the bot's Prometheus metrics.
// All methods are safe on a nil *Collectors, which records nothing.
type Collectors struct {
	registry *prometheus.Registry

	// TriggerEvaluations counts evaluator decisions by reason
	TriggerEvaluations *prometheus.CounterVec
	// CooldownAdmissions counts tracker decisions (allowed/denied)
	CooldownAdmissions *prometheus.CounterVec
	// Fires counts admitted fire requests by outcome (fired/failed)
	Fires *prometheus.CounterVec
	// ActuatorRequests counts device calls by status
	ActuatorRequests *prometheus.CounterVec
	// ActuatorDuration tracks device call latency including retries
	ActuatorDuration prometheus.Histogram
	// BreakerState is 0=closed, 1=half-open, 2=open
	BreakerState prometheus.Gauge
	// TrackedUsers is the size of the cooldown table
	TrackedUsers prometheus.Gauge
	// DroppedMessages counts outbound replies dropped by the full queue
	DroppedMessages prometheus.Counter
	// Commands counts executed chat commands
	Commands *prometheus.CounterVec
	// PrunedEvents counts fire events removed by maintenance
	PrunedEvents prometheus.Counter
}

// New registers all collectors, plus the Go and process collectors, on a fresh registry
func New() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collectors{
		registry: reg,
		TriggerEvaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_evaluations_total",
			Help:      "Trigger evaluations by decision reason",
		}, []string{"reason"}),
		CooldownAdmissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cooldown_admissions_total",
			Help:      "Cooldown tracker decisions by result",
		}, []string{"result"}),
		Fires: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fires_total",
			Help:      "Admitted fire requests by outcome",
		}, []string{"outcome"}),
		ActuatorRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_requests_total",
			Help:      "Actuator calls by status",
		}, []string{"status"}),
		ActuatorDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actuator_request_duration_seconds",
			Help:      "Actuator call duration in seconds, retries included",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		BreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "actuator_breaker_state",
			Help:      "Actuator circuit breaker state (0=closed, 1=half-open, 2=open)",
		}),
		TrackedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cooldown_tracked_users",
			Help:      "Users with a live cooldown window",
		}),
		DroppedMessages: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_dropped_messages_total",
			Help:      "Outbound chat messages dropped because the queue was full",
		}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Chat commands executed by name",
		}, []string{"command"}),
		PrunedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fire_events_pruned_total",
			Help:      "Fire events removed by retention pruning",
		}),
	}
}

// Registry returns the registry the collectors live on
func (c *Collectors) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

func (c *Collectors) ObserveEvaluation(reason string) {
	if c == nil {
		return
	}
	c.TriggerEvaluations.WithLabelValues(reason).Inc()
}

func (c *Collectors) ObserveAdmission(allowed bool) {
	if c == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	c.CooldownAdmissions.WithLabelValues(result).Inc()
}

func (c *Collectors) ObserveFire(outcome string) {
	if c == nil {
		return
	}
	c.Fires.WithLabelValues(outcome).Inc()
}

// ObserveActuatorRequest records one device call
func (c *Collectors) ObserveActuatorRequest(status string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.ActuatorRequests.WithLabelValues(status).Inc()
	c.ActuatorDuration.Observe(elapsed.Seconds())
}

// SetBreakerState takes the breaker state name (closed, half-open, open)
func (c *Collectors) SetBreakerState(state string) {
	if c == nil {
		return
	}
	switch state {
	case "open":
		c.BreakerState.Set(2)
	case "half-open":
		c.BreakerState.Set(1)
	default:
		c.BreakerState.Set(0)
	}
}

func (c *Collectors) SetTrackedUsers(n int) {
	if c == nil {
		return
	}
	c.TrackedUsers.Set(float64(n))
}

func (c *Collectors) IncDroppedMessages() {
	if c == nil {
		return
	}
	c.DroppedMessages.Inc()
}

func (c *Collectors) ObserveCommand(name string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(name).Inc()
}

func (c *Collectors) AddPrunedEvents(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.PrunedEvents.Add(float64(n))
}
