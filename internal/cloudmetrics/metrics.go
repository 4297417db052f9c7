// Package cloudmetrics pushes platform accounting counters (conversations,
// quota excess, notification delivery) to the cloud metrics endpoint.
package cloudmetrics

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// CloudMetrics owns the private registry pushed upstream. It is nil when
// cloud metrics are disabled; the package-level record helpers noop then.
type CloudMetrics struct {
	registry *prometheus.Registry
	pusher   Pusher
	log      *zap.Logger

	conversationsStarted  *prometheus.CounterVec
	messagesProcessed     *prometheus.CounterVec
	notificationsOutcomes *prometheus.CounterVec
	instanceInfo          *prometheus.GaugeVec
}

func New(registry *prometheus.Registry, pusher Pusher, instanceID, version string, log *zap.Logger) *CloudMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if log == nil {
		log = zap.NewNop()
	}

	c := &CloudMetrics{
		registry: registry,
		pusher:   pusher,
		log:      log.Named("cloudmetrics"),

		conversationsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zapflow_conversations_started_total",
			Help: "New billable conversations by tenant and quota classification.",
		}, []string{"tenant_id", "excess"}),
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zapflow_messages_processed_total",
			Help: "Inbound messages run through the conversation flow.",
		}, []string{"tenant_id"}),
		notificationsOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "zapflow_notification_outcomes_total",
			Help: "Delivery worker outcomes by tenant and result.",
		}, []string{"tenant_id", "outcome"}),
		instanceInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zapflow_instance_info",
			Help: "Static instance identity labels.",
		}, []string{"instance_id", "version"}),
	}

	registry.MustRegister(
		c.conversationsStarted,
		c.messagesProcessed,
		c.notificationsOutcomes,
		c.instanceInfo,
	)
	c.instanceInfo.WithLabelValues(instanceID, version).Set(1)

	setActive(c)
	return c
}

// Push sends the current registry snapshot upstream.
func (c *CloudMetrics) Push(ctx context.Context) error {
	if c == nil || c.pusher == nil {
		return nil
	}
	return c.pusher.Push(ctx, c.registry)
}

var (
	activeMu sync.RWMutex
	active   *CloudMetrics
)

func setActive(c *CloudMetrics) {
	activeMu.Lock()
	active = c
	activeMu.Unlock()
}

func current() *CloudMetrics {
	activeMu.RLock()
	defer activeMu.RUnlock()
	return active
}

// RecordConversationStarted counts one new billable conversation.
func RecordConversationStarted(tenantID string, excess bool) {
	c := current()
	if c == nil {
		return
	}
	label := "false"
	if excess {
		label = "true"
	}
	c.conversationsStarted.WithLabelValues(tenantID, label).Inc()
}

// RecordMessageProcessed counts one inbound message handled by the flow.
func RecordMessageProcessed(tenantID string) {
	c := current()
	if c == nil {
		return
	}
	c.messagesProcessed.WithLabelValues(tenantID).Inc()
}

// RecordNotificationOutcome counts one delivery worker outcome
// (delivered, retried, failed, disabled).
func RecordNotificationOutcome(tenantID, outcome string) {
	c := current()
	if c == nil {
		return
	}
	c.notificationsOutcomes.WithLabelValues(tenantID, outcome).Inc()
}
