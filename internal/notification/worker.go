package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"maintenance-backend/internal/metrics"
	"maintenance-backend/internal/model"
)

const queuePerWorker = 32

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Store is what the worker pool reads and prunes.
type Store interface {
	Escalation(ctx context.Context, id int64) (*model.Escalation, error)
	SubscriptionsForUser(ctx context.Context, userID int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// Payload is the JSON body pushed to the browser.
type Payload struct {
	Title        string `json:"title"`
	Body         string `json:"body"`
	EscalationID int64  `json:"escalation_id"`
	TaskID       int64  `json:"task_id"`
	Level        int    `json:"level"`
	Blocking     bool   `json:"blocking"`
}

// WorkerPool manages a pool of workers that push new escalations to their recipients.
type WorkerPool struct {
	size    int
	jobs    chan int64
	store   Store
	webpush *webpush.Options
	sender  NotificationSender
	metrics *metrics.Collector
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool. m and log may be nil.
func NewWorkerPool(size int, s Store, webpushOptions *webpush.Options, m *metrics.Collector, log *zap.Logger) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan int64, size*queuePerWorker),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		metrics: m,
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case escalationID := <-wp.jobs:
			wp.notifyEscalation(ctx, escalationID)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Dispatch queues an escalation for notification. It never blocks the caller;
// when the queue is full the notification is dropped and logged.
func (wp *WorkerPool) Dispatch(escalationID int64) {
	select {
	case wp.jobs <- escalationID:
	default:
		wp.metrics.RecordNotification("dropped")
		wp.log.Warn("notification queue full, dropping escalation notification",
			zap.Int64("escalation_id", escalationID))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan int64 {
	return wp.jobs
}

func (wp *WorkerPool) notifyEscalation(ctx context.Context, escalationID int64) {
	esc, err := wp.store.Escalation(ctx, escalationID)
	if err != nil {
		wp.log.Error("failed to load escalation", zap.Int64("escalation_id", escalationID), zap.Error(err))
		return
	}
	if esc.EscalatedToUserID == nil {
		return
	}

	subscriptions, err := wp.store.SubscriptionsForUser(ctx, *esc.EscalatedToUserID)
	if err != nil {
		wp.log.Error("failed to load subscriptions",
			zap.Int64("user_id", *esc.EscalatedToUserID), zap.Error(err))
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload, err := json.Marshal(buildPayload(esc))
	if err != nil {
		wp.log.Error("failed to encode notification", zap.Error(err))
		return
	}

	wp.log.Info("sending escalation notifications",
		zap.Int64("escalation_id", esc.ID),
		zap.Int64("user_id", *esc.EscalatedToUserID),
		zap.Int("subscriptions", len(subscriptions)))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func buildPayload(esc *model.Escalation) Payload {
	title := fmt.Sprintf("Escalation level %d", esc.EscalationLevel)
	if esc.Blocking {
		title += " (machine halted)"
	}
	return Payload{
		Title:        title,
		Body:         esc.Reason,
		EscalationID: esc.ID,
		TaskID:       esc.TaskID,
		Level:        esc.EscalationLevel,
		Blocking:     esc.Blocking,
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.metrics.RecordNotification("failed")
		wp.log.Warn("failed to send notification", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are pruned.
	if resp.StatusCode == http.StatusGone {
		wp.metrics.RecordNotification("expired")
		wp.log.Info("subscription expired, deleting", zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("failed to delete expired subscription", zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
		return
	}
	wp.metrics.RecordNotification("sent")
}
