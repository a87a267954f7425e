package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"

	"facilities-maintenance-backend/internal/logger"
	"facilities-maintenance-backend/internal/metrics"
	"facilities-maintenance-backend/internal/model"
)

// NotificationSender sends a single web push message.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender sends through the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// SubscriptionStore is the subscription data the push deliverer needs.
type SubscriptionStore interface {
	SubscriptionsForUsers(ctx context.Context, userIDs []int64) ([]model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
}

// deliveredTTL is how long a delivery key is remembered.
const deliveredTTL = 24 * time.Hour

// PushDeliverer sends notices to every push subscription of the recipients.
type PushDeliverer struct {
	store     SubscriptionStore
	options   *webpush.Options
	sender    NotificationSender
	delivered *cache.Cache
}

// NewPushDeliverer creates a deliverer using the given VAPID options.
func NewPushDeliverer(st SubscriptionStore, options *webpush.Options) *PushDeliverer {
	return &PushDeliverer{
		store:     st,
		options:   options,
		sender:    &WebPushSender{},
		delivered: cache.New(deliveredTTL, time.Hour),
	}
}

// Deliver sends n to each subscription of its recipients. Expired
// subscriptions are removed. A notice whose key was already delivered is
// skipped.
func (d *PushDeliverer) Deliver(ctx context.Context, n Notice) error {
	if n.DeliveryKey != "" {
		if _, done := d.delivered.Get(n.DeliveryKey); done {
			metrics.Deliveries.WithLabelValues(metrics.DeliverySkipped).Inc()
			return nil
		}
	}

	subs, err := d.store.SubscriptionsForUsers(ctx, n.RecipientIDs)
	if err != nil {
		return err
	}
	if len(subs) == 0 {
		metrics.Deliveries.WithLabelValues(metrics.DeliverySkipped).Inc()
		return nil
	}

	payload, err := json.Marshal(struct {
		Notice
		Message string `json:"message"`
	}{n, n.Message()})
	if err != nil {
		return err
	}

	sent, failed := 0, 0
	for _, sub := range subs {
		ok, err := d.send(ctx, sub, payload)
		if err != nil {
			failed++
			logger.WithError(err, "notification").WithField("endpoint", sub.Endpoint).Warn("Error sending push notification")
			continue
		}
		if ok {
			sent++
		}
	}

	if sent > 0 {
		metrics.Deliveries.WithLabelValues(metrics.DeliverySent).Add(float64(sent))
		if n.DeliveryKey != "" {
			d.delivered.SetDefault(n.DeliveryKey, struct{}{})
		}
	}
	if sent == 0 && failed > 0 {
		return fmt.Errorf("notice for work order %d: all %d push deliveries failed", n.WorkOrderID, failed)
	}
	return nil
}

// send reports whether the push service accepted the message.
func (d *PushDeliverer) send(ctx context.Context, sub model.PushSubscription, payload []byte) (bool, error) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := d.sender.Send(payload, wpSub, d.options)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone:
		logger.WithComponent("notification").WithField("endpoint", sub.Endpoint).Info("Subscription expired, deleting")
		if err := d.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			logger.WithError(err, "notification").WithField("endpoint", sub.Endpoint).Error("Failed to delete expired subscription")
		}
		return false, nil
	case resp.StatusCode >= 300:
		return false, fmt.Errorf("push service answered %d", resp.StatusCode)
	}
	return true, nil
}

// LogDeliverer writes notices to the log. It stands in when push is not
// configured.
type LogDeliverer struct{}

// Deliver logs n.
func (LogDeliverer) Deliver(_ context.Context, n Notice) error {
	logger.WithWorkOrder(n.WorkOrderID, n.Reference).
		WithField("recipients", n.RecipientIDs).
		WithField("level", n.Level).
		Info(n.Message())
	metrics.Deliveries.WithLabelValues(metrics.DeliverySkipped).Inc()
	return nil
}
