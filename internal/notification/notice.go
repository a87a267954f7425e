// Package notification delivers escalation notices off the sweep's path.
package notification

import (
	"context"
	"fmt"

	"facilities-maintenance-backend/internal/model"
)

// Notice is one escalation to announce to its recipients.
type Notice struct {
	WorkOrderID  int64                `json:"work_order_id"`
	Reference    string               `json:"reference"`
	Title        string               `json:"title"`
	Level        int                  `json:"level"`
	Kind         model.EscalationKind `json:"kind"`
	Reason       string               `json:"reason"`
	RecipientIDs []int64              `json:"-"`
	// DeliveryKey identifies the escalation entry; a notice is delivered at
	// most once per key.
	DeliveryKey string `json:"delivery_key"`
}

// Message is the human-readable text of the notice.
func (n Notice) Message() string {
	return fmt.Sprintf("%s escalated to level %d: %s", n.Reference, n.Level, n.Reason)
}

// Deliverer sends a notice to its recipients.
type Deliverer interface {
	Deliver(ctx context.Context, n Notice) error
}
