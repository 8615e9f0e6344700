package notification

import (
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
)

// Event kinds dispatched by the workflow engine
const (
	EventRequestCreated        = "request_created"
	EventRequestApproved       = "request_approved"
	EventRequestRejected       = "request_rejected"
	EventRequestCancelled      = "request_cancelled"
	EventNewRequestForApproval = "new_request_for_approval"
)

// Notifier delivers workflow events to interested parties. Delivery is
// fire-and-forget: implementations must never propagate a failure back into
// the calling workflow operation.
type Notifier interface {
	Notify(event string, recipientID uuid.UUID, payload interface{})
}

// Broadcaster is the outbound channel the hub notifier writes to —
// satisfied by websocket.Hub.
type Broadcaster interface {
	GetBroadcast() chan []byte
}

type envelope struct {
	Event       string      `json:"event"`
	RecipientID string      `json:"recipient_id"`
	Payload     interface{} `json:"payload,omitempty"`
	Timestamp   string      `json:"timestamp"`
}

type hubNotifier struct {
	hub Broadcaster
}

// NewHubNotifier returns a Notifier that broadcasts event envelopes to the
// websocket hub and logs each dispatch.
func NewHubNotifier(hub Broadcaster) Notifier {
	return &hubNotifier{hub: hub}
}

func (n *hubNotifier) Notify(event string, recipientID uuid.UUID, payload interface{}) {
	msg, err := json.Marshal(envelope{
		Event:       event,
		RecipientID: recipientID.String(),
		Payload:     payload,
		Timestamp:   time.Now().Format(time.RFC3339),
	})
	if err != nil {
		log.Printf("notification: failed to encode %s event: %v", event, err)
		return
	}

	// Never block the workflow on a slow or stopped hub
	select {
	case n.hub.GetBroadcast() <- msg:
	default:
		log.Printf("notification: hub busy, dropped %s event for %s", event, recipientID)
	}
}

// LogNotifier writes events to the process log only — used when no hub is
// wired, e.g. in one-off tooling.
type LogNotifier struct{}

func (LogNotifier) Notify(event string, recipientID uuid.UUID, payload interface{}) {
	log.Printf("notification: %s -> %s", event, recipientID)
}
