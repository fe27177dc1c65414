package domain

import "time"

// Message is a payload addressed to exactly one identity.
type Message struct {
	ID      string    `json:"id"`
	From    Identity  `json:"from"`
	To      Identity  `json:"to"`
	Payload string    `json:"payload"`
	SentAt  time.Time `json:"sent_at"`
}

// DeliveryOutcome reports what the router did with a published message.
type DeliveryOutcome int

const (
	Delivered DeliveryOutcome = iota
	NoSubscriber
	SubscriberUnresponsive
)

func (o DeliveryOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case NoSubscriber:
		return "no_subscriber"
	case SubscriberUnresponsive:
		return "subscriber_unresponsive"
	default:
		return "unknown"
	}
}
