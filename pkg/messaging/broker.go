package messaging

import (
	"context"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Topic names the service publishes to.
const (
	// TopicUserPrefix + user id is the console's realtime mailbox feed.
	TopicUserPrefix = "notifications:user:"

	// Gateway topics carry transport attempts to the platform's push and
	// SMS bridges.
	TopicPushGateway = "deliveries:push"
	TopicSMSGateway  = "deliveries:sms"
)

// UserTopic returns the realtime feed channel for one user's console.
func UserTopic(userID string) string {
	return TopicUserPrefix + userID
}
