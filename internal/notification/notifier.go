package notification

import (
	"context"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notifier is the boundary to the external notification collaborator.
// Dispatch is fire-and-forget: the lifecycle engine invokes it only after a
// publish has committed, and a delivery failure never rolls the publish back.
type Notifier interface {
	// NotifyClientPacketPublished tells the client a packet is ready for them.
	// Invoked exactly once per PUBLISHED transition.
	NotifyClientPacketPublished(ctx context.Context, userID, packetID primitive.ObjectID) error
}

// logNotifier is the default implementation: it records the event in the
// server log. Real email delivery lives behind this interface and is wired
// in deployment, not here.
type logNotifier struct{}

// NewLogNotifier creates a Notifier that only logs publish events.
func NewLogNotifier() Notifier {
	return logNotifier{}
}

func (logNotifier) NotifyClientPacketPublished(_ context.Context, userID, packetID primitive.ObjectID) error {
	log.Printf("NOTIFY: packet %s published for client %s", packetID.Hex(), userID.Hex())
	return nil
}
