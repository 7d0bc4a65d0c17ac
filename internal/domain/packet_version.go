package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PacketVersion is an immutable snapshot of a packet's content at a given
// version number. Versions are append-only: once written they are never
// mutated or deleted, so the sequence forms a linear audit trail.
type PacketVersion struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PacketID primitive.ObjectID `bson:"packetId" json:"packetId"`
	Version  int                `bson:"version" json:"version"`

	Content    PacketContent `bson:"content" json:"content"`
	CoachNotes string        `bson:"coachNotes,omitempty" json:"coachNotes,omitempty"`

	// RestoreOf is set when this version was produced by restoring a
	// historical snapshot; it names the version the content was taken from.
	RestoreOf *int `bson:"restoreOf,omitempty" json:"restoreOf,omitempty"`

	AuthorID  primitive.ObjectID `bson:"authorId" json:"authorId"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
