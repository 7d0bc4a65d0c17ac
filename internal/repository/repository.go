package repository

import (
	"alcyxob/wellness-portal/internal/domain" // Import our defined domain models
	"context"                                 // Standard for request-scoped deadlines, cancellation signals, etc.

	"go.mongodb.org/mongo-driver/bson/primitive" // For using ObjectIDs
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
	// ErrVersionConflict signals a conditional write whose expected version
	// no longer matches the stored document. The caller should re-fetch and
	// re-apply; the write must never be forced.
	ErrVersionConflict = RepositoryError("version conflict")
	// ErrDuplicateVersion signals an append that collided with an existing
	// (packetId, version) pair. Appends go through the packet's version
	// gate, so hitting this indicates a bug upstream.
	ErrDuplicateVersion = RepositoryError("duplicate version")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// UserRepository defines the interface for interacting with user data.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
	SetPopulation(ctx context.Context, userID primitive.ObjectID, population domain.Population) error
}

// PacketRepository defines the interface for interacting with packet data.
//
// Every mutating method other than Create is version-gated: the update only
// applies when the stored version still equals expectedVersion, otherwise
// ErrVersionConflict is returned. This serializes concurrent writes to the
// same packet without locking.
type PacketRepository interface {
	Create(ctx context.Context, packet *domain.Packet) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Packet, error)
	GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Packet, error)
	GetByUserIDAndStatus(ctx context.Context, userID primitive.ObjectID, status domain.PacketStatus) ([]domain.Packet, error)

	// UpdateContent persists a content mutation: new content, coach notes,
	// bumped version and modification stamps, gated on expectedVersion.
	UpdateContent(ctx context.Context, packet *domain.Packet, expectedVersion int) error

	// UpdateStatus persists a status flip (and publish stamps when set)
	// without touching content or version, gated on expectedVersion.
	UpdateStatus(ctx context.Context, packet *domain.Packet, expectedVersion int) error

	// SetArtifactRef replaces the rendered-artifact pointer. Not version
	// bumping: the artifact is a projection of content, not new content.
	SetArtifactRef(ctx context.Context, id primitive.ObjectID, artifactRef string) error
}

// PacketVersionRepository is the append-only store of content snapshots.
type PacketVersionRepository interface {
	Append(ctx context.Context, version *domain.PacketVersion) (primitive.ObjectID, error)
	GetByPacketAndVersion(ctx context.Context, packetID primitive.ObjectID, versionNumber int) (*domain.PacketVersion, error)
	// ListByPacketID returns every snapshot for the packet, newest first.
	ListByPacketID(ctx context.Context, packetID primitive.ObjectID) ([]domain.PacketVersion, error)
}
