package mongo

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const packetVersionCollectionName = "packet_versions"

// mongoPacketVersionRepository implements repository.PacketVersionRepository.
// The collection is append-only: documents are inserted and read, never
// updated or removed.
type mongoPacketVersionRepository struct {
	collection *mongo.Collection
}

// NewMongoPacketVersionRepository creates a new PacketVersion repository backed by MongoDB.
func NewMongoPacketVersionRepository(db *mongo.Database) repository.PacketVersionRepository {
	return &mongoPacketVersionRepository{
		collection: db.Collection(packetVersionCollectionName),
	}
}

// Append inserts an immutable content snapshot. The unique (packetId, version)
// index rejects a duplicate append; since all appends flow through the
// packet's version gate, a collision here means an upstream bug, not a race
// the caller should retry.
func (r *mongoPacketVersionRepository) Append(ctx context.Context, version *domain.PacketVersion) (primitive.ObjectID, error) {
	if version.PacketID == primitive.NilObjectID || version.Version < 1 {
		return primitive.NilObjectID, errors.New("packet ID and a version number >= 1 are required")
	}

	version.ID = primitive.NewObjectID()
	version.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, version)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicateVersion
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByPacketAndVersion retrieves one historical snapshot.
func (r *mongoPacketVersionRepository) GetByPacketAndVersion(ctx context.Context, packetID primitive.ObjectID, versionNumber int) (*domain.PacketVersion, error) {
	var version domain.PacketVersion
	filter := bson.M{"packetId": packetID, "version": versionNumber}

	err := r.collection.FindOne(ctx, filter).Decode(&version)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &version, nil
}

// ListByPacketID retrieves every snapshot for a packet, newest first.
func (r *mongoPacketVersionRepository) ListByPacketID(ctx context.Context, packetID primitive.ObjectID) ([]domain.PacketVersion, error) {
	var versions []domain.PacketVersion
	filter := bson.M{"packetId": packetID}
	findOptions := options.Find().SetSort(bson.D{{Key: "version", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &versions); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return versions, nil
}

// EnsurePacketVersionIndexes creates necessary indexes for the packet_versions collection.
func EnsurePacketVersionIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// One snapshot per (packet, version); also backs the newest-first listing
			Keys:    bson.D{{Key: "packetId", Value: 1}, {Key: "version", Value: -1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
