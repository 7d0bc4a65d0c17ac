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

const packetCollectionName = "packets"

// mongoPacketRepository implements repository.PacketRepository
type mongoPacketRepository struct {
	collection *mongo.Collection
}

// NewMongoPacketRepository creates a new Packet repository backed by MongoDB.
func NewMongoPacketRepository(db *mongo.Database) repository.PacketRepository {
	return &mongoPacketRepository{
		collection: db.Collection(packetCollectionName),
	}
}

// Create inserts a new packet into the database.
func (r *mongoPacketRepository) Create(ctx context.Context, packet *domain.Packet) (primitive.ObjectID, error) {
	if packet.UserID == primitive.NilObjectID || packet.PacketType == "" {
		return primitive.NilObjectID, errors.New("packet user ID and packet type are required")
	}

	packet.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	packet.CreatedAt = now
	packet.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, packet)
	if err != nil {
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}

	return insertedID, nil
}

// GetByID retrieves a packet by its ID.
func (r *mongoPacketRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Packet, error) {
	var packet domain.Packet
	filter := bson.M{"_id": id}

	err := r.collection.FindOne(ctx, filter).Decode(&packet)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &packet, nil
}

// GetByUserID retrieves all packets belonging to a client, newest first.
func (r *mongoPacketRepository) GetByUserID(ctx context.Context, userID primitive.ObjectID) ([]domain.Packet, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

// GetByUserIDAndStatus retrieves a client's packets filtered by lifecycle status.
func (r *mongoPacketRepository) GetByUserIDAndStatus(ctx context.Context, userID primitive.ObjectID, status domain.PacketStatus) ([]domain.Packet, error) {
	return r.find(ctx, bson.M{"userId": userID, "status": status})
}

func (r *mongoPacketRepository) find(ctx context.Context, filter bson.M) ([]domain.Packet, error) {
	var packets []domain.Packet
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &packets); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}

	return packets, nil
}

// UpdateContent persists a content mutation conditionally on the version the
// caller read. The filter matches both _id and the expected version, so a
// concurrent writer that already bumped the version makes this a no-match,
// which is reported as ErrVersionConflict rather than silently overwriting.
func (r *mongoPacketRepository) UpdateContent(ctx context.Context, packet *domain.Packet, expectedVersion int) error {
	if packet.ID == primitive.NilObjectID {
		return errors.New("packet ID is required for update")
	}

	filter := bson.M{
		"_id":     packet.ID,
		"version": expectedVersion,
	}
	update := bson.M{
		"$set": bson.M{
			"content":        packet.Content,
			"coachNotes":     packet.CoachNotes,
			"version":        packet.Version,
			"lastModifiedBy": packet.LastModifiedBy,
			"updatedAt":      packet.UpdatedAt,
			// Status, userId and publish stamps are deliberately untouched here.
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.classifyNoMatch(ctx, packet.ID)
	}

	return nil
}

// UpdateStatus persists a status flip (and, for publish, the publish stamps)
// under the same version gate as content writes. A stale-status read racing a
// real transition must not resurrect an old state, so even pure flips carry
// the precondition; the version itself is not bumped.
func (r *mongoPacketRepository) UpdateStatus(ctx context.Context, packet *domain.Packet, expectedVersion int) error {
	if packet.ID == primitive.NilObjectID {
		return errors.New("packet ID is required for update")
	}

	set := bson.M{
		"status":    packet.Status,
		"updatedAt": packet.UpdatedAt,
	}
	if packet.PublishedAt != nil {
		set["publishedAt"] = packet.PublishedAt
	}
	if packet.PublishedBy != nil {
		set["publishedBy"] = packet.PublishedBy
	}

	filter := bson.M{
		"_id":     packet.ID,
		"version": expectedVersion,
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return r.classifyNoMatch(ctx, packet.ID)
	}

	return nil
}

// SetArtifactRef replaces the rendered-artifact pointer. Rendering is a
// projection of existing content, so this write is not version-gated and
// never bumps the version.
func (r *mongoPacketRepository) SetArtifactRef(ctx context.Context, id primitive.ObjectID, artifactRef string) error {
	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"renderedArtifactRef": artifactRef,
			"updatedAt":           time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// classifyNoMatch distinguishes "packet gone" from "version advanced" after a
// conditional update matched nothing.
func (r *mongoPacketRepository) classifyNoMatch(ctx context.Context, id primitive.ObjectID) error {
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return repository.ErrNotFound
	}
	if err != nil {
		return err
	}
	return repository.ErrVersionConflict
}

// EnsurePacketIndexes creates necessary indexes for the packets collection.
func EnsurePacketIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			// Index for listing a client's packets, optionally by status
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index(),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		// log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
