// Package render holds the boundary to the packet rendering collaborator.
// The layout engine itself is external; this package turns a packet's
// current content into a stored artifact and hands back its reference.
package render

import (
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/storage"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ArtifactRenderer renders a packet's content to a durable artifact and
// returns the artifact reference (an object-storage key). Idempotent: the
// artifact is a projection of the given content, so re-rendering the same
// content produces an equivalent artifact.
type ArtifactRenderer interface {
	RenderPacketToArtifact(ctx context.Context, packetID primitive.ObjectID, content domain.PacketContent) (string, error)
}

// storageRenderer serializes the packet document and stores it through the
// FileStorage boundary. The key is namespaced per packet so artifacts of
// different packets never collide; each render gets a fresh object so a
// half-written upload can never shadow the previous good artifact.
type storageRenderer struct {
	files storage.FileStorage
}

// NewStorageRenderer creates an ArtifactRenderer backed by object storage.
func NewStorageRenderer(files storage.FileStorage) ArtifactRenderer {
	return &storageRenderer{files: files}
}

// renderedDocument is the serialized artifact body handed to the external
// layout engine. JSON here; the PDF conversion is out of scope and consumes
// this same document shape.
type renderedDocument struct {
	PacketID string               `json:"packetId"`
	Content  domain.PacketContent `json:"content"`
}

func (r *storageRenderer) RenderPacketToArtifact(ctx context.Context, packetID primitive.ObjectID, content domain.PacketContent) (string, error) {
	if err := content.Validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(renderedDocument{
		PacketID: packetID.Hex(),
		Content:  content,
	})
	if err != nil {
		return "", fmt.Errorf("failed to serialize packet document: %w", err)
	}

	objectKey := fmt.Sprintf("packets/%s/artifacts/%s.json", packetID.Hex(), uuid.NewString())
	if err := r.files.UploadObject(ctx, objectKey, "application/json", body); err != nil {
		return "", fmt.Errorf("failed to store rendered artifact: %w", err)
	}

	return objectKey, nil
}
