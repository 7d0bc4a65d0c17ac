package service

import (
	"alcyxob/wellness-portal/internal/cache"
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/notification"
	"alcyxob/wellness-portal/internal/render"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrPacketNotFound        = errors.New("packet not found")
	ErrPacketVersionNotFound = errors.New("packet version not found")
	ErrUnauthorized          = errors.New("actor lacks the required role for this operation")
	ErrInvalidTransition     = errors.New("status transition not allowed from the current status")
	ErrPacketArchived        = errors.New("packet is archived and read-only")
	ErrContentShapeMismatch  = errors.New("edit payload does not match the packet's content shape")
	ErrVersionConflict       = errors.New("packet was modified concurrently, re-fetch and retry")
	ErrArtifactRender        = errors.New("rendering service failed")
)

// staffRoles are the roles allowed to drive the packet lifecycle.
var staffRoles = []domain.Role{domain.RoleAdmin, domain.RoleSuperAdmin}

// packetTransitions is the full transition table. Any requested flip not
// listed here fails with ErrInvalidTransition. ARCHIVED is absorbing: it has
// no outgoing transitions.
var packetTransitions = map[domain.PacketStatus][]domain.PacketStatus{
	domain.PacketDraft:       {domain.PacketPublished, domain.PacketArchived},
	domain.PacketPublished:   {domain.PacketUnpublished, domain.PacketArchived},
	domain.PacketUnpublished: {domain.PacketPublished, domain.PacketArchived},
	domain.PacketArchived:    {},
}

func transitionAllowed(from, to domain.PacketStatus) bool {
	for _, next := range packetTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ExerciseParameterUpdate is a partial update of one exercise block. Nil
// fields are left unchanged.
type ExerciseParameterUpdate struct {
	Sets        *int    `json:"sets,omitempty"`
	Reps        *string `json:"reps,omitempty"`
	RestSeconds *int    `json:"restSeconds,omitempty"`
	Tempo       *string `json:"tempo,omitempty"`
}

// --- Service Interface ---

// PacketService is the packet lifecycle engine: it owns every mutation of a
// packet and its version history. All mutations are version-gated with the
// version the caller read; a stale version fails with ErrVersionConflict and
// is never retried here.
type PacketService interface {
	CreatePacket(ctx context.Context, actorID, userID primitive.ObjectID, packetType domain.PacketType, content domain.PacketContent) (*domain.Packet, error)
	GetPacket(ctx context.Context, actorID, packetID primitive.ObjectID) (*domain.Packet, error)

	// Content mutations: legal in any non-ARCHIVED status, each appends a
	// version snapshot and bumps the version by exactly one.
	UpdateContent(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int, content domain.PacketContent) (*domain.Packet, error)
	UpdateExerciseParameter(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion, week, day, exercise int, update ExerciseParameterUpdate) (*domain.Packet, error)
	UpdateNutritionItem(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion, meal, item int, value domain.MealItem) (*domain.Packet, error)
	AddCoachNotes(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int, notes string) (*domain.Packet, error)

	// Status transitions: version-gated but never version-bumping.
	Publish(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error)
	Unpublish(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error)
	Archive(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error)

	// Version history.
	ListVersions(ctx context.Context, actorID, packetID primitive.ObjectID) ([]domain.PacketVersion, error)
	RestoreVersion(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion, versionNumber int) (*domain.Packet, error)

	// Artifact regeneration: idempotent, any status, no version bump.
	RegenerateArtifact(ctx context.Context, actorID, packetID primitive.ObjectID) (*domain.Packet, error)
}

// --- Service Implementation ---

// packetService implements the PacketService interface.
type packetService struct {
	packetRepo  repository.PacketRepository
	versionRepo repository.PacketVersionRepository
	authorizer  Authorizer
	notifier    notification.Notifier
	renderer    render.ArtifactRenderer
	cache       *cache.Cache
}

// NewPacketService creates a new instance of packetService.
func NewPacketService(
	packetRepo repository.PacketRepository,
	versionRepo repository.PacketVersionRepository,
	authorizer Authorizer,
	notifier notification.Notifier,
	renderer render.ArtifactRenderer,
	cacheService *cache.Cache,
) PacketService {
	return &packetService{
		packetRepo:  packetRepo,
		versionRepo: versionRepo,
		authorizer:  authorizer,
		notifier:    notifier,
		renderer:    renderer,
		cache:       cacheService,
	}
}

// requireStaff checks the actor holds a staff role before a mutation.
func (s *packetService) requireStaff(ctx context.Context, actorID primitive.ObjectID) error {
	ok, err := s.authorizer.ActorHasRole(ctx, actorID, staffRoles...)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// === Creation and reads ===

// CreatePacket creates a packet in DRAFT at version 1 and records the
// initial snapshot. The owning user is fixed here and never reassigned.
func (s *packetService) CreatePacket(ctx context.Context, actorID, userID primitive.ObjectID, packetType domain.PacketType, content domain.PacketContent) (*domain.Packet, error) {
	if userID == primitive.NilObjectID {
		return nil, errors.New("owning user ID is required")
	}
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}
	if content.Type != packetType {
		return nil, fmt.Errorf("%w: content type %q does not match packet type %q", ErrContentShapeMismatch, content.Type, packetType)
	}
	if err := content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentShapeMismatch, err)
	}

	packet := &domain.Packet{
		UserID:         userID,
		PacketType:     packetType,
		Status:         domain.PacketDraft,
		Version:        1,
		Content:        content.Clone(),
		LastModifiedBy: actorID,
	}

	packetID, err := s.packetRepo.Create(ctx, packet)
	if err != nil {
		return nil, err
	}
	packet.ID = packetID

	if _, err := s.versionRepo.Append(ctx, &domain.PacketVersion{
		PacketID: packetID,
		Version:  1,
		Content:  packet.Content.Clone(),
		AuthorID: actorID,
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.DomainPackets)
	return packet, nil
}

// GetPacket returns a packet for staff, or for the owning client when it is
// currently published.
func (s *packetService) GetPacket(ctx context.Context, actorID, packetID primitive.ObjectID) (*domain.Packet, error) {
	packet, err := s.loadPacket(ctx, packetID)
	if err != nil {
		return nil, err
	}

	isStaff, err := s.authorizer.ActorHasRole(ctx, actorID, staffRoles...)
	if err != nil {
		return nil, err
	}
	if isStaff {
		return packet, nil
	}
	if packet.UserID == actorID && packet.Status == domain.PacketPublished {
		return packet, nil
	}
	return nil, ErrUnauthorized
}

func (s *packetService) loadPacket(ctx context.Context, packetID primitive.ObjectID) (*domain.Packet, error) {
	packet, err := s.packetRepo.GetByID(ctx, packetID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPacketNotFound
		}
		return nil, err
	}
	return packet, nil
}

// === Content mutations ===

// applyContentMutation is the single path every content edit takes:
// authorize, load, gate on the expected version, mutate, validate the
// resulting content, bump the version, write conditionally, then append the
// snapshot of the result. The conditional write serializes concurrent
// editors; the loser gets ErrVersionConflict and must re-fetch.
func (s *packetService) applyContentMutation(
	ctx context.Context,
	actorID, packetID primitive.ObjectID,
	expectedVersion int,
	restoreOf *int,
	mutate func(*domain.Packet) error,
) (*domain.Packet, error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}

	packet, err := s.loadPacket(ctx, packetID)
	if err != nil {
		return nil, err
	}
	if packet.IsArchived() {
		return nil, ErrPacketArchived
	}
	if packet.Version != expectedVersion {
		// Early, cheap detection; the conditional write below is the
		// authoritative check.
		return nil, ErrVersionConflict
	}

	if err := mutate(packet); err != nil {
		return nil, err
	}
	if err := packet.Content.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContentShapeMismatch, err)
	}

	packet.Version = expectedVersion + 1
	packet.LastModifiedBy = actorID
	packet.UpdatedAt = time.Now().UTC()

	if err := s.packetRepo.UpdateContent(ctx, packet, expectedVersion); err != nil {
		return nil, mapRepoError(err)
	}

	if _, err := s.versionRepo.Append(ctx, &domain.PacketVersion{
		PacketID:   packet.ID,
		Version:    packet.Version,
		Content:    packet.Content.Clone(),
		CoachNotes: packet.CoachNotes,
		RestoreOf:  restoreOf,
		AuthorID:   actorID,
	}); err != nil {
		return nil, err
	}

	s.cache.Invalidate(cache.DomainPackets)
	s.cache.Invalidate(cache.DomainPacketVersions)
	return packet, nil
}

// UpdateContent replaces the whole content document.
func (s *packetService) UpdateContent(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int, content domain.PacketContent) (*domain.Packet, error) {
	return s.applyContentMutation(ctx, actorID, packetID, expectedVersion, nil, func(p *domain.Packet) error {
		if content.Type != p.PacketType {
			return fmt.Errorf("%w: content type %q does not match packet type %q", ErrContentShapeMismatch, content.Type, p.PacketType)
		}
		p.Content = content.Clone()
		return nil
	})
}

// UpdateExerciseParameter adjusts the prescription of a single exercise
// block, addressed by week/day/exercise index. Only exercise-bearing packets
// accept it.
func (s *packetService) UpdateExerciseParameter(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion, week, day, exercise int, update ExerciseParameterUpdate) (*domain.Packet, error) {
	return s.applyContentMutation(ctx, actorID, packetID, expectedVersion, nil, func(p *domain.Packet) error {
		if p.Content.Exercise == nil {
			return fmt.Errorf("%w: packet type %q has no exercise parameters", ErrContentShapeMismatch, p.PacketType)
		}
		program := p.Content.Exercise
		if week < 0 || week >= len(program.Weeks) {
			return fmt.Errorf("%w: week index %d out of range", ErrContentShapeMismatch, week)
		}
		if day < 0 || day >= len(program.Weeks[week].Days) {
			return fmt.Errorf("%w: day index %d out of range", ErrContentShapeMismatch, day)
		}
		if exercise < 0 || exercise >= len(program.Weeks[week].Days[day].Exercises) {
			return fmt.Errorf("%w: exercise index %d out of range", ErrContentShapeMismatch, exercise)
		}

		block := &program.Weeks[week].Days[day].Exercises[exercise]
		if update.Sets != nil {
			block.Sets = *update.Sets
		}
		if update.Reps != nil {
			block.Reps = *update.Reps
		}
		if update.RestSeconds != nil {
			block.RestSeconds = *update.RestSeconds
		}
		if update.Tempo != nil {
			block.Tempo = *update.Tempo
		}
		return nil
	})
}

// UpdateNutritionItem replaces a single meal item, addressed by meal/item
// index. Only nutrition-bearing packets accept it.
func (s *packetService) UpdateNutritionItem(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion, meal, item int, value domain.MealItem) (*domain.Packet, error) {
	return s.applyContentMutation(ctx, actorID, packetID, expectedVersion, nil, func(p *domain.Packet) error {
		if p.Content.Nutrition == nil {
			return fmt.Errorf("%w: packet type %q has no nutrition items", ErrContentShapeMismatch, p.PacketType)
		}
		plan := p.Content.Nutrition
		if meal < 0 || meal >= len(plan.Meals) {
			return fmt.Errorf("%w: meal index %d out of range", ErrContentShapeMismatch, meal)
		}
		if item < 0 || item >= len(plan.Meals[meal].Items) {
			return fmt.Errorf("%w: item index %d out of range", ErrContentShapeMismatch, item)
		}
		plan.Meals[meal].Items[item] = value
		return nil
	})
}

// AddCoachNotes sets the coach notes. Notes ride the content-mutation path,
// so they snapshot and bump the version like any other edit.
func (s *packetService) AddCoachNotes(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int, notes string) (*domain.Packet, error) {
	return s.applyContentMutation(ctx, actorID, packetID, expectedVersion, nil, func(p *domain.Packet) error {
		p.CoachNotes = notes
		return nil
	})
}

// === Status transitions ===

// applyTransition performs a version-gated status flip. The version itself
// is not bumped: a pure status change produces no new content snapshot.
func (s *packetService) applyTransition(
	ctx context.Context,
	actorID, packetID primitive.ObjectID,
	expectedVersion int,
	target domain.PacketStatus,
	stamp func(*domain.Packet, time.Time),
) (*domain.Packet, error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}

	packet, err := s.loadPacket(ctx, packetID)
	if err != nil {
		return nil, err
	}
	if !transitionAllowed(packet.Status, target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, packet.Status, target)
	}
	if packet.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	now := time.Now().UTC()
	packet.Status = target
	packet.UpdatedAt = now
	if stamp != nil {
		stamp(packet, now)
	}

	if err := s.packetRepo.UpdateStatus(ctx, packet, expectedVersion); err != nil {
		return nil, mapRepoError(err)
	}

	s.cache.Invalidate(cache.DomainPackets)
	return packet, nil
}

// Publish moves a DRAFT or UNPUBLISHED packet to PUBLISHED, stamps the
// publish event, and notifies the client. This is the only transition that
// emits a client notification; republishing notifies again because it
// implies new content the client should see.
func (s *packetService) Publish(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error) {
	packet, err := s.applyTransition(ctx, actorID, packetID, expectedVersion, domain.PacketPublished, func(p *domain.Packet, now time.Time) {
		p.PublishedAt = &now
		p.PublishedBy = &actorID
	})
	if err != nil {
		return nil, err
	}

	// Fire-and-forget, after the write committed. A notification failure
	// never rolls back the publish.
	if err := s.notifier.NotifyClientPacketPublished(ctx, packet.UserID, packet.ID); err != nil {
		log.Printf("ERROR: Failed to notify client %s about packet %s: %v", packet.UserID.Hex(), packet.ID.Hex(), err)
	}

	return packet, nil
}

// Unpublish hides a PUBLISHED packet from the client for revision. The
// publish stamps are preserved as the historical record, and no notification
// is sent so staff can revise before the client notices.
func (s *packetService) Unpublish(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error) {
	return s.applyTransition(ctx, actorID, packetID, expectedVersion, domain.PacketUnpublished, nil)
}

// Archive is the terminal transition, available from any non-ARCHIVED
// status. No notification.
func (s *packetService) Archive(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion int) (*domain.Packet, error) {
	return s.applyTransition(ctx, actorID, packetID, expectedVersion, domain.PacketArchived, nil)
}

// === Version history ===

// ListVersions returns the packet's full snapshot history, newest first.
func (s *packetService) ListVersions(ctx context.Context, actorID, packetID primitive.ObjectID) ([]domain.PacketVersion, error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}
	if _, err := s.loadPacket(ctx, packetID); err != nil {
		return nil, err
	}
	return s.versionRepo.ListByPacketID(ctx, packetID)
}

// RestoreVersion appends a new version whose content equals the historical
// snapshot, marked with RestoreOf. Forward history is never deleted, and the
// restore rides the content-mutation path so status rules still apply — a
// restore cannot also publish.
func (s *packetService) RestoreVersion(ctx context.Context, actorID, packetID primitive.ObjectID, expectedVersion, versionNumber int) (*domain.Packet, error) {
	historical, err := s.versionRepo.GetByPacketAndVersion(ctx, packetID, versionNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPacketVersionNotFound
		}
		return nil, err
	}

	restoreOf := versionNumber
	return s.applyContentMutation(ctx, actorID, packetID, expectedVersion, &restoreOf, func(p *domain.Packet) error {
		if historical.Content.Type != p.PacketType {
			return fmt.Errorf("%w: snapshot type %q does not match packet type %q", ErrContentShapeMismatch, historical.Content.Type, p.PacketType)
		}
		p.Content = historical.Content.Clone()
		p.CoachNotes = historical.CoachNotes
		return nil
	})
}

// === Artifact regeneration ===

// RegenerateArtifact renders the current content and replaces the artifact
// reference. Idempotent, allowed in any status, never a version bump: the
// artifact is a projection of the content, not new content. A renderer
// failure surfaces to the caller and leaves the stored reference and the
// lifecycle state untouched.
func (s *packetService) RegenerateArtifact(ctx context.Context, actorID, packetID primitive.ObjectID) (*domain.Packet, error) {
	if err := s.requireStaff(ctx, actorID); err != nil {
		return nil, err
	}

	packet, err := s.loadPacket(ctx, packetID)
	if err != nil {
		return nil, err
	}

	artifactRef, err := s.renderer.RenderPacketToArtifact(ctx, packet.ID, packet.Content)
	if err != nil {
		log.Printf("ERROR: Artifact render failed for packet %s: %v", packet.ID.Hex(), err)
		return nil, fmt.Errorf("%w: %v", ErrArtifactRender, err)
	}

	if err := s.packetRepo.SetArtifactRef(ctx, packet.ID, artifactRef); err != nil {
		return nil, mapRepoError(err)
	}
	packet.RenderedArtifactRef = artifactRef

	s.cache.Invalidate(cache.DomainPackets)
	return packet, nil
}

// mapRepoError translates repository sentinels to service sentinels.
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repository.ErrVersionConflict):
		return ErrVersionConflict
	case errors.Is(err, repository.ErrNotFound):
		return ErrPacketNotFound
	default:
		return err
	}
}
