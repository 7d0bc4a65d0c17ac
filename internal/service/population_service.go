package service

import (
	"alcyxob/wellness-portal/internal/cache"
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrNotAClient        = errors.New("user found but is not a client")
	ErrInvalidPopulation = errors.New("unknown population tag")
	ErrUnclassified      = errors.New("client has no population assigned yet")
)

// --- Service Interface ---

// PopulationService covers classification, population assignment, the
// assessment-requirement queries, and the cached packet-listing reads that
// front the lifecycle engine's data for dashboards.
type PopulationService interface {
	// ClassifyIntake maps discovery-intake facts to a Population. Pure.
	ClassifyIntake(facts domain.ClassificationFacts) domain.Population

	// AssignPopulation sets a client's population. Staff only.
	AssignPopulation(ctx context.Context, actorID, userID primitive.ObjectID, population domain.Population) (*domain.User, error)

	// RequirementsForUser resolves the client's population and returns its
	// assessment requirements. Cached per user.
	RequirementsForUser(ctx context.Context, actorID, userID primitive.ObjectID) (domain.AssessmentRequirements, error)

	// ListClientPackets returns a client's packets: all of them for staff,
	// only PUBLISHED ones for the owning client. Cached listing read; the
	// engine invalidates the packets domain on every mutation.
	ListClientPackets(ctx context.Context, actorID, userID primitive.ObjectID) ([]domain.Packet, error)
}

// --- Service Implementation ---

type populationService struct {
	userRepo   repository.UserRepository
	packetRepo repository.PacketRepository
	authorizer Authorizer
	cache      *cache.Cache
	listTTL    time.Duration
}

// NewPopulationService creates a new instance of populationService.
func NewPopulationService(
	userRepo repository.UserRepository,
	packetRepo repository.PacketRepository,
	authorizer Authorizer,
	cacheService *cache.Cache,
	listTTL time.Duration,
) PopulationService {
	return &populationService{
		userRepo:   userRepo,
		packetRepo: packetRepo,
		authorizer: authorizer,
		cache:      cacheService,
		listTTL:    listTTL,
	}
}

func (s *populationService) ClassifyIntake(facts domain.ClassificationFacts) domain.Population {
	return domain.Classify(facts)
}

// AssignPopulation sets (or replaces) a client's population tag.
func (s *populationService) AssignPopulation(ctx context.Context, actorID, userID primitive.ObjectID, population domain.Population) (*domain.User, error) {
	ok, err := s.authorizer.ActorHasRole(ctx, actorID, staffRoles...)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	if !population.IsValid() {
		return nil, ErrInvalidPopulation
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsClient() {
		return nil, ErrNotAClient
	}

	if err := s.userRepo.SetPopulation(ctx, userID, population); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	// The cached requirements row for this user is now stale.
	s.cache.InvalidateKey(cache.NewKey(cache.DomainRequirements, userID.Hex()))

	user.Population = &population
	user.PasswordHash = ""
	return user, nil
}

// RequirementsForUser returns the assessment requirements for the client's
// assigned population.
func (s *populationService) RequirementsForUser(ctx context.Context, actorID, userID primitive.ObjectID) (domain.AssessmentRequirements, error) {
	isStaff, err := s.authorizer.ActorHasRole(ctx, actorID, staffRoles...)
	if err != nil {
		return domain.AssessmentRequirements{}, err
	}
	if !isStaff && actorID != userID {
		return domain.AssessmentRequirements{}, ErrUnauthorized
	}

	key := cache.NewKey(cache.DomainRequirements, userID.Hex())
	return cache.GetOrCompute(s.cache, key, s.listTTL, func() (domain.AssessmentRequirements, error) {
		user, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return domain.AssessmentRequirements{}, ErrUserNotFound
			}
			return domain.AssessmentRequirements{}, err
		}
		if user.Population == nil {
			return domain.AssessmentRequirements{}, ErrUnclassified
		}
		return domain.RequirementsFor(*user.Population), nil
	})
}

// ListClientPackets serves the read-heavy dashboard listing through the
// cache. Staff see every packet; the owning client sees only PUBLISHED
// ones. The cache is advisory: a stale entry can show slightly outdated
// list data, never a lifecycle inconsistency, because the engine never
// reads it on a write path.
func (s *populationService) ListClientPackets(ctx context.Context, actorID, userID primitive.ObjectID) ([]domain.Packet, error) {
	isStaff, err := s.authorizer.ActorHasRole(ctx, actorID, staffRoles...)
	if err != nil {
		return nil, err
	}

	if isStaff {
		key := cache.NewKey(cache.DomainPackets, userID.Hex(), "all")
		return cache.GetOrCompute(s.cache, key, s.listTTL, func() ([]domain.Packet, error) {
			return s.packetRepo.GetByUserID(ctx, userID)
		})
	}

	if actorID != userID {
		return nil, ErrUnauthorized
	}
	key := cache.NewKey(cache.DomainPackets, userID.Hex(), "published")
	return cache.GetOrCompute(s.cache, key, s.listTTL, func() ([]domain.Packet, error) {
		return s.packetRepo.GetByUserIDAndStatus(ctx, userID, domain.PacketPublished)
	})
}
