package service

import (
	"alcyxob/wellness-portal/internal/cache"
	"alcyxob/wellness-portal/internal/domain"
	"alcyxob/wellness-portal/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- In-memory fakes ---

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[primitive.ObjectID]*domain.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = primitive.NewObjectID()
	clone := *user
	r.users[user.ID] = &clone
	return user.ID, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *fakeUserRepo) SetPopulation(_ context.Context, userID primitive.ObjectID, population domain.Population) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	p := population
	u.Population = &p
	return nil
}

type fakePacketRepo struct {
	mu      sync.Mutex
	packets map[primitive.ObjectID]*domain.Packet
}

func newFakePacketRepo() *fakePacketRepo {
	return &fakePacketRepo{packets: make(map[primitive.ObjectID]*domain.Packet)}
}

func clonePacket(p *domain.Packet) *domain.Packet {
	clone := *p
	clone.Content = p.Content.Clone()
	return &clone
}

func (r *fakePacketRepo) Create(_ context.Context, packet *domain.Packet) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	packet.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	packet.CreatedAt = now
	packet.UpdatedAt = now
	r.packets[packet.ID] = clonePacket(packet)
	return packet.ID, nil
}

func (r *fakePacketRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.packets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePacket(p), nil
}

func (r *fakePacketRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) ([]domain.Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Packet
	for _, p := range r.packets {
		if p.UserID == userID {
			out = append(out, *clonePacket(p))
		}
	}
	return out, nil
}

func (r *fakePacketRepo) GetByUserIDAndStatus(_ context.Context, userID primitive.ObjectID, status domain.PacketStatus) ([]domain.Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Packet
	for _, p := range r.packets {
		if p.UserID == userID && p.Status == status {
			out = append(out, *clonePacket(p))
		}
	}
	return out, nil
}

func (r *fakePacketRepo) UpdateContent(_ context.Context, packet *domain.Packet, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.packets[packet.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	stored.Content = packet.Content.Clone()
	stored.CoachNotes = packet.CoachNotes
	stored.Version = packet.Version
	stored.LastModifiedBy = packet.LastModifiedBy
	stored.UpdatedAt = packet.UpdatedAt
	return nil
}

func (r *fakePacketRepo) UpdateStatus(_ context.Context, packet *domain.Packet, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.packets[packet.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return repository.ErrVersionConflict
	}
	stored.Status = packet.Status
	stored.UpdatedAt = packet.UpdatedAt
	if packet.PublishedAt != nil {
		stored.PublishedAt = packet.PublishedAt
	}
	if packet.PublishedBy != nil {
		stored.PublishedBy = packet.PublishedBy
	}
	return nil
}

func (r *fakePacketRepo) SetArtifactRef(_ context.Context, id primitive.ObjectID, artifactRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.packets[id]
	if !ok {
		return repository.ErrNotFound
	}
	stored.RenderedArtifactRef = artifactRef
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

// forceVersion simulates a concurrent writer bumping the stored version
// between a reader's load and its conditional write.
func (r *fakePacketRepo) forceVersion(id primitive.ObjectID, version int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets[id].Version = version
}

type fakeVersionRepo struct {
	mu       sync.Mutex
	versions map[primitive.ObjectID][]domain.PacketVersion
}

func newFakeVersionRepo() *fakeVersionRepo {
	return &fakeVersionRepo{versions: make(map[primitive.ObjectID][]domain.PacketVersion)}
}

func (r *fakeVersionRepo) Append(_ context.Context, version *domain.PacketVersion) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.versions[version.PacketID] {
		if existing.Version == version.Version {
			return primitive.NilObjectID, repository.ErrDuplicateVersion
		}
	}
	version.ID = primitive.NewObjectID()
	version.CreatedAt = time.Now().UTC()
	clone := *version
	clone.Content = version.Content.Clone()
	r.versions[version.PacketID] = append(r.versions[version.PacketID], clone)
	return version.ID, nil
}

func (r *fakeVersionRepo) GetByPacketAndVersion(_ context.Context, packetID primitive.ObjectID, versionNumber int) (*domain.PacketVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, v := range r.versions[packetID] {
		if v.Version == versionNumber {
			clone := v
			clone.Content = v.Content.Clone()
			return &clone, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeVersionRepo) ListByPacketID(_ context.Context, packetID primitive.ObjectID) ([]domain.PacketVersion, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]domain.PacketVersion(nil), r.versions[packetID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []primitive.ObjectID
	err   error
}

func (n *fakeNotifier) NotifyClientPacketPublished(_ context.Context, _, packetID primitive.ObjectID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, packetID)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

type fakeRenderer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *fakeRenderer) RenderPacketToArtifact(_ context.Context, packetID primitive.ObjectID, _ domain.PacketContent) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return "", r.err
	}
	return fmt.Sprintf("packets/%s/artifacts/render-%d.json", packetID.Hex(), r.calls), nil
}

// --- Fixture ---

type engineFixture struct {
	svc      PacketService
	users    *fakeUserRepo
	packets  *fakePacketRepo
	versions *fakeVersionRepo
	notifier *fakeNotifier
	renderer *fakeRenderer
	cache    *cache.Cache
	adminID  primitive.ObjectID
	clientID primitive.ObjectID
	otherID  primitive.ObjectID
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	ctx := context.Background()

	users := newFakeUserRepo()
	admin := &domain.User{Name: "Admin", Email: "admin@example.com", PasswordHash: "x", Role: domain.RoleAdmin}
	client := &domain.User{Name: "Client", Email: "client@example.com", PasswordHash: "x", Role: domain.RoleClient}
	other := &domain.User{Name: "Other", Email: "other@example.com", PasswordHash: "x", Role: domain.RoleClient}
	adminID, err := users.Create(ctx, admin)
	require.NoError(t, err)
	clientID, err := users.Create(ctx, client)
	require.NoError(t, err)
	otherID, err := users.Create(ctx, other)
	require.NoError(t, err)

	packets := newFakePacketRepo()
	versions := newFakeVersionRepo()
	notifier := &fakeNotifier{}
	renderer := &fakeRenderer{}
	listingCache := cache.New(time.Minute)

	svc := NewPacketService(packets, versions, NewRepositoryAuthorizer(users), notifier, renderer, listingCache)

	return &engineFixture{
		svc:      svc,
		users:    users,
		packets:  packets,
		versions: versions,
		notifier: notifier,
		renderer: renderer,
		cache:    listingCache,
		adminID:  adminID,
		clientID: clientID,
		otherID:  otherID,
	}
}

func exerciseContent() domain.PacketContent {
	return domain.PacketContent{
		Type: domain.PacketTypeExerciseProgram,
		Exercise: &domain.ExerciseProgramContent{
			Title: "Base Program",
			Weeks: []domain.ProgramWeek{
				{
					Number: 1,
					Days: []domain.ProgramDay{
						{
							Name: "Day 1",
							Exercises: []domain.ExerciseBlock{
								{Name: "Squat", Sets: 3, Reps: "5"},
								{Name: "Press", Sets: 3, Reps: "8"},
							},
						},
					},
				},
			},
		},
	}
}

func nutritionContent() domain.PacketContent {
	return domain.PacketContent{
		Type: domain.PacketTypeNutritionPlan,
		Nutrition: &domain.NutritionPlanContent{
			Title:         "Base Plan",
			DailyCalories: 2500,
			Meals: []domain.Meal{
				{Name: "Lunch", Items: []domain.MealItem{{Description: "Rice", Quantity: "150g"}}},
			},
		},
	}
}

func (f *engineFixture) createExercisePacket(t *testing.T) *domain.Packet {
	t.Helper()
	packet, err := f.svc.CreatePacket(context.Background(), f.adminID, f.clientID, domain.PacketTypeExerciseProgram, exerciseContent())
	require.NoError(t, err)
	return packet
}

// --- Tests ---

func TestCreatePacketStartsInDraftAtVersionOne(t *testing.T) {
	f := newEngineFixture(t)
	packet := f.createExercisePacket(t)

	assert.Equal(t, domain.PacketDraft, packet.Status)
	assert.Equal(t, 1, packet.Version)
	assert.Nil(t, packet.PublishedAt)
	assert.Nil(t, packet.PublishedBy)

	versions, err := f.svc.ListVersions(context.Background(), f.adminID, packet.ID)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].Version)
	assert.Nil(t, versions[0].RestoreOf)
}

func TestCreatePacketRejectsNonStaffAndBadContent(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreatePacket(ctx, f.clientID, f.clientID, domain.PacketTypeExerciseProgram, exerciseContent())
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.CreatePacket(ctx, f.adminID, f.clientID, domain.PacketTypeNutritionPlan, exerciseContent())
	assert.ErrorIs(t, err, ErrContentShapeMismatch)
}

func TestContentMutationsBumpVersionByOne(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	// N=3 content mutations on a fresh packet.
	packet, err := f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "Focus on depth.")
	require.NoError(t, err)
	assert.Equal(t, 2, packet.Version)

	sets := 5
	packet, err = f.svc.UpdateExerciseParameter(ctx, f.adminID, packet.ID, 2, 0, 0, 0, ExerciseParameterUpdate{Sets: &sets})
	require.NoError(t, err)
	assert.Equal(t, 3, packet.Version)
	assert.Equal(t, 5, packet.Content.Exercise.Weeks[0].Days[0].Exercises[0].Sets)

	newContent := exerciseContent()
	newContent.Exercise.Title = "Revised Program"
	packet, err = f.svc.UpdateContent(ctx, f.adminID, packet.ID, 3, newContent)
	require.NoError(t, err)
	assert.Equal(t, 4, packet.Version)

	versions, err := f.svc.ListVersions(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	require.Len(t, versions, 4, "N mutations on a fresh packet yield N+1 versions")
	for i := 0; i < len(versions)-1; i++ {
		assert.Greater(t, versions[i].Version, versions[i+1].Version, "versions must be strictly decreasing")
	}
}

func TestUpdateExerciseParameterRejectsWrongShape(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet, err := f.svc.CreatePacket(ctx, f.adminID, f.clientID, domain.PacketTypeNutritionPlan, nutritionContent())
	require.NoError(t, err)

	sets := 4
	_, err = f.svc.UpdateExerciseParameter(ctx, f.adminID, packet.ID, 1, 0, 0, 0, ExerciseParameterUpdate{Sets: &sets})
	assert.ErrorIs(t, err, ErrContentShapeMismatch)

	// Rejected before any write: version and history untouched.
	current, err := f.svc.GetPacket(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, current.Version)
	versions, err := f.svc.ListVersions(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1)
}

func TestUpdateNutritionItemOutOfRange(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet, err := f.svc.CreatePacket(ctx, f.adminID, f.clientID, domain.PacketTypeNutritionPlan, nutritionContent())
	require.NoError(t, err)

	_, err = f.svc.UpdateNutritionItem(ctx, f.adminID, packet.ID, 1, 0, 5, domain.MealItem{Description: "Eggs"})
	assert.ErrorIs(t, err, ErrContentShapeMismatch)

	packet, err = f.svc.UpdateNutritionItem(ctx, f.adminID, packet.ID, 1, 0, 0, domain.MealItem{Description: "Eggs", Quantity: "3"})
	require.NoError(t, err)
	assert.Equal(t, "Eggs", packet.Content.Nutrition.Meals[0].Items[0].Description)
	assert.Equal(t, 2, packet.Version)
}

func TestTransitionTableIsExhaustive(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// DRAFT -> UNPUBLISHED is not in the table.
	packet := f.createExercisePacket(t)
	_, err := f.svc.Unpublish(ctx, f.adminID, packet.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// PUBLISHED -> PUBLISHED is not in the table.
	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// ARCHIVED is absorbing.
	_, err = f.svc.Archive(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	for _, attempt := range []func() (*domain.Packet, error){
		func() (*domain.Packet, error) { return f.svc.Publish(ctx, f.adminID, packet.ID, 1) },
		func() (*domain.Packet, error) { return f.svc.Unpublish(ctx, f.adminID, packet.ID, 1) },
		func() (*domain.Packet, error) { return f.svc.Archive(ctx, f.adminID, packet.ID, 1) },
	} {
		_, err := attempt()
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}

	// Status and version unchanged by the rejected attempts.
	current, err := f.svc.GetPacket(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketArchived, current.Status)
	assert.Equal(t, 1, current.Version)
}

func TestPublishStampsAndNotifies(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	published, err := f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketPublished, published.Status)
	assert.Equal(t, 1, published.Version, "publish must not bump the version")
	require.NotNil(t, published.PublishedAt)
	require.NotNil(t, published.PublishedBy)
	assert.Equal(t, f.adminID, *published.PublishedBy)
	assert.Equal(t, 1, f.notifier.count())
}

func TestPublishUnpublishRepublishNotificationCount(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	published, err := f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	firstPublishedAt := *published.PublishedAt

	unpublished, err := f.svc.Unpublish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketUnpublished, unpublished.Status)
	// Publish stamps survive unpublish as the historical record.
	require.NotNil(t, unpublished.PublishedAt)
	assert.Equal(t, firstPublishedAt, *unpublished.PublishedAt)
	assert.Equal(t, 1, f.notifier.count(), "unpublish must not notify")

	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, f.notifier.count(), "republish notifies again")
}

func TestNotifierFailureDoesNotRollBackPublish(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	f.notifier.err = errors.New("smtp down")
	packet := f.createExercisePacket(t)

	published, err := f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketPublished, published.Status)
}

func TestEditingPublishedPacketKeepsItPublished(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	_, err := f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)

	edited, err := f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "Typo fix.")
	require.NoError(t, err)
	assert.Equal(t, domain.PacketPublished, edited.Status, "edits never auto-unpublish")
	assert.Equal(t, 2, edited.Version)
}

func TestArchivedPacketIsReadOnly(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	_, err := f.svc.Archive(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)

	_, err = f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "too late")
	assert.ErrorIs(t, err, ErrPacketArchived)
}

func TestStaleVersionFailsWithConflict(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	// Two editors both read version 1. The first commit wins and produces
	// version 2; the second, still presenting version 1, must conflict.
	first, err := f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "editor one")
	require.NoError(t, err)
	assert.Equal(t, 2, first.Version)

	_, err = f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "editor two")
	assert.ErrorIs(t, err, ErrVersionConflict)

	current, err := f.svc.GetPacket(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, "editor one", current.CoachNotes, "loser's edit must not apply")
	assert.Equal(t, 2, current.Version)

	versions, err := f.svc.ListVersions(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestConflictDetectedAtWriteTime(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	// Simulate a writer sneaking in after this request's load but before
	// its conditional write: the repo-level gate must still catch it.
	err := f.packets.UpdateContent(ctx, &domain.Packet{ID: packet.ID, Content: exerciseContent(), Version: 2}, 5)
	assert.ErrorIs(t, err, repository.ErrVersionConflict)

	f.packets.forceVersion(packet.ID, 7)
	_, err = f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "stale")
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestStatusTransitionsAreVersionGated(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	_, err := f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "bump")
	require.NoError(t, err)

	// Publish presenting the pre-edit version must conflict.
	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 2)
	require.NoError(t, err)
}

func TestRestorePreservesForwardHistory(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	sets := 4
	_, err := f.svc.UpdateExerciseParameter(ctx, f.adminID, packet.ID, 1, 0, 0, 0, ExerciseParameterUpdate{Sets: &sets})
	require.NoError(t, err)
	_, err = f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 2, "latest notes")
	require.NoError(t, err)

	before, err := f.svc.ListVersions(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	require.Len(t, before, 3)

	restored, err := f.svc.RestoreVersion(ctx, f.adminID, packet.ID, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, restored.Version)
	assert.Equal(t, 3, restored.Content.Exercise.Weeks[0].Days[0].Exercises[0].Sets, "content equals the restored snapshot")

	after, err := f.svc.ListVersions(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	require.Len(t, after, 4, "restore appends exactly one version")

	newest := after[0]
	require.NotNil(t, newest.RestoreOf)
	assert.Equal(t, 1, *newest.RestoreOf)

	// Forward history untouched.
	for i, v := range before {
		assert.Equal(t, v.Version, after[i+1].Version)
	}
}

func TestRestoreUnknownVersion(t *testing.T) {
	f := newEngineFixture(t)
	packet := f.createExercisePacket(t)

	_, err := f.svc.RestoreVersion(context.Background(), f.adminID, packet.ID, 1, 42)
	assert.ErrorIs(t, err, ErrPacketVersionNotFound)
}

func TestRestoreDoesNotChangeStatus(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	_, err := f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "v2")
	require.NoError(t, err)
	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 2)
	require.NoError(t, err)

	restored, err := f.svc.RestoreVersion(ctx, f.adminID, packet.ID, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketPublished, restored.Status, "restore must not flip status")
}

func TestRegenerateArtifact(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	regenerated, err := f.svc.RegenerateArtifact(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	firstRef := regenerated.RenderedArtifactRef
	assert.NotEmpty(t, firstRef)
	assert.Equal(t, 1, regenerated.Version, "rendering is not a content mutation")

	// Idempotent: rerunning replaces the ref without touching the version.
	regenerated, err = f.svc.RegenerateArtifact(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.NotEqual(t, firstRef, regenerated.RenderedArtifactRef)
	assert.Equal(t, 1, regenerated.Version)

	versions, err := f.svc.ListVersions(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.Len(t, versions, 1, "rendering never appends a version")
}

func TestRendererFailureLeavesStateUntouched(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	_, err := f.svc.RegenerateArtifact(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	current, err := f.svc.GetPacket(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	goodRef := current.RenderedArtifactRef

	f.renderer.err = errors.New("layout engine exploded")
	_, err = f.svc.RegenerateArtifact(ctx, f.adminID, packet.ID)
	assert.ErrorIs(t, err, ErrArtifactRender)

	current, err = f.svc.GetPacket(ctx, f.adminID, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, goodRef, current.RenderedArtifactRef, "failed render must not clear the previous artifact")
}

func TestClientVisibilityRules(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	// Draft is hidden from the owning client.
	_, err := f.svc.GetPacket(ctx, f.clientID, packet.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)

	got, err := f.svc.GetPacket(ctx, f.clientID, packet.ID)
	require.NoError(t, err)
	assert.Equal(t, packet.ID, got.ID)

	// A different client never sees it.
	_, err = f.svc.GetPacket(ctx, f.otherID, packet.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// Unpublish hides it again.
	_, err = f.svc.Unpublish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	_, err = f.svc.GetPacket(ctx, f.clientID, packet.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestMutationsRequireStaffRole(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()
	packet := f.createExercisePacket(t)

	_, err := f.svc.Publish(ctx, f.clientID, packet.ID, 1)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.AddCoachNotes(ctx, f.clientID, packet.ID, 1, "nope")
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.RegenerateArtifact(ctx, f.clientID, packet.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = f.svc.ListVersions(ctx, f.clientID, packet.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUnknownPacket(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	_, err := f.svc.GetPacket(ctx, f.adminID, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrPacketNotFound)
	_, err = f.svc.Publish(ctx, f.adminID, primitive.NewObjectID(), 1)
	assert.ErrorIs(t, err, ErrPacketNotFound)
}

func TestEndToEndLifecycle(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	// Athlete client: verify the requirement row feeding packet generation.
	reqs := domain.RequirementsFor(domain.PopulationAthlete)
	assert.ElementsMatch(t,
		[]domain.AssessmentType{domain.AssessmentNutrition, domain.AssessmentTraining, domain.AssessmentPerformance, domain.AssessmentRecovery},
		reqs.Required)
	assert.ElementsMatch(t, []domain.AssessmentType{domain.AssessmentLifestyle}, reqs.Optional)

	packet := f.createExercisePacket(t)
	assert.Equal(t, domain.PacketDraft, packet.Status)

	published, err := f.svc.Publish(ctx, f.adminID, packet.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketPublished, published.Status)
	assert.Equal(t, 1, f.notifier.count())

	noted, err := f.svc.AddCoachNotes(ctx, f.adminID, packet.ID, 1, "Great first week.")
	require.NoError(t, err)
	assert.Equal(t, 2, noted.Version)
	assert.Equal(t, domain.PacketPublished, noted.Status)

	unpublished, err := f.svc.Unpublish(ctx, f.adminID, packet.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketUnpublished, unpublished.Status)
	assert.Equal(t, 1, f.notifier.count(), "unpublish emits no notification")

	archived, err := f.svc.Archive(ctx, f.adminID, packet.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.PacketArchived, archived.Status)

	_, err = f.svc.Publish(ctx, f.adminID, packet.ID, 2)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
