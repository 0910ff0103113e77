package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
	"pantry-assistant/internal/store"
	"pantry-assistant/internal/store/memory"
)

// ==========================
// Test Helper Functions
// ==========================

type MockEntityRepository struct {
	mock.Mock
}

func (m *MockEntityRepository) FindByKey(ctx context.Context, kind models.EntityKind, key string, ownerID *string) (*models.Entity, error) {
	args := m.Called(ctx, kind, key, ownerID)
	if e := args.Get(0); e != nil {
		return e.(*models.Entity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEntityRepository) SearchEntities(ctx context.Context, kind models.EntityKind, query string, ownerID *string, limit int) ([]models.Entity, error) {
	args := m.Called(ctx, kind, query, ownerID, limit)
	if e := args.Get(0); e != nil {
		return e.([]models.Entity), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEntityRepository) CreateEntity(ctx context.Context, e *models.Entity) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEntityRepository) GetEntity(ctx context.Context, kind models.EntityKind, id string, ownerID *string) (*models.Entity, error) {
	args := m.Called(ctx, kind, id, ownerID)
	if e := args.Get(0); e != nil {
		return e.(*models.Entity), args.Error(1)
	}
	return nil, args.Error(1)
}

func createTestResolver(t *testing.T, repo store.EntityRepository) *Resolver {
	return New(repo, DefaultSearchLimit, logger.NewTestLogger(t))
}

func seed(t *testing.T, s *memory.Store, kind models.EntityKind, name string, owner *string) *models.Entity {
	t.Helper()
	e := &models.Entity{Kind: kind, Name: name, Key: namekey.ToKey(name), OwnerID: owner}
	require.NoError(t, s.CreateEntity(context.Background(), e))
	return e
}

var alice = &models.User{ID: "alice"}

// ==========================
// Lookup
// ==========================

func TestResolveExisting_MatchesAnyCandidateKey(t *testing.T) {
	s := memory.New()
	apple := seed(t, s, models.KindProduct, "pomme", alice.OwnerID())
	r := createTestResolver(t, s)

	for _, mention := range []string{"pomme", "Pommes", "des pommes", "POMMÉ"} {
		t.Run(mention, func(t *testing.T) {
			res, err := r.ResolveExisting(context.Background(), alice, models.KindProduct, mention)
			require.NoError(t, err)
			assert.Equal(t, StatusMatched, res.Status)
			assert.Equal(t, apple.ID, res.Entity.ID)
		})
	}
}

func TestResolveExisting_ExactKeyOfEveryCandidate(t *testing.T) {
	s := memory.New()
	seed(t, s, models.KindProduct, "pomme verte", nil)
	r := createTestResolver(t, s)

	res, err := r.ResolveExisting(context.Background(), alice, models.KindProduct, "des Pommes Vertes")
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, res.Status)
	assert.Equal(t, namekey.ToCandidateKeys("des Pommes Vertes"), res.TriedKeys)
}

func TestResolveExisting_SubstringSingleHitAutoSelects(t *testing.T) {
	s := memory.New()
	tomato := seed(t, s, models.KindProduct, "Tomates cerises", nil)
	r := createTestResolver(t, s)

	res, err := r.ResolveExisting(context.Background(), alice, models.KindProduct, "tomate")
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, res.Status)
	assert.Equal(t, tomato.ID, res.Entity.ID)
}

func TestResolveExisting_Ambiguous(t *testing.T) {
	s := memory.New()
	seed(t, s, models.KindRecipe, "Gratin dauphinois", alice.OwnerID())
	seed(t, s, models.KindRecipe, "Gratin de courgettes", alice.OwnerID())
	seed(t, s, models.KindRecipe, "Gratin de pâtes", alice.OwnerID())
	r := createTestResolver(t, s)

	res, err := r.ResolveExisting(context.Background(), alice, models.KindRecipe, "gratin")
	require.NoError(t, err)
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.Nil(t, res.Entity)
	assert.Len(t, res.Candidates, 3)
}

func TestResolveExisting_NameTiebreak(t *testing.T) {
	repo := new(MockEntityRepository)
	repo.On("FindByKey", mock.Anything, models.KindRecipe, mock.Anything, mock.Anything).Return(nil, store.ErrNotFound)
	repo.On("SearchEntities", mock.Anything, models.KindRecipe, "gratin", mock.Anything, DefaultSearchLimit).Return([]models.Entity{
		{ID: "r1", Name: "Gratin dauphinois", Key: "gratin-dauphinois"},
		{ID: "r2", Name: "gratin", Key: "gratin-1"},
	}, nil)
	r := createTestResolver(t, repo)

	res, err := r.ResolveExisting(context.Background(), alice, models.KindRecipe, "Gratin")
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, res.Status)
	assert.Equal(t, "r2", res.Entity.ID)
}

func TestResolveExisting_NotFoundNeverCreates(t *testing.T) {
	s := memory.New()
	r := createTestResolver(t, s)

	res, err := r.ResolveExisting(context.Background(), alice, models.KindProduct, "quinoa")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
	assert.NotEmpty(t, res.TriedKeys)

	found, _ := s.SearchEntities(context.Background(), models.KindProduct, "quinoa", alice.OwnerID(), 10)
	assert.Empty(t, found)
}

func TestResolveExisting_EmptyMention(t *testing.T) {
	r := createTestResolver(t, memory.New())

	res, err := r.ResolveExisting(context.Background(), alice, models.KindProduct, "  ")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestResolveExisting_AnonymousSeesOnlyShared(t *testing.T) {
	s := memory.New()
	seed(t, s, models.KindProduct, "pomme", alice.OwnerID())
	r := createTestResolver(t, s)

	res, err := r.ResolveExisting(context.Background(), nil, models.KindProduct, "pomme")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)
}

// ==========================
// Create
// ==========================

func TestResolveOrCreate_CreatesOwnedEntity(t *testing.T) {
	s := memory.New()
	r := createTestResolver(t, s)

	res, err := r.ResolveOrCreate(context.Background(), alice, models.KindProduct, "Quinoa")
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, res.Status)
	assert.True(t, res.Created)
	require.NotNil(t, res.Entity.OwnerID)
	assert.Equal(t, "alice", *res.Entity.OwnerID)
	assert.Equal(t, "quinoa", res.Entity.Key)
}

func TestResolveOrCreate_ProductIsCreatedSingular(t *testing.T) {
	s := memory.New()
	r := createTestResolver(t, s)

	res, err := r.ResolveOrCreate(context.Background(), alice, models.KindProduct, "des pommes")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "pomme", res.Entity.Name)
	assert.Equal(t, "pomme", res.Entity.Key)

	again, err := r.ResolveOrCreate(context.Background(), alice, models.KindProduct, "pommes")
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, res.Entity.ID, again.Entity.ID)
}

func TestResolveOrCreate_AnonymousCreatesShared(t *testing.T) {
	r := createTestResolver(t, memory.New())

	res, err := r.ResolveOrCreate(context.Background(), nil, models.KindProduct, "Quinoa")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Nil(t, res.Entity.OwnerID)
}

func TestResolveOrCreate_AmbiguousIsNotCreated(t *testing.T) {
	s := memory.New()
	seed(t, s, models.KindRecipe, "Gratin dauphinois", alice.OwnerID())
	seed(t, s, models.KindRecipe, "Gratin de courgettes", alice.OwnerID())
	r := createTestResolver(t, s)

	res, err := r.ResolveOrCreate(context.Background(), alice, models.KindRecipe, "gratin")
	require.NoError(t, err)
	assert.Equal(t, StatusAmbiguous, res.Status)
	assert.False(t, res.Created)
}

func TestResolveOrCreate_RaceRefetchesWinner(t *testing.T) {
	winner := &models.Entity{ID: "p-winner", Kind: models.KindProduct, Name: "Quinoa", Key: "quinoa"}

	repo := new(MockEntityRepository)
	repo.On("FindByKey", mock.Anything, models.KindProduct, "quinoa", mock.Anything).Return(nil, store.ErrNotFound).Once()
	repo.On("SearchEntities", mock.Anything, models.KindProduct, "quinoa", mock.Anything, DefaultSearchLimit).Return([]models.Entity{}, nil)
	repo.On("CreateEntity", mock.Anything, mock.AnythingOfType("*models.Entity")).Return(store.ErrDuplicateKey)
	repo.On("FindByKey", mock.Anything, models.KindProduct, "quinoa", mock.Anything).Return(winner, nil).Once()
	r := createTestResolver(t, repo)

	res, err := r.ResolveOrCreate(context.Background(), alice, models.KindProduct, "Quinoa")
	require.NoError(t, err)
	assert.Equal(t, StatusMatched, res.Status)
	assert.Equal(t, "p-winner", res.Entity.ID)
	assert.False(t, res.Created)
	repo.AssertExpectations(t)
}

func TestSession_CreatesOnceWithinDraft(t *testing.T) {
	s := memory.New()
	r := createTestResolver(t, s)
	sess := r.NewSession(alice)

	first, err := sess.ResolveOrCreate(context.Background(), models.KindProduct, "Quinoa")
	require.NoError(t, err)
	second, err := sess.ResolveOrCreate(context.Background(), models.KindProduct, "quinoa")
	require.NoError(t, err)

	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	found, _ := s.SearchEntities(context.Background(), models.KindProduct, "quinoa", alice.OwnerID(), 10)
	assert.Len(t, found, 1)
}

func TestSession_NotFoundThenCreate(t *testing.T) {
	r := createTestResolver(t, memory.New())
	sess := r.NewSession(alice)

	res, err := sess.ResolveExisting(context.Background(), models.KindProduct, "quinoa")
	require.NoError(t, err)
	assert.Equal(t, StatusNotFound, res.Status)

	res, err = sess.ResolveOrCreate(context.Background(), models.KindProduct, "quinoa")
	require.NoError(t, err)
	assert.True(t, res.Created)
}
