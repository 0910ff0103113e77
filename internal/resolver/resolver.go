// Package resolver maps free-text mentions to stored entities.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/common/metrics"
	"pantry-assistant/internal/models"
	"pantry-assistant/internal/normalize/namekey"
	"pantry-assistant/internal/store"
)

// DefaultSearchLimit bounds the substring search fallback.
const DefaultSearchLimit = 10

type Status string

const (
	StatusMatched   Status = "matched"
	StatusAmbiguous Status = "ambiguous"
	StatusNotFound  Status = "not_found"
)

// Candidate is a visible entity offered to the user when a mention is
// ambiguous.
type Candidate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Resolution is the outcome of resolving one mention.
type Resolution struct {
	Status     Status         `json:"status"`
	Entity     *models.Entity `json:"entity,omitempty"`
	Candidates []Candidate    `json:"candidates,omitempty"`
	TriedKeys  []string       `json:"tried_keys,omitempty"`
	Created    bool           `json:"created,omitempty"`
}

// Resolver resolves mentions against an EntityRepository.
type Resolver struct {
	repo        store.EntityRepository
	searchLimit int
	logger      logger.Logger
}

func New(repo store.EntityRepository, searchLimit int, log logger.Logger) *Resolver {
	if searchLimit <= 0 {
		searchLimit = DefaultSearchLimit
	}
	return &Resolver{
		repo:        repo,
		searchLimit: searchLimit,
		logger:      log.With(map[string]interface{}{"component": "resolver"}),
	}
}

// NewSession returns a resolution cache scoped to one request for user. A
// nil user only sees shared entities and creates shared ones.
func (r *Resolver) NewSession(user *models.User) *Session {
	return &Session{
		r:     r,
		owner: user.OwnerID(),
		cache: make(map[cacheKey]Resolution),
	}
}

// ResolveExisting resolves raw without ever creating an entity.
func (r *Resolver) ResolveExisting(ctx context.Context, user *models.User, kind models.EntityKind, raw string) (Resolution, error) {
	return r.NewSession(user).ResolveExisting(ctx, kind, raw)
}

// ResolveOrCreate resolves raw and inserts a new entity when nothing
// matches. Ambiguous mentions are never created.
func (r *Resolver) ResolveOrCreate(ctx context.Context, user *models.User, kind models.EntityKind, raw string) (Resolution, error) {
	return r.NewSession(user).ResolveOrCreate(ctx, kind, raw)
}

type cacheKey struct {
	kind models.EntityKind
	key  string
}

// Session memoizes resolutions so the same mention appearing twice in one
// draft resolves to the same entity and is created at most once. It is not
// safe for concurrent use.
type Session struct {
	r     *Resolver
	owner *string
	cache map[cacheKey]Resolution
}

func (s *Session) ResolveExisting(ctx context.Context, kind models.EntityKind, raw string) (Resolution, error) {
	return s.resolve(ctx, kind, raw, false)
}

func (s *Session) ResolveOrCreate(ctx context.Context, kind models.EntityKind, raw string) (Resolution, error) {
	return s.resolve(ctx, kind, raw, true)
}

// Get fetches an entity by id within the session's visibility scope.
func (s *Session) Get(ctx context.Context, kind models.EntityKind, id string) (*models.Entity, error) {
	return s.r.repo.GetEntity(ctx, kind, id, s.owner)
}

func (s *Session) resolve(ctx context.Context, kind models.EntityKind, raw string, create bool) (Resolution, error) {
	name := strings.TrimSpace(raw)
	keys := namekey.ToCandidateKeys(name)
	if len(keys) == 0 {
		return Resolution{Status: StatusNotFound}, nil
	}

	ck := cacheKey{kind: kind, key: keys[0]}
	if cached, ok := s.cache[ck]; ok && (cached.Status != StatusNotFound || !create) {
		return cached, nil
	}

	res, err := s.lookup(ctx, kind, name, keys)
	if err != nil {
		return Resolution{}, err
	}
	if res.Status == StatusNotFound && create {
		res, err = s.create(ctx, kind, name, keys)
		if err != nil {
			return Resolution{}, err
		}
	}

	s.cache[ck] = res
	return res, nil
}

func (s *Session) lookup(ctx context.Context, kind models.EntityKind, name string, keys []string) (Resolution, error) {
	for _, key := range keys {
		e, err := s.r.repo.FindByKey(ctx, kind, key, s.owner)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("lookup %s %q: %w", kind, key, err)
		}
		return Resolution{Status: StatusMatched, Entity: e, TriedKeys: keys}, nil
	}

	found, err := s.r.repo.SearchEntities(ctx, kind, keys[len(keys)-1], s.owner, s.r.searchLimit)
	if err != nil {
		return Resolution{}, fmt.Errorf("search %s %q: %w", kind, name, err)
	}

	switch len(found) {
	case 0:
		return Resolution{Status: StatusNotFound, TriedKeys: keys}, nil
	case 1:
		e := found[0]
		return Resolution{Status: StatusMatched, Entity: &e, TriedKeys: keys}, nil
	}

	for i := range found {
		if strings.EqualFold(found[i].Name, name) {
			e := found[i]
			return Resolution{Status: StatusMatched, Entity: &e, TriedKeys: keys}, nil
		}
	}

	candidates := make([]Candidate, len(found))
	for i, e := range found {
		candidates[i] = Candidate{ID: e.ID, Name: e.Name, Key: e.Key}
	}
	return Resolution{Status: StatusAmbiguous, Candidates: candidates, TriedKeys: keys}, nil
}

func (s *Session) create(ctx context.Context, kind models.EntityKind, name string, keys []string) (Resolution, error) {
	e := &models.Entity{Kind: kind, OwnerID: s.owner, Name: name, Key: keys[0]}
	if kind == models.KindProduct {
		display := namekey.DisplayName(name)
		if key := namekey.ToKey(display); key != "" {
			e.Name, e.Key = display, key
		}
	}
	err := s.r.repo.CreateEntity(ctx, e)
	if err == nil {
		metrics.EntitiesCreated.WithLabelValues(string(kind)).Inc()
		s.r.logger.Debug("entity created", map[string]interface{}{
			"kind": kind,
			"key":  e.Key,
			"id":   e.ID,
		})
		return Resolution{Status: StatusMatched, Entity: e, TriedKeys: keys, Created: true}, nil
	}
	if !errors.Is(err, store.ErrDuplicateKey) {
		return Resolution{}, fmt.Errorf("create %s %q: %w", kind, name, err)
	}

	// Another request inserted the same key first.
	metrics.ResolutionConflicts.WithLabelValues(string(kind)).Inc()
	winner, err := s.r.repo.FindByKey(ctx, kind, e.Key, s.owner)
	if err != nil {
		return Resolution{}, fmt.Errorf("refetch %s %q after conflict: %w", kind, e.Key, err)
	}
	s.r.logger.Info("entity creation raced, using existing row", map[string]interface{}{
		"kind": kind,
		"key":  e.Key,
		"id":   winner.ID,
	})
	return Resolution{Status: StatusMatched, Entity: winner, TriedKeys: keys}, nil
}
