package repository

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ayatose/refbako/models"
	"github.com/ayatose/refbako/utils"
	"github.com/google/uuid"
)

// MemoryStore backs the in-memory repository implementations. It mirrors the
// durable backend's contracts over mutex-guarded maps so tests and the
// memory storage backend share the exact interfaces the flows depend on.
type MemoryStore struct {
	mu sync.RWMutex

	accounts   map[uint]*models.Account
	references map[uint]*models.Reference
	tags       map[string]*models.Tag

	nextAccountID   uint
	nextReferenceID uint
	nextTagID       uint
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:        make(map[uint]*models.Account),
		references:      make(map[uint]*models.Reference),
		tags:            make(map[string]*models.Tag),
		nextAccountID:   1,
		nextReferenceID: 1,
		nextTagID:       1,
	}
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	c.References = nil
	return &c
}

func cloneReference(r *models.Reference) *models.Reference {
	c := *r
	c.Owner = nil
	c.Tags = append(c.Tags[:0:0], r.Tags...)
	return &c
}

func cloneTag(t *models.Tag) *models.Tag {
	c := *t
	return &c
}

// MemoryAccountRepository implements AccountRepository over a MemoryStore
type MemoryAccountRepository struct {
	store *MemoryStore
}

// NewMemoryAccountRepository creates an in-memory account repository
func NewMemoryAccountRepository(store *MemoryStore) AccountRepository {
	return &MemoryAccountRepository{store: store}
}

func (r *MemoryAccountRepository) ByID(_ context.Context, id uint) (*models.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if a, ok := r.store.accounts[id]; ok {
		return cloneAccount(a), nil
	}
	return nil, nil
}

func (r *MemoryAccountRepository) ByEmail(_ context.Context, email string) (*models.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, a := range r.store.accounts {
		if a.Email == email {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (r *MemoryAccountRepository) ByUUID(_ context.Context, id uuid.UUID) (*models.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, a := range r.store.accounts {
		if a.UUID == id {
			return cloneAccount(a), nil
		}
	}
	return nil, nil
}

func (r *MemoryAccountRepository) Save(_ context.Context, entity *models.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entity.ID == 0 {
		entity.ID = r.store.nextAccountID
		r.store.nextAccountID++
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = utils.UTCNow()
	}
	entity.UpdatedAt = utils.UTCNow()
	r.store.accounts[entity.ID] = cloneAccount(entity)
	return nil
}

func (r *MemoryAccountRepository) SaveBatch(ctx context.Context, entities []*models.Account) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryAccountRepository) UpdateLastLogin(_ context.Context, accountID uint) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if a, ok := r.store.accounts[accountID]; ok {
		a.LastLoginAt = utils.UTCNowPtr()
		a.UpdatedAt = utils.UTCNow()
	}
	return nil
}

func matchAccount(a *models.Account, f models.AccountFilter) bool {
	if f.ID != nil && a.ID != *f.ID {
		return false
	}
	if f.UUID != nil && a.UUID != *f.UUID {
		return false
	}
	if f.Username != nil && a.Username != *f.Username {
		return false
	}
	if f.Email != nil && a.Email != *f.Email {
		return false
	}
	if f.IsActive != nil && (a.IsActive == nil || *a.IsActive != *f.IsActive) {
		return false
	}
	if f.CreatedAfter != nil && !a.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !a.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func (r *MemoryAccountRepository) ByFilter(_ context.Context, filter models.AccountFilter, _ string, limit, offset int) ([]*models.Account, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var rows []*models.Account
	for _, a := range r.store.accounts {
		if matchAccount(a, filter) {
			rows = append(rows, cloneAccount(a))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return window(rows, limit, offset), nil
}

func (r *MemoryAccountRepository) Count(ctx context.Context, filter models.AccountFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (r *MemoryAccountRepository) Exists(ctx context.Context, filter models.AccountFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// MemoryReferenceRepository implements ReferenceRepository over a MemoryStore
type MemoryReferenceRepository struct {
	store *MemoryStore
}

// NewMemoryReferenceRepository creates an in-memory reference repository
func NewMemoryReferenceRepository(store *MemoryStore) ReferenceRepository {
	return &MemoryReferenceRepository{store: store}
}

func (r *MemoryReferenceRepository) ByID(_ context.Context, id uint) (*models.Reference, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if ref, ok := r.store.references[id]; ok {
		return cloneReference(ref), nil
	}
	return nil, nil
}

func (r *MemoryReferenceRepository) ByUUID(_ context.Context, id uuid.UUID) (*models.Reference, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, ref := range r.store.references {
		if ref.UUID == id {
			return cloneReference(ref), nil
		}
	}
	return nil, nil
}

func (r *MemoryReferenceRepository) ByOwnerAndURL(_ context.Context, ownerID uint, url string) (*models.Reference, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if ref := r.store.findByOwnerAndURL(ownerID, url); ref != nil {
		return cloneReference(ref), nil
	}
	return nil, nil
}

// findByOwnerAndURL must be called with the store lock held
func (s *MemoryStore) findByOwnerAndURL(ownerID uint, url string) *models.Reference {
	for _, ref := range s.references {
		if ref.OwnerID == ownerID && ref.URL == url {
			return ref
		}
	}
	return nil
}

func (r *MemoryReferenceRepository) UpsertByURL(_ context.Context, candidate *models.Reference) (*models.Reference, bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if existing := r.store.findByOwnerAndURL(candidate.OwnerID, candidate.URL); existing != nil {
		existing.MergeFrom(candidate)
		existing.UpdatedAt = utils.UTCNow()
		return cloneReference(existing), false, nil
	}

	if candidate.UUID == uuid.Nil {
		candidate.UUID = uuid.New()
	}
	candidate.ID = r.store.nextReferenceID
	r.store.nextReferenceID++
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = utils.UTCNow()
	}
	candidate.UpdatedAt = utils.UTCNow()
	r.store.references[candidate.ID] = cloneReference(candidate)
	return cloneReference(candidate), true, nil
}

func (r *MemoryReferenceRepository) Save(_ context.Context, entity *models.Reference) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entity.ID == 0 {
		entity.ID = r.store.nextReferenceID
		r.store.nextReferenceID++
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = utils.UTCNow()
	}
	entity.UpdatedAt = utils.UTCNow()
	r.store.references[entity.ID] = cloneReference(entity)
	return nil
}

func (r *MemoryReferenceRepository) SaveBatch(ctx context.Context, entities []*models.Reference) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryReferenceRepository) Update(ctx context.Context, reference *models.Reference) error {
	return r.Save(ctx, reference)
}

func (r *MemoryReferenceRepository) Delete(_ context.Context, id, ownerID uint) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ref, ok := r.store.references[id]
	if !ok || ref.OwnerID != ownerID {
		return false, nil
	}
	delete(r.store.references, id)
	return true, nil
}

func matchSearch(ref *models.Reference, q models.SearchQuery) bool {
	if ref.OwnerID != q.OwnerID {
		return false
	}
	if q.Query != "" {
		needle := strings.ToLower(q.Query)
		hit := strings.Contains(strings.ToLower(ref.Title), needle) ||
			strings.Contains(strings.ToLower(ref.Description), needle)
		if !hit {
			for _, tag := range ref.Tags {
				if strings.Contains(strings.ToLower(tag), needle) {
					hit = true
					break
				}
			}
		}
		if !hit {
			return false
		}
	}
	if len(q.Tags) > 0 {
		hit := false
		for _, want := range q.Tags {
			for _, have := range ref.Tags {
				if want == have {
					hit = true
					break
				}
			}
			if hit {
				break
			}
		}
		if !hit {
			return false
		}
	}
	if q.Source != "" && ref.Source != q.Source {
		return false
	}
	return true
}

func (r *MemoryReferenceRepository) Search(_ context.Context, q models.SearchQuery) ([]*models.Reference, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var matches []*models.Reference
	for _, ref := range r.store.references {
		if matchSearch(ref, q) {
			matches = append(matches, cloneReference(ref))
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if !matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].CreatedAt.After(matches[j].CreatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	total := int64(len(matches))
	limit := q.Limit
	if limit <= 0 {
		limit = utils.DefaultPageLimit
	}
	return window(matches, limit, q.Offset), total, nil
}

func (r *MemoryReferenceRepository) ListByOwner(ctx context.Context, ownerID uint) ([]*models.Reference, error) {
	rows, _, err := r.Search(ctx, models.SearchQuery{OwnerID: ownerID, Limit: 1 << 30})
	return rows, err
}

func matchReference(ref *models.Reference, f models.ReferenceFilter) bool {
	if f.ID != nil && ref.ID != *f.ID {
		return false
	}
	if f.UUID != nil && ref.UUID != *f.UUID {
		return false
	}
	if f.OwnerID != nil && ref.OwnerID != *f.OwnerID {
		return false
	}
	if f.URL != nil && ref.URL != *f.URL {
		return false
	}
	if f.Source != nil && ref.Source != *f.Source {
		return false
	}
	if f.AIAnalyzed != nil && ref.AIAnalyzed != *f.AIAnalyzed {
		return false
	}
	if f.CreatedAfter != nil && !ref.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !ref.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func (r *MemoryReferenceRepository) ByFilter(_ context.Context, filter models.ReferenceFilter, _ string, limit, offset int) ([]*models.Reference, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var rows []*models.Reference
	for _, ref := range r.store.references {
		if matchReference(ref, filter) {
			rows = append(rows, cloneReference(ref))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return window(rows, limit, offset), nil
}

func (r *MemoryReferenceRepository) Count(ctx context.Context, filter models.ReferenceFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (r *MemoryReferenceRepository) Exists(ctx context.Context, filter models.ReferenceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// MemoryTagRepository implements TagRepository over a MemoryStore
type MemoryTagRepository struct {
	store *MemoryStore
}

// NewMemoryTagRepository creates an in-memory tag repository
func NewMemoryTagRepository(store *MemoryStore) TagRepository {
	return &MemoryTagRepository{store: store}
}

func (r *MemoryTagRepository) ByID(_ context.Context, id uint) (*models.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, t := range r.store.tags {
		if t.ID == id {
			return cloneTag(t), nil
		}
	}
	return nil, nil
}

func (r *MemoryTagRepository) ByName(_ context.Context, name string) (*models.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	if t, ok := r.store.tags[name]; ok {
		return cloneTag(t), nil
	}
	return nil, nil
}

// ensureLocked must be called with the store lock held
func (s *MemoryStore) ensureLocked(name string) *models.Tag {
	if t, ok := s.tags[name]; ok {
		return t
	}
	t := &models.Tag{
		ID:        s.nextTagID,
		Name:      name,
		Count:     0,
		CreatedAt: utils.UTCNow(),
		UpdatedAt: utils.UTCNow(),
	}
	s.nextTagID++
	s.tags[name] = t
	return t
}

func (r *MemoryTagRepository) Ensure(_ context.Context, name string) (*models.Tag, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return cloneTag(r.store.ensureLocked(name)), nil
}

func (r *MemoryTagRepository) Increment(_ context.Context, name string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t := r.store.ensureLocked(name)
	t.Count++
	t.UpdatedAt = utils.UTCNow()
	return nil
}

func (r *MemoryTagRepository) ListAll(_ context.Context) ([]*models.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	rows := make([]*models.Tag, 0, len(r.store.tags))
	for _, t := range r.store.tags {
		rows = append(rows, cloneTag(t))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].ID < rows[j].ID
	})
	return rows, nil
}

func (r *MemoryTagRepository) Seed(ctx context.Context, names []string) error {
	for _, name := range names {
		if _, err := r.Ensure(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryTagRepository) Save(_ context.Context, entity *models.Tag) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if entity.ID == 0 {
		entity.ID = r.store.nextTagID
		r.store.nextTagID++
	}
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = utils.UTCNow()
	}
	entity.UpdatedAt = utils.UTCNow()
	r.store.tags[entity.Name] = cloneTag(entity)
	return nil
}

func (r *MemoryTagRepository) SaveBatch(ctx context.Context, entities []*models.Tag) error {
	for _, e := range entities {
		if err := r.Save(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func matchTag(t *models.Tag, f models.TagFilter) bool {
	if f.ID != nil && t.ID != *f.ID {
		return false
	}
	if f.Name != nil && t.Name != *f.Name {
		return false
	}
	if f.CreatedAfter != nil && !t.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func (r *MemoryTagRepository) ByFilter(_ context.Context, filter models.TagFilter, _ string, limit, offset int) ([]*models.Tag, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var rows []*models.Tag
	for _, t := range r.store.tags {
		if matchTag(t, filter) {
			rows = append(rows, cloneTag(t))
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID > rows[j].ID })
	return window(rows, limit, offset), nil
}

func (r *MemoryTagRepository) Count(ctx context.Context, filter models.TagFilter) (int64, error) {
	rows, err := r.ByFilter(ctx, filter, "", 0, 0)
	if err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}

func (r *MemoryTagRepository) Exists(ctx context.Context, filter models.TagFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// window applies limit/offset pagination to an already-ordered slice
func window[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return []T{}
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
