package businessflow

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/ayatose/refbako/app/dto"
	"github.com/ayatose/refbako/repository"
	"github.com/redis/go-redis/v9"
)

const tagCacheKey = "refbako:tags"

// TagCache caches the tag listing in Redis. All methods are safe on a nil
// receiver or a nil client, so the service runs unchanged without Redis.
type TagCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTagCache creates a tag cache backed by the given Redis client
func NewTagCache(client *redis.Client, ttl time.Duration) *TagCache {
	if client == nil {
		return nil
	}
	return &TagCache{client: client, ttl: ttl}
}

// Get returns the cached tag listing, or nil on miss or error
func (c *TagCache) Get(ctx context.Context) []dto.TagDTO {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, tagCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var tags []dto.TagDTO
	if err := json.Unmarshal(raw, &tags); err != nil {
		return nil
	}
	return tags
}

// Set stores the tag listing. Cache write failures are logged, never fatal.
func (c *TagCache) Set(ctx context.Context, tags []dto.TagDTO) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(tags)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, tagCacheKey, raw, c.ttl).Err(); err != nil {
		log.Printf("failed to cache tag listing: %v", err)
	}
}

// Invalidate drops the cached listing after an ingestion write
func (c *TagCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, tagCacheKey).Err(); err != nil {
		log.Printf("failed to invalidate tag cache: %v", err)
	}
}

// TagFlow handles tag ledger reads
type TagFlow interface {
	ListTags(ctx context.Context) ([]dto.TagDTO, error)
}

// TagFlowImpl implements the tag business flow
type TagFlowImpl struct {
	tagRepo repository.TagRepository
	cache   *TagCache
}

// NewTagFlow creates a new tag flow instance
func NewTagFlow(tagRepo repository.TagRepository, cache *TagCache) TagFlow {
	return &TagFlowImpl{
		tagRepo: tagRepo,
		cache:   cache,
	}
}

// ListTags returns all tags ordered by usage count descending
func (s *TagFlowImpl) ListTags(ctx context.Context) ([]dto.TagDTO, error) {
	if cached := s.cache.Get(ctx); cached != nil {
		return cached, nil
	}

	rows, err := s.tagRepo.ListAll(ctx)
	if err != nil {
		return nil, NewBusinessError("TAG_LIST_FAILED", "Failed to list tags", err)
	}

	tags := ToTagDTOs(rows)
	s.cache.Set(ctx, tags)
	return tags, nil
}
