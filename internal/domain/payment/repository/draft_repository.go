package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
	"ustp_things/internal/domain/payment/model"

	"github.com/redis/go-redis/v9"
)

const (
	draftPrefix     = "checkout:draft:"
	pendingPrefix   = "checkout:pending:"
	processedPrefix = "checkout:processed:"
)

// DraftRepository 待支付草稿、买家待支付指针与已处理标记
type DraftRepository interface {
	// Save 写入草稿并把买家的待支付指针指向它
	Save(ctx context.Context, d *model.CheckoutDraft, ttl time.Duration) error
	// Get 不存在返回 nil, nil
	Get(ctx context.Context, externalID string) (*model.CheckoutDraft, error)
	// PendingFor 买家最近一次待支付的 ExternalID，没有返回空串
	PendingFor(ctx context.Context, buyerID string) (string, error)
	// Delete 删除草稿，指针仍指向它时一并删除
	Delete(ctx context.Context, externalID, buyerID string) error
	MarkProcessed(ctx context.Context, externalID string, ttl time.Duration) error
	IsProcessed(ctx context.Context, externalID string) (bool, error)
	// ListPending 创建时间早于 before 的草稿
	ListPending(ctx context.Context, before time.Time) ([]model.CheckoutDraft, error)
}

// 指针仍指向该草稿时才删除，避免误删买家新开的支付
var delIfEqual = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisDraftRepository struct {
	rdb *redis.Client
}

func NewDraftRepository(rdb *redis.Client) DraftRepository {
	return &redisDraftRepository{rdb: rdb}
}

func (r *redisDraftRepository) Save(ctx context.Context, d *model.CheckoutDraft, ttl time.Duration) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, draftPrefix+d.ExternalID, data, ttl)
		pipe.Set(ctx, pendingPrefix+d.BuyerID, d.ExternalID, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

func (r *redisDraftRepository) Get(ctx context.Context, externalID string) (*model.CheckoutDraft, error) {
	data, err := r.rdb.Get(ctx, draftPrefix+externalID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("get draft: %w", err)
	}

	var d model.CheckoutDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	return &d, nil
}

func (r *redisDraftRepository) PendingFor(ctx context.Context, buyerID string) (string, error) {
	id, err := r.rdb.Get(ctx, pendingPrefix+buyerID).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return id, err
}

func (r *redisDraftRepository) Delete(ctx context.Context, externalID, buyerID string) error {
	if err := r.rdb.Del(ctx, draftPrefix+externalID).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	if buyerID == "" {
		return nil
	}
	if err := delIfEqual.Run(ctx, r.rdb, []string{pendingPrefix + buyerID}, externalID).Err(); err != nil {
		return fmt.Errorf("delete pending pointer: %w", err)
	}
	return nil
}

func (r *redisDraftRepository) MarkProcessed(ctx context.Context, externalID string, ttl time.Duration) error {
	return r.rdb.Set(ctx, processedPrefix+externalID, time.Now().Unix(), ttl).Err()
}

func (r *redisDraftRepository) IsProcessed(ctx context.Context, externalID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, processedPrefix+externalID).Result()
	return n > 0, err
}

// ListPending 用 SCAN 遍历草稿，数量不大，逐批 MGET
func (r *redisDraftRepository) ListPending(ctx context.Context, before time.Time) ([]model.CheckoutDraft, error) {
	var (
		out  []model.CheckoutDraft
		keys []string
	)

	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		vals, err := r.rdb.MGet(ctx, keys...).Result()
		if err != nil {
			return fmt.Errorf("mget drafts: %w", err)
		}
		for _, v := range vals {
			s, ok := v.(string)
			if !ok {
				continue // 已过期
			}
			var d model.CheckoutDraft
			if err := json.Unmarshal([]byte(s), &d); err != nil {
				continue
			}
			if d.CreatedAt.Before(before) {
				out = append(out, d)
			}
		}
		keys = keys[:0]
		return nil
	}

	iter := r.rdb.Scan(ctx, 0, draftPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan drafts: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryDraftRepository 内存实现（用于开发/测试）
type MemoryDraftRepository struct {
	mu        sync.Mutex
	drafts    map[string]memoryEntry
	pending   map[string]memoryEntry
	processed map[string]memoryEntry
	now       func() time.Time
}

type memoryEntry struct {
	value     string
	draft     model.CheckoutDraft
	expiresAt time.Time
}

func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{
		drafts:    map[string]memoryEntry{},
		pending:   map[string]memoryEntry{},
		processed: map[string]memoryEntry{},
		now:       time.Now,
	}
}

func (r *MemoryDraftRepository) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return r.now().Add(ttl)
}

func (r *MemoryDraftRepository) live(e memoryEntry, ok bool) bool {
	return ok && (e.expiresAt.IsZero() || r.now().Before(e.expiresAt))
}

func (r *MemoryDraftRepository) Save(ctx context.Context, d *model.CheckoutDraft, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	exp := r.expiry(ttl)
	r.drafts[d.ExternalID] = memoryEntry{draft: *d, expiresAt: exp}
	r.pending[d.BuyerID] = memoryEntry{value: d.ExternalID, expiresAt: exp}
	return nil
}

func (r *MemoryDraftRepository) Get(ctx context.Context, externalID string) (*model.CheckoutDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.drafts[externalID]
	if !r.live(e, ok) {
		return nil, nil
	}
	d := e.draft
	return &d, nil
}

func (r *MemoryDraftRepository) PendingFor(ctx context.Context, buyerID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.pending[buyerID]
	if !r.live(e, ok) {
		return "", nil
	}
	return e.value, nil
}

func (r *MemoryDraftRepository) Delete(ctx context.Context, externalID, buyerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, externalID)
	if e, ok := r.pending[buyerID]; ok && e.value == externalID {
		delete(r.pending, buyerID)
	}
	return nil
}

func (r *MemoryDraftRepository) MarkProcessed(ctx context.Context, externalID string, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processed[externalID] = memoryEntry{value: "1", expiresAt: r.expiry(ttl)}
	return nil
}

func (r *MemoryDraftRepository) IsProcessed(ctx context.Context, externalID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.processed[externalID]
	return r.live(e, ok), nil
}

func (r *MemoryDraftRepository) ListPending(ctx context.Context, before time.Time) ([]model.CheckoutDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.CheckoutDraft
	for _, e := range r.drafts {
		if r.live(e, true) && e.draft.CreatedAt.Before(before) {
			out = append(out, e.draft)
		}
	}
	return out, nil
}
