package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-pipeline/internal/domain"
	"github.com/spec-kit/ticket-pipeline/internal/persistence"
)

const redisMGetBatch = 200

type redisTicketRepository struct {
	rdb *persistence.Redis
}

// NewRedisTicketRepository stores each ticket item as a JSON string keyed by id,
// with a sorted set over createdAt backing range queries.
func NewRedisTicketRepository(rdb *persistence.Redis) TicketRepository {
	return &redisTicketRepository{rdb: rdb}
}

func (r *redisTicketRepository) itemKey(id string) string {
	return r.rdb.Key(SortKey(id))
}

func (r *redisTicketRepository) indexKey() string {
	return r.rdb.Key(ItemTypeTicket, "by_created")
}

func (r *redisTicketRepository) Put(ctx context.Context, ticket *domain.Ticket) error {
	item, err := newTicketItem(ticket)
	if err != nil {
		return err
	}
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("encode item %s: %w", ticket.ID, err)
	}
	key := r.itemKey(ticket.ID)

	err = r.rdb.Client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := checkVersion(stored, ticket.Version); err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.ZAdd(ctx, r.indexKey(), redis.Z{
				Score:  float64(item.CreatedAt.UnixMilli()),
				Member: ticket.ID,
			})
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("%w: concurrent write to %s", ErrVersionConflict, ticket.ID)
	}
	return err
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	raw, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var item ticketItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return 0, fmt.Errorf("decode stored item: %w", err)
	}
	return item.Version, nil
}

func (r *redisTicketRepository) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	raw, err := r.rdb.Client.Get(ctx, r.itemKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var item ticketItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode item %s: %w", id, err)
	}
	return item.decode()
}

func (r *redisTicketRepository) Query(ctx context.Context, q TicketQuery) ([]domain.Ticket, error) {
	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if q.CreatedFrom != nil {
		rng.Min = strconv.FormatInt(q.CreatedFrom.UnixMilli(), 10)
	}
	if q.CreatedTo != nil {
		rng.Max = strconv.FormatInt(q.CreatedTo.UnixMilli(), 10)
	}
	ids, err := r.rdb.Client.ZRevRangeByScore(ctx, r.indexKey(), rng).Result()
	if err != nil {
		return nil, err
	}

	var matched []ticketItem
	for start := 0; start < len(ids); start += redisMGetBatch {
		end := min(start+redisMGetBatch, len(ids))
		keys := make([]string, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, r.itemKey(id))
		}
		values, err := r.rdb.Client.MGet(ctx, keys...).Result()
		if err != nil {
			return nil, err
		}
		for _, v := range values {
			s, ok := v.(string)
			if !ok {
				continue
			}
			var item ticketItem
			if err := json.Unmarshal([]byte(s), &item); err != nil {
				return nil, fmt.Errorf("decode item: %w", err)
			}
			if item.matches(q) {
				matched = append(matched, item)
			}
		}
		if q.Limit > 0 && len(matched) >= q.Limit {
			break
		}
	}
	return decodeAll(sortAndLimit(matched, q.Limit))
}

func (r *redisTicketRepository) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx)
}
