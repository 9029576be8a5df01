package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/curiopass/support-agent/internal/agent/model"
	errx "github.com/curiopass/support-agent/internal/core/error"
	logx "github.com/curiopass/support-agent/pkg/logger"
)

// RedisConversationRepository stores each conversation as an append-only list
// of JSON-encoded turns plus a scratch hash. With ttl == 0 conversations are
// kept indefinitely.
type RedisConversationRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisConversationRepository(rdb redis.Cmdable, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisConversationRepository) turnsKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:turns", conversationID)
}

func (r *RedisConversationRepository) scratchKey(conversationID string) string {
	return fmt.Sprintf("conversation:%s:scratch", conversationID)
}

func (r *RedisConversationRepository) AppendTurn(ctx context.Context, conversationID string, turn model.Turn) error {
	b, err := json.Marshal(turn)
	if err != nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to marshal turn")
		return fmt.Errorf("marshal turn: %w", err)
	}
	key := r.turnsKey(conversationID)

	// append turn
	if err := r.rdb.RPush(ctx, key, b).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to push turn to redis")
		return errx.WrapRedis(err)
	}
	// extend TTL on touch
	if r.ttl > 0 {
		if ok, err := r.rdb.Expire(ctx, key, r.ttl).Result(); err != nil {
			logx.Error().Err(err).Str("key", key).Msg("failed to set expire")
			return errx.WrapRedis(err)
		} else if !ok {
			logx.Warn().Str("key", key).Dur("ttl", r.ttl).Msg("failed to set TTL on conversation key")
		}
	}
	return nil
}

func (r *RedisConversationRepository) Load(ctx context.Context, conversationID string) (*model.ConversationState, error) {
	state := &model.ConversationState{
		ConversationID: conversationID,
		Turns:          []model.Turn{},
		Scratch:        map[string]string{},
	}

	rows, err := r.rdb.LRange(ctx, r.turnsKey(conversationID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load turns from redis")
		return nil, errx.WrapRedis(err)
	}
	for i, s := range rows {
		var t model.Turn
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			logx.Error().Err(err).Str("conversation_id", conversationID).Int("index", i).Msg("failed to unmarshal turn")
			return nil, fmt.Errorf("unmarshal turn at index %d: %w", i, err)
		}
		state.Turns = append(state.Turns, t)
	}

	scratch, err := r.rdb.HGetAll(ctx, r.scratchKey(conversationID)).Result()
	if err != nil && err != redis.Nil {
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to load scratch from redis")
		return nil, errx.WrapRedis(err)
	}
	for k, v := range scratch {
		state.Scratch[k] = v
	}

	return state, nil
}

func (r *RedisConversationRepository) SetScratch(ctx context.Context, conversationID, key, value string) error {
	k := r.scratchKey(conversationID)
	if err := r.rdb.HSet(ctx, k, key, value).Err(); err != nil {
		logx.Error().Err(err).Str("key", k).Msg("failed to set scratch field")
		return errx.WrapRedis(err)
	}
	if r.ttl > 0 {
		if err := r.rdb.Expire(ctx, k, r.ttl).Err(); err != nil {
			logx.Error().Err(err).Str("key", k).Msg("failed to set expire on scratch")
			return errx.WrapRedis(err)
		}
	}
	return nil
}

func (r *RedisConversationRepository) TurnCount(ctx context.Context, conversationID string) (int, error) {
	n, err := r.rdb.LLen(ctx, r.turnsKey(conversationID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		logx.Error().Err(err).Str("conversation_id", conversationID).Msg("failed to get turn count from redis")
		return 0, errx.WrapRedis(err)
	}
	return int(n), nil
}

var _ model.ConversationRepository = (*RedisConversationRepository)(nil)
