package freshness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"mediawatch/internal/logging"
)

// recordSeenScript appends a record unless the pair is still live. It returns
// the new record id, or 0 on conflict.
//
// KEYS: latest hash, history zset, id counter, records hash
// ARGV: pair field, now ms, window ms (<=0 permanent), recorded ms, payload
var recordSeenScript = redis.NewScript(`
local latest = tonumber(redis.call('HGET', KEYS[1], ARGV[1]))
local now = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
if latest and (window <= 0 or latest + window > now) then
  return 0
end
local ts = tonumber(ARGV[4])
local id = redis.call('INCR', KEYS[3])
if not latest or ts > latest then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[4])
end
redis.call('HSET', KEYS[4], id, ARGV[5])
redis.call('ZADD', KEYS[2], ts, id)
return id
`)

// RedisStore keeps records in Redis so several hosts can share dedup state.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	opts   options
}

// OpenRedis connects to rawURL and verifies the connection.
func OpenRedis(ctx context.Context, rawURL, prefix string, opts ...Option) (*RedisStore, error) {
	redisOpts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return NewRedisStore(client, prefix, opts...), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, prefix string, opts ...Option) *RedisStore {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "mediawatch"
	}
	return &RedisStore{client: client, prefix: prefix, opts: buildOptions(opts)}
}

func (r *RedisStore) key(name string) string {
	return r.prefix + ":freshness:" + name
}

func pairField(subjectID, factKey string) string {
	return subjectID + "\x1f" + factKey
}

func (r *RedisStore) WasSeen(ctx context.Context, subjectID, factKey string, category Category) (bool, error) {
	raw, err := r.client.HGet(ctx, r.key("latest"), pairField(subjectID, factKey)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query records for %s/%s: %w", subjectID, factKey, err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logging.WarnWithContext(r.opts.logger, "notification record timestamp unreadable; treating as expired", "freshness_timestamp_invalid",
			logging.String("recorded_at", raw),
			logging.String(logging.FieldImpact, "the fact may be announced again"),
		)
		return false, nil
	}
	return category.Live(time.UnixMilli(ms), r.opts.now()), nil
}

func (r *RedisStore) RecordSeen(ctx context.Context, rec Record, category Category) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = r.opts.now()
	}
	rec.RecordedAt = rec.RecordedAt.UTC()
	rec.Category = category.Name
	rec.ID = 0
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	id, err := recordSeenScript.Run(ctx, r.client,
		[]string{r.key("latest"), r.key("history"), r.key("seq"), r.key("records")},
		pairField(rec.SubjectID, rec.FactKey),
		r.opts.now().UnixMilli(),
		category.Window.Milliseconds(),
		rec.RecordedAt.UnixMilli(),
		string(payload),
	).Int64()
	if err != nil {
		return fmt.Errorf("record %s/%s: %w", rec.SubjectID, rec.FactKey, err)
	}
	if id == 0 {
		return conflictError(rec.SubjectID, rec.FactKey, category)
	}
	return nil
}

func (r *RedisStore) History(ctx context.Context, filter HistoryFilter) ([]Record, error) {
	ids, err := r.client.ZRevRange(ctx, r.key("history"), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	payloads, err := r.client.HMGet(ctx, r.key("records"), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("load history records: %w", err)
	}

	out := make([]Record, 0, len(ids))
	for i, raw := range payloads {
		text, ok := raw.(string)
		if !ok {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			continue
		}
		rec.ID, _ = strconv.ParseInt(ids[i], 10, 64)
		if !filter.matches(rec) {
			continue
		}
		out = append(out, rec)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
