// Package redis implements store.Store on Redis for high-throughput
// ephemeral durability. Each record is a Hash, a Set tracks all record
// ids for enumeration, and a Sorted Set indexes records by the
// composite ordering key for ordered reads.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client)
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	jobqueue "github.com/nnikos123/android-priority-jobqueue"
	"github.com/nnikos123/android-priority-jobqueue/store"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Redis key layout. All keys are prefixed to avoid collisions.
const (
	keyPrefix    = "jobqueue:"
	recordIDsKey = keyPrefix + "record_ids" // Set of all record ids
	orderKey     = keyPrefix + "order"      // Sorted Set by ordering score
)

// recordKey returns the Hash key for a record: jobqueue:record:{id}
func recordKey(id string) string { return keyPrefix + "record:" + id }

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements store.Store backed by Redis. The caller owns the
// Redis client lifecycle; Close never closes it.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// New creates a Redis-backed store.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert persists a new record.
func (s *Store) Insert(ctx context.Context, rec jobqueue.Record) error {
	key := recordKey(rec.ID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: insert check exists: %w", err)
	}
	if exists > 0 {
		return jobqueue.ErrDuplicateJob
	}

	fields, err := recordToMap(rec)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, recordIDsKey, rec.ID)
	pipe.ZAdd(ctx, orderKey, goredis.Z{Score: orderScore(rec), Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobqueue/redis: insert: %w", err)
	}
	return nil
}

// Update overwrites an existing record and refreshes its order score.
func (s *Store) Update(ctx context.Context, rec jobqueue.Record) error {
	key := recordKey(rec.ID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: update check exists: %w", err)
	}
	if exists == 0 {
		return jobqueue.ErrJobNotFound
	}

	fields, err := recordToMap(rec)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.ZAdd(ctx, orderKey, goredis.Z{Score: orderScore(rec), Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobqueue/redis: update: %w", err)
	}
	return nil
}

// Remove deletes a record by id.
func (s *Store) Remove(ctx context.Context, jobID string) error {
	key := recordKey(jobID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: remove check exists: %w", err)
	}
	if exists == 0 {
		return jobqueue.ErrJobNotFound
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, recordIDsKey, jobID)
	pipe.ZRem(ctx, orderKey, jobID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobqueue/redis: remove: %w", err)
	}
	return nil
}

// FindByID retrieves a record by id.
func (s *Store) FindByID(ctx context.Context, jobID string) (jobqueue.Record, error) {
	vals, err := s.client.HGetAll(ctx, recordKey(jobID)).Result()
	if err != nil {
		return jobqueue.Record{}, fmt.Errorf("jobqueue/redis: find: %w", err)
	}
	if len(vals) == 0 {
		return jobqueue.Record{}, jobqueue.ErrJobNotFound
	}
	return mapToRecord(vals)
}

// Count returns the number of persisted records.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.SCard(ctx, recordIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("jobqueue/redis: count: %w", err)
	}
	return int(n), nil
}

// OrphanedBySession returns records left behind by another session,
// ordered by the composite ordering key.
func (s *Store) OrphanedBySession(ctx context.Context, currentSessionID int64) ([]jobqueue.Record, error) {
	ids, err := s.client.SMembers(ctx, recordIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("jobqueue/redis: orphaned smembers: %w", err)
	}

	var out []jobqueue.Record
	for _, jobID := range ids {
		rec, getErr := s.FindByID(ctx, jobID)
		if getErr != nil {
			continue // id set can lag behind hash deletion
		}
		if rec.RunningSessionID != currentSessionID {
			out = append(out, rec)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return orderScore(out[i]) < orderScore(out[j])
	})
	return out, nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	ids, err := s.client.SMembers(ctx, recordIDsKey).Result()
	if err != nil {
		return fmt.Errorf("jobqueue/redis: clear smembers: %w", err)
	}

	pipe := s.client.TxPipeline()
	for _, jobID := range ids {
		pipe.Del(ctx, recordKey(jobID))
	}
	pipe.Del(ctx, recordIDsKey)
	pipe.Del(ctx, orderKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobqueue/redis: clear: %w", err)
	}
	return nil
}

// Close is a no-op; the caller owns the Redis client.
func (s *Store) Close() error { return nil }

// helpers

// orderScore folds the composite ordering key into a sortable score:
// priority is negated so higher priority sorts first, with a
// fractional creation-time component as the tie-break.
func orderScore(rec jobqueue.Record) float64 {
	return float64(-rec.Priority) + float64(rec.CreatedNs)/1e21
}

func recordToMap(rec jobqueue.Record) (map[string]interface{}, error) {
	m := map[string]interface{}{
		"id":                 rec.ID,
		"job_type":           rec.JobType,
		"payload":            string(rec.Payload),
		"priority":           strconv.Itoa(rec.Priority),
		"group_id":           rec.GroupID,
		"run_count":          strconv.Itoa(rec.RunCount),
		"created_ns":         strconv.FormatInt(rec.CreatedNs, 10),
		"delay_until_ns":     strconv.FormatInt(rec.DelayUntilNs, 10),
		"running_session_id": strconv.FormatInt(rec.RunningSessionID, 10),
		"requires_network":   strconv.FormatBool(rec.RequiresNetwork),
		"cancelled":          strconv.FormatBool(rec.Cancelled),
	}
	if rec.InsertionOrder != nil {
		m["insertion_order"] = strconv.FormatInt(*rec.InsertionOrder, 10)
	}
	if rec.Tags != nil {
		b, err := json.Marshal(rec.Tags)
		if err != nil {
			return nil, fmt.Errorf("jobqueue/redis: marshal tags: %w", err)
		}
		m["tags"] = string(b)
	}
	return m, nil
}

func mapToRecord(m map[string]string) (jobqueue.Record, error) {
	priority, _ := strconv.Atoi(m["priority"])                          //nolint:errcheck // best-effort parse from trusted Redis data
	runCount, _ := strconv.Atoi(m["run_count"])                         //nolint:errcheck // best-effort parse from trusted Redis data
	createdNs, _ := strconv.ParseInt(m["created_ns"], 10, 64)           //nolint:errcheck // best-effort parse from trusted Redis data
	delayUntil, _ := strconv.ParseInt(m["delay_until_ns"], 10, 64)      //nolint:errcheck // best-effort parse from trusted Redis data
	sessionID, _ := strconv.ParseInt(m["running_session_id"], 10, 64)   //nolint:errcheck // best-effort parse from trusted Redis data
	requiresNetwork, _ := strconv.ParseBool(m["requires_network"])      //nolint:errcheck // best-effort parse from trusted Redis data
	cancelled, _ := strconv.ParseBool(m["cancelled"])                   //nolint:errcheck // best-effort parse from trusted Redis data

	rec := jobqueue.Record{
		ID:               m["id"],
		JobType:          m["job_type"],
		Priority:         priority,
		GroupID:          m["group_id"],
		RunCount:         runCount,
		CreatedNs:        createdNs,
		DelayUntilNs:     delayUntil,
		RunningSessionID: sessionID,
		RequiresNetwork:  requiresNetwork,
		Cancelled:        cancelled,
	}
	if p := m["payload"]; p != "" {
		rec.Payload = []byte(p)
	}
	if v := m["insertion_order"]; v != "" {
		order, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			rec.InsertionOrder = &order
		}
	}
	if v := m["tags"]; v != "" && v != "null" {
		if err := json.Unmarshal([]byte(v), &rec.Tags); err != nil {
			return jobqueue.Record{}, fmt.Errorf("jobqueue/redis: unmarshal tags: %w", err)
		}
	}
	return rec, nil
}
