package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ehr/carechat/internal/platform/metrics"
)

// RedisCmds is the subset of *redis.Client the snapshot cache uses.
type RedisCmds interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore serves transcript reads from Redis snapshots keyed by a
// per-patient version counter. Append bumps the counter after the durable
// write, so a snapshot is only reused while no newer message exists. Any
// Redis failure falls through to the underlying store.
type CachedStore struct {
	next   Store
	rdb    RedisCmds
	ttl    time.Duration
	logger zerolog.Logger
}

func NewCachedStore(next Store, rdb RedisCmds, ttl time.Duration, logger zerolog.Logger) *CachedStore {
	return &CachedStore{
		next:   next,
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.With().Str("component", "transcript_cache").Logger(),
	}
}

func versionKey(patientID uuid.UUID) string {
	return fmt.Sprintf("carechat:transcript:%s:version", patientID)
}

func snapshotKey(patientID uuid.UUID, version int64) string {
	return fmt.Sprintf("carechat:transcript:%s:v%d", patientID, version)
}

func (s *CachedStore) Append(ctx context.Context, patientID uuid.UUID, sender Sender, content string) (*Message, error) {
	m, err := s.next.Append(ctx, patientID, sender, content)
	if err != nil {
		return nil, err
	}
	s.bump(ctx, patientID)
	return m, nil
}

func (s *CachedStore) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]Message, error) {
	version, err := s.version(ctx, patientID)
	if err != nil {
		metrics.TranscriptCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("read transcript version")
		return s.next.ListByPatient(ctx, patientID)
	}

	key := snapshotKey(patientID, version)
	data, err := s.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var out []Message
		if jerr := json.Unmarshal(data, &out); jerr == nil {
			metrics.TranscriptCacheLookups.WithLabelValues("hit").Inc()
			return out, nil
		}
		metrics.TranscriptCacheLookups.WithLabelValues("error").Inc()
	case errors.Is(err, redis.Nil):
		metrics.TranscriptCacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.TranscriptCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("read transcript snapshot")
	}

	msgs, err := s.next.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if payload, jerr := json.Marshal(msgs); jerr == nil {
		if serr := s.rdb.Set(ctx, key, payload, s.ttl).Err(); serr != nil {
			s.logger.Warn().Err(serr).Str("patient_id", patientID.String()).Msg("store transcript snapshot")
		}
	}
	return msgs, nil
}

// Invalidate retires every snapshot for patientID. It is wired to patient
// deletion so a cached transcript never outlives its patient.
func (s *CachedStore) Invalidate(ctx context.Context, patientID uuid.UUID) {
	s.bump(ctx, patientID)
}

func (s *CachedStore) version(ctx context.Context, patientID uuid.UUID) (int64, error) {
	v, err := s.rdb.Get(ctx, versionKey(patientID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// bump advances the version. The counter is never deleted, since restarting
// it at zero would resurrect old snapshots. When INCR fails the snapshot for
// the current version is dropped instead; only if that fails too can readers
// see a stale transcript until the TTL expires.
func (s *CachedStore) bump(ctx context.Context, patientID uuid.UUID) {
	err := s.rdb.Incr(ctx, versionKey(patientID)).Err()
	if err == nil {
		return
	}

	version, derr := s.version(ctx, patientID)
	if derr == nil {
		derr = s.rdb.Del(ctx, snapshotKey(patientID, version)).Err()
	}
	if derr != nil {
		s.logger.Error().Err(err).AnErr("drop_error", derr).Str("patient_id", patientID.String()).
			Msg("bump transcript version; snapshot may be stale until ttl")
		return
	}
	s.logger.Warn().Err(err).Str("patient_id", patientID.String()).
		Int64("version", version).Msg("bump transcript version failed; dropped current snapshot")
}
