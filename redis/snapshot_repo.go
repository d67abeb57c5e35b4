package redis

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/edirooss/selva-engine/internal/core/object"
)

// ErrSnapshotNotFound mirrors the channel repository's ErrChannelNotFound:
// a key-miss reported as a sentinel rather than bubbling redis.Nil.
var ErrSnapshotNotFound = errors.New("snapshot not found")

func snapshotKey(nodeKey string) string {
	return "selva:object:" + nodeKey
}

// SnapshotRepository persists one typed object per node key, using the
// RDB-style binary format from internal/core/object/snapshot.go as the
// stored payload — the same "domain encode/decode wrapping a plain Redis
// string" shape as ChannelRepository, generalized from JSON to the
// module's own binary wire format.
type SnapshotRepository struct {
	client *Client
	log    *zap.Logger
}

func newSnapshotRepository(log *zap.Logger, client *Client) *SnapshotRepository {
	return &SnapshotRepository{
		log:    log.Named("snapshot_repo"),
		client: client,
	}
}

// Save serializes obj and stores it at nodeKey, replacing any prior value.
func (r *SnapshotRepository) Save(ctx context.Context, nodeKey string, obj *object.Object) error {
	var buf bytes.Buffer
	if err := object.Save(&buf, obj, snapshotLogAdapter{r.log}); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, snapshotKey(nodeKey), buf.Bytes(), 0).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}
	return nil
}

// Load fetches and decodes the object stored at nodeKey.
// Returns ErrSnapshotNotFound if the key does not exist. A version
// mismatch in the stored payload yields (nil, nil), matching
// object.Load's "null object" contract.
func (r *SnapshotRepository) Load(ctx context.Context, nodeKey string) (*object.Object, error) {
	raw, err := r.client.Get(ctx, snapshotKey(nodeKey)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get: %w", err)
	}

	obj, err := object.Load(bytes.NewReader(raw), snapshotLogAdapter{r.log})
	if err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return obj, nil
}

// Delete removes the stored snapshot for nodeKey, if any.
func (r *SnapshotRepository) Delete(ctx context.Context, nodeKey string) error {
	n, err := r.client.Del(ctx, snapshotKey(nodeKey)).Result()
	if err != nil {
		return fmt.Errorf("del: %w", err)
	}
	if n == 0 {
		return ErrSnapshotNotFound
	}
	return nil
}

// snapshotLogAdapter adapts *zap.Logger to object.Logger.
type snapshotLogAdapter struct{ log *zap.Logger }

func (a snapshotLogAdapter) Warnf(format string, args ...any) {
	a.log.Sugar().Warnf(format, args...)
}
