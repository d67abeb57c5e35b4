package redis

import "go.uber.org/zap"

// Repository is the host's persistence facade: one Redis connection, one
// named sub-repository per persisted concern — here, just Snapshots, since
// per-node typed objects are the only thing this deployment persists.
type Repository struct {
	log    *zap.Logger
	client *Client

	Snapshots *SnapshotRepository
}

// NewRepository connects to addr/db and wires the sub-repositories.
func NewRepository(log *zap.Logger, addr string, db int) *Repository {
	log = log.Named("repo")
	client := NewClient(addr, db, log)

	return &Repository{
		log:       log,
		client:    client,
		Snapshots: newSnapshotRepository(log, client),
	}
}

// Close releases the underlying Redis connection.
func (r *Repository) Close() error {
	return r.client.Close()
}
