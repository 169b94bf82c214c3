package projection

import (
	"context"
	"errors"

	"github.com/AntonStoeckl/library-catalog-go/catalog"
)

const (
	logMsgApplied      = "projection: event applied"
	logMsgSkipped      = "projection: row already present, event skipped"
	logMsgDroppedUnkn  = "projection: row unknown, event dropped"
	logMsgDroppedStale = "projection: stale version, event dropped"
	logAttrProjection  = "projection"
	logAttrKey         = "key"
	logAttrKind        = "kind"
	logAttrVersion     = "version"
	logAttrStored      = "stored_version"

	metricApplied = "projection_events_applied_total"
	metricDropped = "projection_events_dropped_total"

	kindCreated = "created"
	kindUpdated = "updated"
	kindDeleted = "deleted"
)

// ReadStore is the storage of one read model, keyed by string.
// Insert fails with catalog.ErrDuplicateKey and Update and Delete fail with catalog.ErrNotFound.
type ReadStore[T any] interface {
	Exists(ctx context.Context, key string) (bool, error)
	Find(ctx context.Context, key string) (T, bool, error)
	Insert(ctx context.Context, key string, row T) error
	Update(ctx context.Context, key string, row T) error
	Delete(ctx context.Context, key string) error
}

// Projector applies Created, Updated and Deleted events of one entity kind to a ReadStore.
type Projector[T any] struct {
	name    string
	store   ReadStore[T]
	key     func(T) string
	version func(T) uint
	obs     catalog.Observability
}

// NewProjector creates a Projector. key extracts the row key and version the row version.
func NewProjector[T any](name string, store ReadStore[T], key func(T) string, version func(T) uint, obs catalog.Observability) *Projector[T] {
	return &Projector[T]{name: name, store: store, key: key, version: version, obs: obs}
}

// OnCreated inserts row unless a row with its key exists.
func (p *Projector[T]) OnCreated(ctx context.Context, row T) error {
	key := p.key(row)

	exists, err := p.store.Exists(ctx, key)
	if err != nil {
		return err
	}

	if exists {
		p.obs.Debug(ctx, logMsgSkipped, logAttrProjection, p.name, logAttrKey, key)
		return nil
	}

	if err = p.store.Insert(ctx, key, row); errors.Is(err, catalog.ErrDuplicateKey) {
		p.obs.Debug(ctx, logMsgSkipped, logAttrProjection, p.name, logAttrKey, key)
		return nil
	}

	if err != nil {
		return err
	}

	p.applied(ctx, kindCreated, key)

	return nil
}

// OnUpdated replaces the stored row if it exists and is older than row.
func (p *Projector[T]) OnUpdated(ctx context.Context, row T) error {
	key := p.key(row)

	stored, found, err := p.store.Find(ctx, key)
	if err != nil {
		return err
	}

	if !found {
		p.dropped(ctx, kindUpdated, key)
		return nil
	}

	if p.version(row) <= p.version(stored) {
		p.obs.Warn(ctx, logMsgDroppedStale, logAttrProjection, p.name, logAttrKey, key,
			logAttrVersion, p.version(row), logAttrStored, p.version(stored))
		p.obs.IncrementCounter(ctx, metricDropped, p.name)

		return nil
	}

	if err = p.store.Update(ctx, key, row); errors.Is(err, catalog.ErrNotFound) {
		p.dropped(ctx, kindUpdated, key)
		return nil
	}

	if err != nil {
		return err
	}

	p.applied(ctx, kindUpdated, key)

	return nil
}

// OnDeleted removes the row with key if it exists.
func (p *Projector[T]) OnDeleted(ctx context.Context, key string) error {
	err := p.store.Delete(ctx, key)
	if errors.Is(err, catalog.ErrNotFound) {
		p.dropped(ctx, kindDeleted, key)
		return nil
	}

	if err != nil {
		return err
	}

	p.applied(ctx, kindDeleted, key)

	return nil
}

func (p *Projector[T]) applied(ctx context.Context, kind string, key string) {
	p.obs.Debug(ctx, logMsgApplied, logAttrProjection, p.name, logAttrKind, kind, logAttrKey, key)
	p.obs.IncrementCounter(ctx, metricApplied, p.name)
}

func (p *Projector[T]) dropped(ctx context.Context, kind string, key string) {
	p.obs.Warn(ctx, logMsgDroppedUnkn, logAttrProjection, p.name, logAttrKind, kind, logAttrKey, key)
	p.obs.IncrementCounter(ctx, metricDropped, p.name)
}
