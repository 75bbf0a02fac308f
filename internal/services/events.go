package services

import (
	"context"
	"log/slog"
	"time"

	"minimarket/pkg/rabbitmq"
)

// Catalog event types.
const (
	EventProductCreated   = "product.created"
	EventProductUpdated   = "product.updated"
	EventProductDeleted   = "product.deleted"
	EventCategoryCreated  = "category.created"
	EventCategoryRenamed  = "category.renamed"
	EventCategoryDeleted  = "category.deleted"
	EventAppConfigUpdated = "app_config.updated"
	EventFeaturedUpdated  = "featured.updated"
)

// EventPublisher receives catalog change notifications.
type EventPublisher interface {
	PublishCatalogEvent(ctx context.Context, event rabbitmq.CatalogEvent) error
}

// notifier publishes best-effort: a failed publish is logged and never fails
// the mutation that triggered it.
type notifier struct {
	pub EventPublisher
	log *slog.Logger
}

func (n notifier) emit(ctx context.Context, eventType, resourceID string) {
	if n.pub == nil {
		return
	}
	event := rabbitmq.CatalogEvent{
		Type:       eventType,
		ResourceID: resourceID,
		Actor:      ActorFrom(ctx),
		OccurredAt: time.Now().UTC(),
	}
	if err := n.pub.PublishCatalogEvent(context.WithoutCancel(ctx), event); err != nil {
		n.logger().Warn("failed to publish catalog event", "type", eventType, "resource_id", resourceID, "error", err)
	}
}

func (n notifier) logger() *slog.Logger {
	if n.log == nil {
		return slog.Default()
	}
	return n.log
}

type actorKey struct{}

// WithActor records the acting user's ID on ctx for event attribution.
func WithActor(ctx context.Context, subjectID string) context.Context {
	return context.WithValue(ctx, actorKey{}, subjectID)
}

// ActorFrom returns the ID stored by WithActor, or "".
func ActorFrom(ctx context.Context) string {
	id, _ := ctx.Value(actorKey{}).(string)
	return id
}
