package events

import (
	"context"
	"fmt"
	"os"
	"time"

	"catalogue-service/internal/models"

	"github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Catalogue stream carrying shop product events
const (
	StreamCatalogue = "CATALOGUE_EVENTS"

	ShopProductUpserted = "catalogue.shop_product.upserted"
	ShopProductUpdated  = "catalogue.shop_product.updated"
	ShopProductDeleted  = "catalogue.shop_product.deleted"
)

// ShopProductEvent is published when a shop's offer for a product changes
type ShopProductEvent struct {
	events.BaseEvent
	ShopProductID string `json:"shopProductId"`
	ShopID        string `json:"shopId"`
	ProductID     string `json:"productId"`
	ProductSlug   string `json:"productSlug"`
	Price         int64  `json:"price"`
	OldPrice      *int64 `json:"oldPrice,omitempty"`
	Available     int    `json:"available"`
	Status        string `json:"status"`
	ActorID       string `json:"actorId,omitempty"`
	ActorName     string `json:"actorName,omitempty"`
	ActorEmail    string `json:"actorEmail,omitempty"`
}

func (e *ShopProductEvent) GetSubject() string {
	return e.EventType
}

func (e *ShopProductEvent) GetStream() string {
	return StreamCatalogue
}

// Actor identifies who triggered an event
type Actor struct {
	ID    string
	Name  string
	Email string
}

// Publisher wraps the go-shared events publisher for catalogue events
type Publisher struct {
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewPublisher creates a new catalogue events publisher
func NewPublisher(logger *logrus.Logger) (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		// Default to GKE internal NATS service URL
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := events.DefaultPublisherConfig(natsURL)
	config.Name = "catalogue-service"

	publisher, err := events.NewPublisher(config, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create events publisher: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := publisher.EnsureStream(ctx, events.StreamProducts, []string{"product.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure products stream (may already exist)")
	}
	if err := publisher.EnsureStream(ctx, StreamCatalogue, []string{"catalogue.>"}); err != nil {
		logger.WithError(err).Warn("Failed to ensure catalogue stream (may already exist)")
	}

	return &Publisher{
		publisher: publisher,
		logger:    logger.WithField("component", "catalogue-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p.publisher != nil {
		p.publisher.Close()
	}
}

// PublishProductCreated publishes a product.created event
func (p *Publisher) PublishProductCreated(ctx context.Context, product *models.Product, tenantID string, actor Actor) error {
	event := p.buildProductEvent(events.ProductCreated, product, tenantID, actor)
	event.ChangeType = "created"
	return p.publishProduct(ctx, event)
}

// PublishProductUpdated publishes a product.updated event
func (p *Publisher) PublishProductUpdated(ctx context.Context, product *models.Product, changedFields []string, tenantID string, actor Actor) error {
	event := p.buildProductEvent(events.ProductUpdated, product, tenantID, actor)
	event.ChangeType = "updated"
	event.ChangedFields = changedFields
	return p.publishProduct(ctx, event)
}

// PublishProductDeleted publishes a product.deleted event
func (p *Publisher) PublishProductDeleted(ctx context.Context, product *models.Product, tenantID string, actor Actor) error {
	event := p.buildProductEvent(events.ProductDeleted, product, tenantID, actor)
	event.ChangeType = "deleted"
	return p.publishProduct(ctx, event)
}

// PublishProductStatusChanged publishes product.published, product.archived or
// product.status_changed depending on the new status
func (p *Publisher) PublishProductStatusChanged(ctx context.Context, product *models.Product, oldStatus models.ProductStatus, tenantID string, actor Actor) error {
	eventType := "product.status_changed"
	switch product.Status {
	case models.ProductStatusActive:
		eventType = events.ProductPublished
	case models.ProductStatusArchived:
		eventType = events.ProductArchived
	}
	event := p.buildProductEvent(eventType, product, tenantID, actor)
	event.ChangeType = "status_changed"
	event.OldValue = map[string]interface{}{"status": oldStatus}
	event.NewValue = map[string]interface{}{"status": product.Status}
	event.ChangedFields = []string{"status"}
	return p.publishProduct(ctx, event)
}

// PublishShopProduct publishes a catalogue.shop_product.* event
func (p *Publisher) PublishShopProduct(ctx context.Context, eventType string, sp *models.ShopProduct, actor Actor) error {
	event := &ShopProductEvent{
		BaseEvent: events.BaseEvent{
			EventType: eventType,
			TenantID:  sp.TenantID,
			SourceID:  sp.ID.String(),
			Timestamp: time.Now().UTC(),
		},
		ShopProductID: sp.ID.String(),
		ShopID:        sp.ShopID.String(),
		ProductID:     sp.ProductID.String(),
		ProductSlug:   sp.ProductSlug,
		Price:         sp.Price,
		OldPrice:      sp.OldPrice,
		Available:     sp.Available,
		Status:        string(sp.Status),
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		ActorEmail:    actor.Email,
	}

	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.publisher.Publish(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType":     event.EventType,
				"shopProductID": event.ShopProductID,
				"tenantID":      event.TenantID,
			}).WithError(err).Error("Failed to publish shop product event")
		}
	}()
	return nil
}

// buildProductEvent creates a ProductEvent from a product model
func (p *Publisher) buildProductEvent(eventType string, product *models.Product, tenantID string, actor Actor) *events.ProductEvent {
	event := events.NewProductEvent(eventType, tenantID)
	event.SourceID = uuid.New().String()
	event.ProductID = product.ID.String()
	event.ProductName = productName(product)
	event.Status = string(product.Status)
	if product.Article != nil {
		event.SKU = *product.Article
	}
	event.ActorID = actor.ID
	event.ActorName = actor.Name
	event.ActorEmail = actor.Email
	return event
}

// productName picks the english name, falling back to the slug
func productName(product *models.Product) string {
	if name := product.Name.Data()["en"]; name != "" {
		return name
	}
	return product.Slug
}

// publishProduct logs and publishes product events asynchronously
func (p *Publisher) publishProduct(ctx context.Context, event *events.ProductEvent) error {
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := p.publisher.PublishProduct(pubCtx, event); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": event.EventType,
				"productID": event.ProductID,
				"tenantID":  event.TenantID,
			}).WithError(err).Error("Failed to publish product event")
		} else {
			p.logger.WithFields(logrus.Fields{
				"eventType":   event.EventType,
				"productID":   event.ProductID,
				"productName": event.ProductName,
				"tenantID":    event.TenantID,
			}).Debug("Product event published")
		}
	}()

	return nil
}
