package subscribers

import (
	"context"
	"errors"
	"os"
	"time"

	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"

	gosharedevents "github.com/Tesseract-Nexus/go-shared/events"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StatusUpdater changes the publication status of a product
type StatusUpdater interface {
	UpdateProductStatus(ctx context.Context, tenantID string, productID uuid.UUID, status models.ProductStatus) error
}

// ApprovalSubscriber applies granted product approvals to the catalogue
type ApprovalSubscriber struct {
	subscriber *gosharedevents.Subscriber
	repo       StatusUpdater
	logger     *logrus.Entry
	cancel     context.CancelFunc
}

// NewApprovalSubscriber connects a durable approval subscriber
func NewApprovalSubscriber(repo StatusUpdater, logger *logrus.Logger) (*ApprovalSubscriber, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://nats.nats.svc.cluster.local:4222"
	}

	config := gosharedevents.DefaultSubscriberConfig(natsURL, "catalogue-service-approvals")
	config.Name = "catalogue-service-approval-subscriber"
	config.DeliverPolicy = "new"
	config.MaxDeliver = 3
	config.AckWait = 30 * time.Second

	subscriber, err := gosharedevents.NewSubscriber(config, logger)
	if err != nil {
		return nil, err
	}

	return newApprovalSubscriber(subscriber, repo, logger), nil
}

func newApprovalSubscriber(subscriber *gosharedevents.Subscriber, repo StatusUpdater, logger *logrus.Logger) *ApprovalSubscriber {
	return &ApprovalSubscriber{
		subscriber: subscriber,
		repo:       repo,
		logger:     logger.WithField("component", "approval-subscriber"),
	}
}

// Start subscribes to approval.granted
func (s *ApprovalSubscriber) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	subjects := []string{gosharedevents.ApprovalGranted}
	if err := s.subscriber.SubscribeApprovalEvents(ctx, subjects, s.handleApprovalEvent); err != nil {
		return err
	}

	s.logger.WithField("subjects", subjects).Info("Approval subscriber started")
	return nil
}

// handleApprovalEvent moves an approved product to its target status.
// Returning nil acks the message; errors are redelivered up to MaxDeliver.
func (s *ApprovalSubscriber) handleApprovalEvent(ctx context.Context, event *gosharedevents.ApprovalEvent) error {
	log := s.logger.WithFields(logrus.Fields{
		"approval_id":   event.ApprovalRequestID,
		"action_type":   event.ActionType,
		"resource_type": event.ResourceType,
		"resource_id":   event.ResourceID,
		"tenant_id":     event.TenantID,
	})

	if event.ResourceType != "product" || event.Status != "approved" {
		log.WithField("status", event.Status).Debug("Ignoring approval event")
		return nil
	}
	status, ok := models.ApprovalAction(event.ActionType).TargetStatus()
	if !ok {
		log.Debug("Ignoring unhandled product action")
		return nil
	}

	productID, err := uuid.Parse(event.ResourceID)
	if err != nil {
		log.WithError(err).Error("Invalid product ID in approval event")
		return nil
	}

	err = s.repo.UpdateProductStatus(ctx, event.TenantID, productID, status)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("Approved product no longer exists")
		return nil
	}
	if err != nil {
		log.WithError(err).Error("Failed to apply approval")
		return err
	}

	log.WithFields(logrus.Fields{
		"new_status": status,
		"approver":   event.ApproverName,
	}).Info("Product status updated after approval")
	return nil
}

// Stop cancels the subscription and closes the connection
func (s *ApprovalSubscriber) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.subscriber != nil {
		s.subscriber.Close()
	}
	s.logger.Info("Approval subscriber stopped")
}
