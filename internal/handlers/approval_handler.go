package handlers

import (
	"context"
	"net/http"

	"catalogue-service/internal/clients"
	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ApprovalRequester creates and grants approval requests
type ApprovalRequester interface {
	RequestProductApproval(ctx context.Context, tenantID string, by clients.Requester, req clients.ProductApproval) (string, error)
	Approve(ctx context.Context, tenantID, approvalID string, by clients.Requester, comment string) error
}

// ProductReader loads the product an approval is requested for
type ProductReader interface {
	GetProductByID(ctx context.Context, tenantID string, productID uuid.UUID) (*models.Product, error)
}

// ApprovalHandler routes product publication and archiving through the
// approval service. The status change itself is applied by the approval
// subscriber once approval.granted arrives.
type ApprovalHandler struct {
	products  ProductReader
	approvals ApprovalRequester
}

func NewApprovalHandler(products ProductReader, approvals ApprovalRequester) *ApprovalHandler {
	return &ApprovalHandler{products: products, approvals: approvals}
}

// SubmitProduct requests approval to publish or archive a product
// POST /api/v1/products/:id/submit
func (h *ApprovalHandler) SubmitProduct(c *gin.Context) {
	tenantID, _ := c.Get("tenant_id")
	ctx := c.Request.Context()

	productID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		invalidID(c, "product")
		return
	}

	var req models.SubmitProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err.Error(), "")
		return
	}
	if !req.Status.IsValid() {
		validationError(c, "Unknown product status", "status")
		return
	}

	product, err := h.products.GetProductByID(ctx, tenantID.(string), productID)
	if err != nil {
		respondError(c, err, "FETCH_FAILED", "Failed to retrieve product")
		return
	}
	if product.Status == req.Status {
		c.JSON(http.StatusConflict, models.ErrorResponse{
			Success: false,
			Error: models.Error{
				Code:    "STATUS_UNCHANGED",
				Message: "Product already has status " + string(req.Status),
				Field:   "status",
			},
		})
		return
	}
	action, ok := models.ApprovalActionFor(product.Status, req.Status)
	if !ok {
		validationError(c, "Only ACTIVE and ARCHIVED need approval, use the status endpoint", "status")
		return
	}

	name := repository.DefaultName(product.Name.Data())
	if name == "" {
		name = product.Slug
	}
	by, roles := requesterOf(c)
	approvalID, err := h.approvals.RequestProductApproval(ctx, tenantID.(string), by, clients.ProductApproval{
		Action:      action,
		ProductID:   product.ID.String(),
		ProductSlug: product.Slug,
		ProductName: name,
		Reason:      req.Reason,
	})
	if err != nil {
		respondError(c, err, "APPROVAL_FAILED", "Failed to request approval")
		return
	}

	submission := models.ApprovalSubmission{
		ApprovalID:   approvalID,
		Action:       action,
		TargetStatus: req.Status,
	}
	// a failed self-approval leaves the request pending for a manager
	if clients.CanAutoApprove(roles...) {
		submission.AutoApproved = h.approvals.Approve(ctx, tenantID.(string), approvalID, by, "Auto-approved for "+by.Role) == nil
	}

	c.JSON(http.StatusAccepted, models.SuccessResponse{
		Success: true,
		Data:    submission,
		Message: stringPtr("Approval requested"),
	})
}

// requesterOf collects the caller identity and roles from the auth context
func requesterOf(c *gin.Context) (clients.Requester, []string) {
	actor := gosharedmw.GetActorInfo(c)
	var roles []string
	if v, ok := c.Get("user_roles"); ok {
		roles, _ = v.([]string)
	}
	if role := c.GetString("user_role"); role != "" {
		roles = append(roles, role)
	}
	by := clients.Requester{ID: actor.ActorID, Name: actor.ActorName, Email: actor.ActorEmail}
	for _, role := range roles {
		if clients.CanAutoApprove(role) {
			by.Role = role
			break
		}
	}
	if by.Role == "" && len(roles) > 0 {
		by.Role = roles[0]
	}
	return by, roles
}
