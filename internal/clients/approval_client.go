package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"catalogue-service/internal/models"
)

// PriorityPublicationManager is the approval level required to publish or archive a product
const PriorityPublicationManager = 30

// ErrApprovalRejected is returned when the approval service refuses a request
var ErrApprovalRejected = errors.New("approval service rejected the request")

// ApprovalClient provides methods to interact with the approval-service
type ApprovalClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewApprovalClient creates a new approval service client
func NewApprovalClient(baseURL string) *ApprovalClient {
	return &ApprovalClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Requester identifies the user an approval is requested or granted by
type Requester struct {
	ID    string
	Name  string
	Email string
	Role  string
}

// ProductApproval is an approval request for a product status change
type ProductApproval struct {
	Action      models.ApprovalAction
	ProductID   string
	ProductSlug string
	ProductName string
	Reason      string
}

type createApprovalRequest struct {
	WorkflowName     string         `json:"workflowName"`
	ActionType       string         `json:"actionType"`
	ResourceType     string         `json:"resourceType"`
	ResourceID       string         `json:"resourceId"`
	ResourceRef      string         `json:"resource_reference,omitempty"`
	RequestedByID    string         `json:"requested_by_id,omitempty"`
	RequestedByName  string         `json:"requested_by_name,omitempty"`
	RequiredPriority int            `json:"required_priority,omitempty"`
	Reason           string         `json:"reason,omitempty"`
	ActionData       map[string]any `json:"actionData,omitempty"`
}

type approvalResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		ID string `json:"id"`
	} `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// RequestProductApproval creates an approval request and returns its ID.
// The internal endpoint skips RBAC; the caller's identity travels in the
// Istio JWT claim headers.
func (c *ApprovalClient) RequestProductApproval(ctx context.Context, tenantID string, by Requester, req ProductApproval) (string, error) {
	reason := req.Reason
	if reason == "" {
		reason = fmt.Sprintf("Request to %s product: %s", verb(req.Action), req.ProductName)
	}
	body := &createApprovalRequest{
		WorkflowName:     string(req.Action),
		ActionType:       string(req.Action),
		ResourceType:     "product",
		ResourceID:       req.ProductID,
		ResourceRef:      req.ProductName,
		RequestedByID:    by.ID,
		RequestedByName:  by.Name,
		RequiredPriority: PriorityPublicationManager,
		Reason:           reason,
		ActionData: map[string]any{
			"product_id":   req.ProductID,
			"product_slug": req.ProductSlug,
			"action":       verb(req.Action),
		},
	}

	resp, err := c.post(ctx, "/api/v1/approvals/internal", tenantID, by, body)
	if err != nil {
		return "", err
	}
	if resp.Data == nil || resp.Data.ID == "" {
		return "", fmt.Errorf("%w: response carries no approval id", ErrApprovalRejected)
	}
	return resp.Data.ID, nil
}

// Approve grants an existing approval request. Used when the requester may
// approve their own changes.
func (c *ApprovalClient) Approve(ctx context.Context, tenantID, approvalID string, by Requester, comment string) error {
	_, err := c.post(ctx, "/api/v1/approvals/"+approvalID+"/approve/internal", tenantID, by, map[string]string{"comment": comment})
	return err
}

func (c *ApprovalClient) post(ctx context.Context, path, tenantID string, by Requester, payload any) (*approvalResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-jwt-claim-sub", by.ID)
	httpReq.Header.Set("x-jwt-claim-tenant-id", tenantID)
	httpReq.Header.Set("x-jwt-claim-email", by.Email)
	httpReq.Header.Set("x-jwt-claim-name", by.Name)
	if by.Role != "" {
		httpReq.Header.Set("x-jwt-claim-roles", fmt.Sprintf("[%q]", by.Role))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call approval service: %w", err)
	}
	defer resp.Body.Close()

	var out approvalResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !out.Success {
		msg := out.Error
		if msg == "" {
			msg = out.Message
		}
		return nil, fmt.Errorf("%w (status %d): %s", ErrApprovalRejected, resp.StatusCode, msg)
	}
	return &out, nil
}

func verb(action models.ApprovalAction) string {
	if action == models.ApprovalActionArchive {
		return "archive"
	}
	return "publish"
}

// CanAutoApprove reports whether any of roles may approve its own product changes
func CanAutoApprove(roles ...string) bool {
	for _, role := range roles {
		switch strings.ToLower(role) {
		case "owner", "store_owner", "super_admin", "admin":
			return true
		}
	}
	return false
}
