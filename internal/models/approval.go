package models

// ApprovalAction is the action type of a product approval request
type ApprovalAction string

const (
	ApprovalActionCreation ApprovalAction = "product_creation"
	ApprovalActionUpdate   ApprovalAction = "product_update"
	ApprovalActionArchive  ApprovalAction = "product_archive"
)

// TargetStatus returns the status a product moves to once a is granted
func (a ApprovalAction) TargetStatus() (ProductStatus, bool) {
	switch a {
	case ApprovalActionCreation, ApprovalActionUpdate:
		return ProductStatusActive, true
	case ApprovalActionArchive:
		return ProductStatusArchived, true
	}
	return "", false
}

// ApprovalActionFor picks the approval action that moves a product from
// current to target. Only publication and archiving go through approval.
func ApprovalActionFor(current, target ProductStatus) (ApprovalAction, bool) {
	switch {
	case current == target:
		return "", false
	case target == ProductStatusActive && current == ProductStatusDraft:
		return ApprovalActionCreation, true
	case target == ProductStatusActive:
		return ApprovalActionUpdate, true
	case target == ProductStatusArchived:
		return ApprovalActionArchive, true
	}
	return "", false
}

// SubmitProductRequest asks for a product to be published or archived
type SubmitProductRequest struct {
	Status ProductStatus `json:"status" binding:"required"`
	Reason string        `json:"reason,omitempty"`
}

// ApprovalSubmission describes an approval request created for a product
type ApprovalSubmission struct {
	ApprovalID   string         `json:"approvalId"`
	Action       ApprovalAction `json:"action"`
	TargetStatus ProductStatus  `json:"targetStatus"`
	AutoApproved bool           `json:"autoApproved"`
}
