package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AttributeViewVariant controls how an attribute is rendered in the filter panel
type AttributeViewVariant string

const (
	AttributeViewSelect         AttributeViewVariant = "SELECT"
	AttributeViewMultipleSelect AttributeViewVariant = "MULTIPLE_SELECT"
	AttributeViewNumber         AttributeViewVariant = "NUMBER"
	AttributeViewText           AttributeViewVariant = "TEXT"
)

// Rubric is a catalogue taxonomy node (e.g. "wine", "whisky")
type Rubric struct {
	ID          uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string            `json:"tenantId" gorm:"not null;index:idx_rubrics_tenant_slug,unique"`
	Slug        string            `json:"slug" gorm:"not null;index:idx_rubrics_tenant_slug,unique"`
	Name        Translations      `json:"name" gorm:"type:jsonb;not null"`
	Description Translations      `json:"description" gorm:"type:jsonb"`
	Priority    int               `json:"priority" gorm:"not null;default:0"`
	IsActive    bool              `json:"isActive" gorm:"not null;default:true"`
	Attributes  []RubricAttribute `json:"attributes,omitempty" gorm:"foreignKey:RubricID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt    `json:"-" gorm:"index"`
}

// RubricAttribute binds an attribute to a rubric with display settings
type RubricAttribute struct {
	ID                    uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID              string     `json:"tenantId" gorm:"not null;index"`
	RubricID              uuid.UUID  `json:"rubricId" gorm:"type:uuid;not null;index:idx_rubric_attributes_pair,unique"`
	AttributeID           uuid.UUID  `json:"attributeId" gorm:"type:uuid;not null;index:idx_rubric_attributes_pair,unique"`
	ShowInCatalogueFilter bool       `json:"showInCatalogueFilter" gorm:"not null;default:true"`
	Position              int        `json:"position" gorm:"not null;default:0"`
	Attribute             *Attribute `json:"attribute,omitempty" gorm:"foreignKey:AttributeID"`
}

// Attribute is a filterable product property (e.g. "color", "volume")
type Attribute struct {
	ID          uuid.UUID            `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID    string               `json:"tenantId" gorm:"not null;index:idx_attributes_tenant_slug,unique"`
	Slug        string               `json:"slug" gorm:"not null;index:idx_attributes_tenant_slug,unique"`
	Name        Translations         `json:"name" gorm:"type:jsonb;not null"`
	Metric      *string              `json:"metric,omitempty"`
	ViewVariant AttributeViewVariant `json:"viewVariant" gorm:"not null;default:'MULTIPLE_SELECT'"`
	Position    int                  `json:"position" gorm:"not null;default:0"`
	Options     []Option             `json:"options,omitempty" gorm:"foreignKey:AttributeID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time            `json:"createdAt"`
	UpdatedAt   time.Time            `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt       `json:"-" gorm:"index"`
}

// Option is a value of an attribute. Options may nest through ParentID
// (e.g. "Europe" > "France" > "Bordeaux").
type Option struct {
	ID          uuid.UUID    `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	AttributeID uuid.UUID    `json:"attributeId" gorm:"type:uuid;not null;index:idx_options_attribute_slug,unique"`
	ParentID    *uuid.UUID   `json:"parentId,omitempty" gorm:"type:uuid;index"`
	Slug        string       `json:"slug" gorm:"not null;index:idx_options_attribute_slug,unique"`
	Name        Translations `json:"name" gorm:"type:jsonb;not null"`
	Color       *string      `json:"color,omitempty"`
	Priority    int          `json:"priority" gorm:"not null;default:0"`
}

// Brand is a product manufacturer
type Brand struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string         `json:"tenantId" gorm:"not null;index:idx_brands_tenant_slug,unique"`
	Slug      string         `json:"slug" gorm:"not null;index:idx_brands_tenant_slug,unique"`
	Name      Translations   `json:"name" gorm:"type:jsonb;not null"`
	LogoURL   *string        `json:"logoUrl,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// Category is a product grouping inside a rubric; categories nest via ParentID
type Category struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	TenantID  string         `json:"tenantId" gorm:"not null;index:idx_categories_tenant_slug,unique"`
	RubricID  uuid.UUID      `json:"rubricId" gorm:"type:uuid;not null;index"`
	ParentID  *uuid.UUID     `json:"parentId,omitempty" gorm:"type:uuid"`
	Slug      string         `json:"slug" gorm:"not null;index:idx_categories_tenant_slug,unique"`
	Name      Translations   `json:"name" gorm:"type:jsonb;not null"`
	Priority  int            `json:"priority" gorm:"not null;default:0"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Rubric) TableName() string          { return "rubrics" }
func (RubricAttribute) TableName() string { return "rubric_attributes" }
func (Attribute) TableName() string       { return "attributes" }
func (Option) TableName() string          { return "options" }
func (Brand) TableName() string           { return "brands" }
func (Category) TableName() string        { return "categories" }

// CreateRubricRequest represents a request to create a rubric
type CreateRubricRequest struct {
	Name        map[string]string `json:"name" binding:"required"`
	Description map[string]string `json:"description,omitempty"`
	Slug        *string           `json:"slug,omitempty"`
	Priority    int               `json:"priority"`
}

// CreateOptionRequest represents an option inside an attribute request.
// Children are created with ParentID pointing at the enclosing option.
type CreateOptionRequest struct {
	Name     map[string]string     `json:"name" binding:"required" yaml:"name"`
	Slug     *string               `json:"slug,omitempty" yaml:"slug,omitempty"`
	Color    *string               `json:"color,omitempty" yaml:"color,omitempty"`
	Priority int                   `json:"priority" yaml:"priority"`
	Children []CreateOptionRequest `json:"children,omitempty" yaml:"children,omitempty"`
}

// CreateAttributeRequest represents a request to create an attribute with its options
type CreateAttributeRequest struct {
	Name        map[string]string     `json:"name" binding:"required" yaml:"name"`
	Slug        *string               `json:"slug,omitempty" yaml:"slug,omitempty"`
	Metric      *string               `json:"metric,omitempty" yaml:"metric,omitempty"`
	ViewVariant AttributeViewVariant  `json:"viewVariant,omitempty" yaml:"viewVariant,omitempty"`
	Position    int                   `json:"position" yaml:"position"`
	Options     []CreateOptionRequest `json:"options,omitempty" yaml:"options,omitempty"`
}

// AssignRubricAttributeRequest attaches an attribute to a rubric
type AssignRubricAttributeRequest struct {
	AttributeID           string `json:"attributeId" binding:"required,uuid"`
	ShowInCatalogueFilter *bool  `json:"showInCatalogueFilter,omitempty"`
	Position              int    `json:"position"`
}

// CreateBrandRequest represents a request to create a brand
type CreateBrandRequest struct {
	Name    map[string]string `json:"name" binding:"required"`
	Slug    *string           `json:"slug,omitempty"`
	LogoURL *string           `json:"logoUrl,omitempty"`
}

// CreateCategoryRequest represents a request to create a category
type CreateCategoryRequest struct {
	RubricID string            `json:"rubricId" binding:"required,uuid"`
	ParentID *string           `json:"parentId,omitempty" binding:"omitempty,uuid"`
	Name     map[string]string `json:"name" binding:"required"`
	Slug     *string           `json:"slug,omitempty"`
	Priority int               `json:"priority"`
}
