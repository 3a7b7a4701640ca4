package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"

	"github.com/gin-gonic/gin"
)

// refError names the product field holding a reference that cannot appear in
// a filter path
type refError struct {
	Field   string
	Message string
}

func (e *refError) Error() string {
	return e.Message
}

// normalizeBrandSlug slugifies a brand reference. A blank brand stays blank so
// updates can clear it.
func normalizeBrandSlug(brand *string) (*string, error) {
	if brand == nil {
		return nil, nil
	}
	if strings.TrimSpace(*brand) == "" {
		blank := ""
		return &blank, nil
	}
	slug := repository.GenerateSlug(*brand)
	if slug == "" {
		return nil, &refError{Field: "brandSlug", Message: fmt.Sprintf("%q is not a valid brand slug", *brand)}
	}
	return &slug, nil
}

// normalizeCategorySlugs slugifies category references, dropping repeats
func normalizeCategorySlugs(categories []string) ([]string, error) {
	if categories == nil {
		return nil, nil
	}
	out := make([]string, 0, len(categories))
	seen := make(map[string]bool, len(categories))
	for _, raw := range categories {
		slug := repository.GenerateSlug(raw)
		if slug == "" {
			return nil, &refError{Field: "categorySlugs", Message: fmt.Sprintf("%q is not a valid category slug", raw)}
		}
		if !seen[slug] {
			seen[slug] = true
			out = append(out, slug)
		}
	}
	return out, nil
}

// normalizeOptionSlug checks raw is an "attribute-option" pair over a
// non-reserved attribute and slugifies the option part
func normalizeOptionSlug(raw string) (string, error) {
	invalid := &refError{Field: "optionSlugs", Message: fmt.Sprintf("%q is not an attribute-option pair", raw)}
	seg, err := filters.ParseSegment(strings.TrimSpace(raw))
	if err != nil || !repository.ValidAttributeSlug(seg.Attribute) ||
		seg.Attribute != repository.GenerateAttributeSlug(seg.Attribute) {
		return "", invalid
	}
	value := repository.GenerateSlug(seg.Value)
	if value == "" {
		return "", invalid
	}
	return filters.OptionSegment(seg.Attribute, value), nil
}

func normalizeOptionSlugs(options []string) ([]string, error) {
	if options == nil {
		return nil, nil
	}
	out := make([]string, 0, len(options))
	seen := make(map[string]bool, len(options))
	for _, raw := range options {
		slug, err := normalizeOptionSlug(raw)
		if err != nil {
			return nil, err
		}
		if !seen[slug] {
			seen[slug] = true
			out = append(out, slug)
		}
	}
	return out, nil
}

// normalizeProductRefs rewrites brand, category and option references in
// place so every value round-trips through a catalogue filter path
func normalizeProductRefs(brand **string, categories, options *[]string) error {
	b, err := normalizeBrandSlug(*brand)
	if err != nil {
		return err
	}
	cats, err := normalizeCategorySlugs(*categories)
	if err != nil {
		return err
	}
	opts, err := normalizeOptionSlugs(*options)
	if err != nil {
		return err
	}
	*brand, *categories, *options = b, cats, opts
	return nil
}

func invalidReference(c *gin.Context, err error) {
	var re *refError
	field := ""
	if errors.As(err, &re) {
		field = re.Field
	}
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Success: false,
		Error: models.Error{
			Code:    "INVALID",
			Message: err.Error(),
			Field:   field,
		},
	})
}
