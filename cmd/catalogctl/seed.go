package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"catalogue-service/internal/config"
	"catalogue-service/internal/models"
	"catalogue-service/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var seedDryRun bool

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Create rubrics, attributes and brands from a YAML file",
	Long: `Create taxonomy from a YAML file. Attributes are created first, then
rubrics with their attribute bindings, then brands and categories.

  attributes:
    - slug: color
      name: {en: Color, de: Farbe}
      options:
        - slug: red
          name: {en: Red}
          color: "#b11226"
  rubrics:
    - slug: wine
      name: {en: Wine}
      attributes:
        - slug: color
          position: 1
      categories:
        - slug: sparkling
          name: {en: Sparkling}
  brands:
    - slug: penfolds
      name: {en: Penfolds}`,
	Args: cobra.ExactArgs(1),
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "validate the file without writing")
}

type seedFile struct {
	Attributes []models.CreateAttributeRequest `yaml:"attributes"`
	Rubrics    []seedRubric                    `yaml:"rubrics"`
	Brands     []seedBrand                     `yaml:"brands"`
}

type seedRubric struct {
	Slug        string            `yaml:"slug"`
	Name        map[string]string `yaml:"name"`
	Description map[string]string `yaml:"description"`
	Priority    int               `yaml:"priority"`
	Attributes  []seedBinding     `yaml:"attributes"`
	Categories  []seedCategory    `yaml:"categories"`
}

type seedBinding struct {
	Slug string `yaml:"slug"`
	// Hidden keeps the attribute out of the storefront filter panel
	Hidden   bool `yaml:"hidden"`
	Position int  `yaml:"position"`
}

type seedCategory struct {
	Slug     string            `yaml:"slug"`
	Name     map[string]string `yaml:"name"`
	Priority int               `yaml:"priority"`
	Children []seedCategory    `yaml:"children"`
}

type seedBrand struct {
	Slug    string            `yaml:"slug"`
	Name    map[string]string `yaml:"name"`
	LogoURL *string           `yaml:"logoUrl"`
}

// loadSeed decodes and validates a seed file
func loadSeed(r io.Reader) (*seedFile, error) {
	var seed seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	attrs := make(map[string]bool, len(seed.Attributes))
	for i, a := range seed.Attributes {
		if len(a.Name) == 0 {
			return nil, fmt.Errorf("attributes[%d]: name is required", i)
		}
		slug := attributeSlug(a)
		if !repository.ValidAttributeSlug(slug) {
			return nil, fmt.Errorf("attributes[%d]: %w: %q", i, repository.ErrInvalidSlug, slug)
		}
		if attrs[slug] {
			return nil, fmt.Errorf("attributes[%d]: %w: %q", i, repository.ErrDuplicateSlug, slug)
		}
		attrs[slug] = true
	}
	for i, rb := range seed.Rubrics {
		if len(rb.Name) == 0 {
			return nil, fmt.Errorf("rubrics[%d]: name is required", i)
		}
		for _, b := range rb.Attributes {
			if !attrs[repository.GenerateAttributeSlug(b.Slug)] {
				return nil, fmt.Errorf("rubrics[%d]: unknown attribute %q", i, b.Slug)
			}
		}
	}
	for i, b := range seed.Brands {
		if len(b.Name) == 0 {
			return nil, fmt.Errorf("brands[%d]: name is required", i)
		}
	}
	return &seed, nil
}

func attributeSlug(a models.CreateAttributeRequest) string {
	if a.Slug != nil && *a.Slug != "" {
		return repository.GenerateAttributeSlug(*a.Slug)
	}
	return repository.GenerateAttributeSlug(repository.DefaultName(a.Name))
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func runSeed(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	seed, err := loadSeed(f)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"attributes": len(seed.Attributes),
		"rubrics":    len(seed.Rubrics),
		"brands":     len(seed.Brands),
	}).Info("Seed file is valid")
	if seedDryRun {
		return nil
	}
	if tenantID == "" {
		return errors.New("--tenant is required")
	}

	db, err := config.InitDB(config.Load())
	if err != nil {
		return err
	}
	repo := repository.NewCatalogueRepository(db, nil)
	return applySeed(cmd.Context(), repo, tenantID, seed)
}

func applySeed(ctx context.Context, repo *repository.CatalogueRepository, tenant string, seed *seedFile) error {
	attrIDs := make(map[string]string, len(seed.Attributes))
	for i := range seed.Attributes {
		attr, err := repo.CreateAttribute(ctx, tenant, &seed.Attributes[i])
		if err != nil {
			return fmt.Errorf("attribute %q: %w", attributeSlug(seed.Attributes[i]), err)
		}
		attrIDs[attr.Slug] = attr.ID.String()
		logger.WithField("slug", attr.Slug).WithField("options", len(attr.Options)).Info("Attribute created")
	}

	for _, rb := range seed.Rubrics {
		rubric, err := repo.CreateRubric(ctx, tenant, &models.CreateRubricRequest{
			Name:        rb.Name,
			Description: rb.Description,
			Slug:        optionalString(rb.Slug),
			Priority:    rb.Priority,
		})
		if err != nil {
			return fmt.Errorf("rubric %q: %w", rb.Slug, err)
		}
		for _, b := range rb.Attributes {
			show := !b.Hidden
			if _, err := repo.AssignRubricAttribute(ctx, tenant, rubric.ID, &models.AssignRubricAttributeRequest{
				AttributeID:           attrIDs[repository.GenerateAttributeSlug(b.Slug)],
				ShowInCatalogueFilter: &show,
				Position:              b.Position,
			}); err != nil {
				return fmt.Errorf("rubric %q attribute %q: %w", rubric.Slug, b.Slug, err)
			}
		}
		if err := createCategories(ctx, repo, tenant, rubric.ID.String(), nil, rb.Categories); err != nil {
			return fmt.Errorf("rubric %q: %w", rubric.Slug, err)
		}
		logger.WithField("slug", rubric.Slug).Info("Rubric created")
	}

	for _, b := range seed.Brands {
		brand, err := repo.CreateBrand(ctx, tenant, &models.CreateBrandRequest{
			Name:    b.Name,
			Slug:    optionalString(b.Slug),
			LogoURL: b.LogoURL,
		})
		if err != nil {
			return fmt.Errorf("brand %q: %w", b.Slug, err)
		}
		logger.WithField("slug", brand.Slug).Info("Brand created")
	}
	return nil
}

func createCategories(ctx context.Context, repo *repository.CatalogueRepository, tenant, rubricID string, parentID *string, cats []seedCategory) error {
	for _, c := range cats {
		category, err := repo.CreateCategory(ctx, tenant, &models.CreateCategoryRequest{
			RubricID: rubricID,
			ParentID: parentID,
			Name:     c.Name,
			Slug:     optionalString(c.Slug),
			Priority: c.Priority,
		})
		if err != nil {
			return fmt.Errorf("category %q: %w", c.Slug, err)
		}
		id := category.ID.String()
		if err := createCategories(ctx, repo, tenant, rubricID, &id, c.Children); err != nil {
			return err
		}
	}
	return nil
}
