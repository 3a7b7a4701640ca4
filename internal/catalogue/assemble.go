// Package catalogue merges facet results with taxonomy metadata into the
// response served by the catalogue endpoints.
package catalogue

import (
	"sort"

	"catalogue-service/internal/facets"
	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/options"
	"catalogue-service/internal/pipeline"

	"github.com/google/uuid"
)

// AssembleInput carries everything Assemble needs
type AssembleInput struct {
	Mode      models.CatalogueMode
	Rubric    *models.Rubric
	Search    string
	Selection *filters.Selection
	Facets    *facets.Result
	// Attributes bound to the rubric with Attribute and its Options loaded
	Attributes []models.RubricAttribute
	Brands     []models.Brand
	Categories []models.Category
	Products   map[uuid.UUID]*models.Product
	Localizer  Localizer
	BasePath   string
}

// keepEmpty reports whether zero-count options stay visible. Console pickers
// show the full taxonomy; the storefront hides dead ends.
func (in AssembleInput) keepEmpty() bool {
	return in.Mode != models.CatalogueModeStorefront
}

// Assemble builds the catalogue result
func Assemble(in AssembleInput) *models.CatalogueResult {
	sel := in.Selection
	res := &models.CatalogueResult{
		Mode:   in.Mode,
		Search: in.Search,
		Sort:   models.CatalogueSort{By: sel.SortBy, Dir: sel.SortDir},
		// empty slices serialize as [] rather than null
		Segments:         nonNil(sel.Segments()),
		Cards:            []models.CatalogueCard{},
		Attributes:       []models.FilterAttribute{},
		Brands:           []models.FilterOption{},
		Categories:       []models.FilterOption{},
		SelectedFilters:  []models.SelectedFilter{},
		ClearAllSegments: nonNil(sel.ClearAll().Segments()),
		ClearAllPath:     sel.ClearAll().Path(in.BasePath),
		BasePath:         in.BasePath,
	}
	if in.Rubric != nil {
		res.Rubric = &models.RubricSummary{
			ID:   in.Rubric.ID,
			Slug: in.Rubric.Slug,
			Name: in.Localizer.NameOr(in.Rubric.Name, in.Rubric.Slug),
		}
	}

	result := in.Facets
	if result == nil {
		result = &facets.Result{}
	}

	res.Cards = Cards(result.Docs, in.Products, in.Localizer)
	res.Pagination = models.NewPaginationInfo(sel.Page, sel.Limit, result.Total)
	if res.Pagination.HasNext {
		next := sel.WithPage(sel.Page + 1).Path(in.BasePath)
		res.NextPath = &next
	}
	if res.Pagination.HasPrevious {
		prev := sel.WithPage(sel.Page - 1).Path(in.BasePath)
		res.PrevPath = &prev
	}

	names := newNameIndex()
	res.Attributes = in.attributes(result, names)
	res.Brands = in.brands(result, names)
	res.Categories = in.categories(result, names)
	if result.Prices != nil {
		histogram := make([]models.PriceBucket, len(result.Prices.Buckets))
		for i, b := range result.Prices.Buckets {
			histogram[i] = models.PriceBucket{From: b.From, To: b.To, Counter: b.Count}
		}
		res.Prices = &models.PriceFacet{
			Min:       result.Prices.Min,
			Max:       result.Prices.Max,
			From:      sel.PriceFrom,
			To:        sel.PriceTo,
			Histogram: histogram,
		}
	}
	res.SelectedFilters = in.selectedFilters(names)
	return res
}

// Cards turns docs into cards in doc order, skipping docs whose product is missing
func Cards(docs []pipeline.Doc, products map[uuid.UUID]*models.Product, loc Localizer) []models.CatalogueCard {
	cards := make([]models.CatalogueCard, 0, len(docs))
	for _, doc := range docs {
		product, ok := products[doc.ProductID]
		if !ok || product == nil {
			continue
		}
		cards = append(cards, models.CatalogueCard{
			ProductID:  product.ID,
			Slug:       product.Slug,
			Name:       loc.NameOr(product.Name, product.Slug),
			MainImage:  product.MainImage,
			BrandSlug:  product.BrandSlug,
			Status:     product.Status,
			MinPrice:   doc.MinPrice,
			MaxPrice:   doc.MaxPrice,
			ShopsCount: doc.ShopsCount,
		})
	}
	return cards
}

func (in AssembleInput) attributes(result *facets.Result, names *nameIndex) []models.FilterAttribute {
	bindings := append([]models.RubricAttribute(nil), in.Attributes...)
	sort.SliceStable(bindings, func(i, j int) bool {
		if bindings[i].Position != bindings[j].Position {
			return bindings[i].Position < bindings[j].Position
		}
		a, b := bindings[i].Attribute, bindings[j].Attribute
		if a == nil || b == nil {
			return b == nil && a != nil
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.Slug < b.Slug
	})

	sel := in.Selection
	out := make([]models.FilterAttribute, 0, len(bindings))
	for _, binding := range bindings {
		attr := binding.Attribute
		if attr == nil {
			continue
		}
		attrName := in.Localizer.NameOr(attr.Name, attr.Slug)
		items := make([]options.Item, 0, len(attr.Options))
		for _, opt := range attr.Options {
			name := in.Localizer.NameOr(opt.Name, opt.Slug)
			names.add(attr.Slug, opt.Slug, name)
			items = append(items, options.Item{
				ID:       opt.ID.String(),
				ParentID: uuidString(opt.ParentID),
				Slug:     opt.Slug,
				Name:     name,
				Priority: opt.Priority,
				Color:    opt.Color,
			})
		}
		names.addAttribute(attr.Slug, attrName)

		if in.Mode == models.CatalogueModeStorefront && !binding.ShowInCatalogueFilter {
			continue
		}
		selected := sel.IsAttributeSelected(attr.Slug)
		tree := options.Build(items, options.BuildOptions{
			Counts:    result.OptionCountsOf(attr.Slug),
			Selected:  func(slug string) bool { return sel.IsSelected(attr.Slug, slug) },
			KeepEmpty: in.keepEmpty(),
		})
		if len(tree) == 0 && !selected {
			continue
		}
		fa := models.FilterAttribute{
			Slug:        attr.Slug,
			Name:        attrName,
			Metric:      attr.Metric,
			ViewVariant: attr.ViewVariant,
			Position:    binding.Position,
			Selected:    selected,
			Options:     in.filterOptions(attr.Slug, tree),
		}
		if selected {
			fa.ClearSegments = nonNil(sel.WithoutAttribute(attr.Slug).Segments())
		}
		out = append(out, fa)
	}
	return out
}

func (in AssembleInput) brands(result *facets.Result, names *nameIndex) []models.FilterOption {
	known := make(map[string]bool, len(in.Brands))
	items := make([]options.Item, 0, len(in.Brands))
	for _, b := range in.Brands {
		name := in.Localizer.NameOr(b.Name, b.Slug)
		names.add(filters.AttrBrand, b.Slug, name)
		known[b.Slug] = true
		items = append(items, options.Item{ID: b.Slug, Slug: b.Slug, Name: name})
	}
	// counted slugs without a brand record still filter correctly
	for _, slug := range append(facets.SortedKeys(result.BrandCounts), in.Selection.Brands...) {
		if !known[slug] {
			known[slug] = true
			items = append(items, options.Item{ID: slug, Slug: slug, Name: slug})
		}
	}
	tree := options.Build(items, options.BuildOptions{
		Counts:    result.BrandCounts,
		Selected:  func(slug string) bool { return in.Selection.IsSelected(filters.AttrBrand, slug) },
		KeepEmpty: in.keepEmpty(),
	})
	return in.filterOptions(filters.AttrBrand, tree)
}

func (in AssembleInput) categories(result *facets.Result, names *nameIndex) []models.FilterOption {
	items := make([]options.Item, 0, len(in.Categories))
	for _, c := range in.Categories {
		name := in.Localizer.NameOr(c.Name, c.Slug)
		names.add(filters.AttrCategory, c.Slug, name)
		items = append(items, options.Item{
			ID:       c.ID.String(),
			ParentID: uuidString(c.ParentID),
			Slug:     c.Slug,
			Name:     name,
			Priority: c.Priority,
		})
	}
	tree := options.Build(items, options.BuildOptions{
		Counts:    result.CategoryCounts,
		Selected:  func(slug string) bool { return in.Selection.IsSelected(filters.AttrCategory, slug) },
		KeepEmpty: in.keepEmpty(),
	})
	return in.filterOptions(filters.AttrCategory, tree)
}

func (in AssembleInput) filterOptions(attr string, nodes []*options.Node) []models.FilterOption {
	out := make([]models.FilterOption, 0, len(nodes))
	for _, n := range nodes {
		next := in.Selection.Toggle(attr, n.Slug)
		fo := models.FilterOption{
			Slug:         n.Slug,
			Name:         n.Name,
			Color:        n.Color,
			Counter:      n.Total,
			Selected:     n.Selected,
			NextSegments: nonNil(next.Segments()),
			NextPath:     next.Path(in.BasePath),
		}
		if len(n.Children) > 0 {
			fo.Children = in.filterOptions(attr, n.Children)
		}
		out = append(out, fo)
	}
	return out
}

func (in AssembleInput) selectedFilters(names *nameIndex) []models.SelectedFilter {
	sel := in.Selection
	active := sel.Selected()
	out := make([]models.SelectedFilter, 0, len(active))
	for _, seg := range active {
		clear := sel.Without(seg.Attribute, seg.Value)
		out = append(out, models.SelectedFilter{
			Attribute:     seg.Attribute,
			AttributeName: names.attribute(seg.Attribute),
			Value:         seg.Value,
			Name:          names.value(seg.Attribute, seg.Value),
			ClearSegments: nonNil(clear.Segments()),
			ClearPath:     clear.Path(in.BasePath),
		})
	}
	return out
}

// nameIndex resolves localized names for selected filter chips
type nameIndex struct {
	attributes map[string]string
	values     map[string]string
}

func newNameIndex() *nameIndex {
	return &nameIndex{attributes: map[string]string{}, values: map[string]string{}}
}

func (n *nameIndex) add(attr, slug, name string) {
	n.values[filters.OptionSegment(attr, slug)] = name
}

func (n *nameIndex) addAttribute(attr, name string) {
	n.attributes[attr] = name
}

func (n *nameIndex) attribute(attr string) string {
	if name, ok := n.attributes[attr]; ok {
		return name
	}
	return attr
}

func (n *nameIndex) value(attr, slug string) string {
	if name, ok := n.values[filters.OptionSegment(attr, slug)]; ok {
		return name
	}
	return slug
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
