package repository

import (
	"context"
	"fmt"

	"catalogue-service/internal/pipeline"
)

// The CatalogueRepository runs catalogue plans for the facet executor

// Docs returns the current page of the plan
func (r *CatalogueRepository) Docs(ctx context.Context, plan *pipeline.Plan) ([]pipeline.Doc, error) {
	var docs []pipeline.Doc
	if err := plan.DocsQuery(r.db.WithContext(ctx)).Scan(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// ExportDocs returns up to max docs of the plan ignoring paging
func (r *CatalogueRepository) ExportDocs(ctx context.Context, plan *pipeline.Plan, max int) ([]pipeline.Doc, error) {
	var docs []pipeline.Doc
	if err := plan.AllDocsQuery(r.db.WithContext(ctx), max).Scan(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Total counts the products matching the plan
func (r *CatalogueRepository) Total(ctx context.Context, plan *pipeline.Plan) (int64, error) {
	var total int64
	if err := plan.TotalQuery(r.db.WithContext(ctx)).Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// Counts runs a grouped count and returns it keyed by value
func (r *CatalogueRepository) Counts(ctx context.Context, plan *pipeline.Plan, spec pipeline.CountSpec) (map[string]int64, error) {
	var rows []pipeline.ValueCount
	if err := plan.CountQuery(r.db.WithContext(ctx), spec).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count %s: %w", spec.Name, err)
	}
	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Value] = row.Count
	}
	return counts, nil
}

// PriceRange returns the price bounds of the plan; ok is false when nothing matched
func (r *CatalogueRepository) PriceRange(ctx context.Context, plan *pipeline.Plan) (int64, int64, bool, error) {
	var row pipeline.PriceRangeRow
	if err := plan.PriceRangeQuery(r.db.WithContext(ctx)).Scan(&row).Error; err != nil {
		return 0, 0, false, err
	}
	if row.MinPrice == nil || row.MaxPrice == nil {
		return 0, 0, false, nil
	}
	return *row.MinPrice, *row.MaxPrice, true, nil
}

// PriceHistogram counts products per price bucket
func (r *CatalogueRepository) PriceHistogram(ctx context.Context, plan *pipeline.Plan, low, high int64, buckets int) (map[int]int64, error) {
	var rows []pipeline.BucketCount
	if err := plan.PriceHistogramQuery(r.db.WithContext(ctx), low, high, buckets).Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[int]int64, len(rows))
	for _, row := range rows {
		counts[row.Bucket] = row.Count
	}
	return counts, nil
}
