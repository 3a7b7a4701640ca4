package main

import (
	"encoding/json"
	"fmt"
	"io"

	"catalogue-service/internal/filters"
	"catalogue-service/internal/models"
	"catalogue-service/internal/pipeline"

	"github.com/spf13/cobra"
)

var (
	decodeMode string
	decodeBase string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <path>",
	Short: "Parse a filter path into a selection",
	Long: `Parse a filter path such as /rubric-wine/color-red/page-2 and print the
selection, its canonical segments and canonical path as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDecode(cmd.OutOrStdout(), models.CatalogueMode(decodeMode), args[0], decodeBase)
	},
}

type encodeFlags struct {
	mode       string
	rubric     string
	options    []string
	brands     []string
	categories []string
	priceFrom  int64
	priceTo    int64
	page       int
	base       string
}

var encodeOpts encodeFlags

var encodeCmd = &cobra.Command{
	Use:   "encode",
	Short: "Build a canonical filter path from flags",
	Example: `  catalogctl encode --rubric wine --option color-red --option country-france --price-to 3000
  catalogctl encode --mode console_products --brand penfolds --page 2`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEncode(cmd.OutOrStdout(), encodeOpts)
	},
}

func init() {
	decodeCmd.Flags().StringVar(&decodeMode, "mode", string(models.CatalogueModeStorefront), "catalogue mode whose defaults apply")
	decodeCmd.Flags().StringVar(&decodeBase, "base", "/catalogue", "path prefix of the canonical path")

	f := encodeCmd.Flags()
	f.StringVar(&encodeOpts.mode, "mode", string(models.CatalogueModeStorefront), "catalogue mode whose defaults apply")
	f.StringVar(&encodeOpts.rubric, "rubric", "", "rubric slug")
	f.StringArrayVar(&encodeOpts.options, "option", nil, "attribute option as attribute-option (repeatable)")
	f.StringArrayVar(&encodeOpts.brands, "brand", nil, "brand slug (repeatable)")
	f.StringArrayVar(&encodeOpts.categories, "category", nil, "category slug (repeatable)")
	f.Int64Var(&encodeOpts.priceFrom, "price-from", -1, "lower price bound in minor units")
	f.Int64Var(&encodeOpts.priceTo, "price-to", -1, "upper price bound in minor units")
	f.IntVar(&encodeOpts.page, "page", 1, "page number")
	f.StringVar(&encodeOpts.base, "base", "/catalogue", "path prefix")
}

// parseOptionsFor returns the codec defaults of mode
func parseOptionsFor(mode models.CatalogueMode) (filters.ParseOptions, error) {
	if !mode.IsValid() {
		return filters.ParseOptions{}, fmt.Errorf("%w: %q", pipeline.ErrInvalidMode, mode)
	}
	opts := filters.DefaultParseOptions()
	opts.DefaultSortBy = pipeline.DefaultSortBy(mode)
	return opts, nil
}

type pathOutput struct {
	Selection *filters.Selection `json:"selection"`
	Segments  []string           `json:"segments"`
	Path      string             `json:"path"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runDecode(w io.Writer, mode models.CatalogueMode, path, base string) error {
	opts, err := parseOptionsFor(mode)
	if err != nil {
		return err
	}
	sel, err := filters.ParsePath(path, opts)
	if err != nil {
		return err
	}
	return writeJSON(w, pathOutput{Selection: sel, Segments: sel.Segments(), Path: sel.Path(base)})
}

func runEncode(w io.Writer, in encodeFlags) error {
	opts, err := parseOptionsFor(models.CatalogueMode(in.mode))
	if err != nil {
		return err
	}

	sel := filters.New(opts)
	sel.Rubric = in.rubric
	for _, raw := range in.options {
		seg, err := filters.ParseSegment(raw)
		if err != nil {
			return err
		}
		if filters.IsReserved(seg.Attribute) {
			return fmt.Errorf("%w: %q uses a reserved attribute, use its own flag", filters.ErrInvalidSegment, raw)
		}
		if !sel.IsSelected(seg.Attribute, seg.Value) {
			sel = sel.Toggle(seg.Attribute, seg.Value)
		}
	}
	for _, b := range in.brands {
		if !sel.IsSelected(filters.AttrBrand, b) {
			sel = sel.Toggle(filters.AttrBrand, b)
		}
	}
	for _, c := range in.categories {
		if !sel.IsSelected(filters.AttrCategory, c) {
			sel = sel.Toggle(filters.AttrCategory, c)
		}
	}
	if in.priceFrom >= 0 || in.priceTo >= 0 {
		sel = sel.WithPrice(bound(in.priceFrom), bound(in.priceTo))
	}
	sel = sel.WithPage(in.page)

	return writeJSON(w, pathOutput{Selection: sel, Segments: sel.Segments(), Path: sel.Path(in.base)})
}

// bound maps the negative flag default to an open bound
func bound(v int64) *int64 {
	if v < 0 {
		return nil
	}
	return &v
}
