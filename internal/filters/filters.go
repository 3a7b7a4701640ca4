// Package filters encodes and decodes catalogue filter state as URL path
// segments of the form "attribute-value".
package filters

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const (
	// Separator splits a segment into attribute slug and value at its first occurrence
	Separator = "-"
	// PriceSeparator splits a price range value into from and to
	PriceSeparator = "_"
	// PathSeparator joins segments into a path
	PathSeparator = "/"
)

// Reserved attribute slugs
const (
	AttrRubric   = "rubric"
	AttrBrand    = "brand"
	AttrCategory = "category"
	AttrPrice    = "price"
	AttrPage     = "page"
	AttrLimit    = "limit"
	AttrSortBy   = "sortBy"
	AttrSortDir  = "sortDir"
)

// Sort fields and directions
const (
	SortPrice     = "price"
	SortName      = "name"
	SortCreatedAt = "createdAt"
	SortPriority  = "priority"

	SortAsc  = "asc"
	SortDesc = "desc"
)

var (
	// ErrInvalidSegment is returned for malformed filter segments
	ErrInvalidSegment = errors.New("invalid filter segment")
)

// IsReserved reports whether attr is handled by the codec itself rather than an attribute filter
func IsReserved(attr string) bool {
	switch attr {
	case AttrRubric, AttrBrand, AttrCategory, AttrPrice, AttrPage, AttrLimit, AttrSortBy, AttrSortDir:
		return true
	}
	return false
}

// IsSortField reports whether field is a supported sort field
func IsSortField(field string) bool {
	switch field {
	case SortPrice, SortName, SortCreatedAt, SortPriority:
		return true
	}
	return false
}

// ParseOptions controls defaults applied while parsing
type ParseOptions struct {
	DefaultLimit   int
	MaxLimit       int
	DefaultSortBy  string
	DefaultSortDir string
}

// DefaultParseOptions returns the storefront defaults
func DefaultParseOptions() ParseOptions {
	return ParseOptions{
		DefaultLimit:   20,
		MaxLimit:       100,
		DefaultSortBy:  SortPriority,
		DefaultSortDir: SortDesc,
	}
}

func (o ParseOptions) normalize() ParseOptions {
	def := DefaultParseOptions()
	if o.MaxLimit <= 0 {
		o.MaxLimit = def.MaxLimit
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = def.DefaultLimit
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	if !IsSortField(o.DefaultSortBy) {
		o.DefaultSortBy = def.DefaultSortBy
	}
	if o.DefaultSortDir != SortAsc && o.DefaultSortDir != SortDesc {
		o.DefaultSortDir = def.DefaultSortDir
	}
	return o
}

// Segment is a single "attribute-value" pair
type Segment struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

func (s Segment) String() string {
	return s.Attribute + Separator + s.Value
}

// ParseSegment splits raw at the first separator. Both sides must be non-empty.
func ParseSegment(raw string) (Segment, error) {
	idx := strings.Index(raw, Separator)
	if idx <= 0 || idx == len(raw)-len(Separator) {
		return Segment{}, fmt.Errorf("%w: %q", ErrInvalidSegment, raw)
	}
	return Segment{Attribute: raw[:idx], Value: raw[idx+len(Separator):]}, nil
}

// OptionSegment returns the segment stored in a product's option slugs for attr/option
func OptionSegment(attr, option string) string {
	return attr + Separator + option
}

// AttributeSelection holds the selected option slugs of one attribute, sorted
type AttributeSelection struct {
	Attribute string   `json:"attribute"`
	Options   []string `json:"options"`
}

// Selection is the parsed filter state of a catalogue request.
// Attribute selections, brands and categories are kept sorted so that equal
// selections serialize to equal segment lists.
type Selection struct {
	Rubric     string               `json:"rubric,omitempty"`
	Options    []AttributeSelection `json:"options,omitempty"`
	Brands     []string             `json:"brands,omitempty"`
	Categories []string             `json:"categories,omitempty"`
	PriceFrom  *int64               `json:"priceFrom,omitempty"`
	PriceTo    *int64               `json:"priceTo,omitempty"`
	Page       int                  `json:"page"`
	Limit      int                  `json:"limit"`
	SortBy     string               `json:"sortBy"`
	SortDir    string               `json:"sortDir"`

	opts ParseOptions
}

// New returns an empty selection with defaults from opts
func New(opts ParseOptions) *Selection {
	opts = opts.normalize()
	return &Selection{
		Page:    1,
		Limit:   opts.DefaultLimit,
		SortBy:  opts.DefaultSortBy,
		SortDir: opts.DefaultSortDir,
		opts:    opts,
	}
}

// Parse decodes URL path segments into a selection.
// Empty segments are skipped and duplicate segments collapse.
func Parse(segments []string, opts ParseOptions) (*Selection, error) {
	s := New(opts)
	for _, raw := range segments {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		unescaped, err := url.PathUnescape(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSegment, raw)
		}
		seg, err := ParseSegment(unescaped)
		if err != nil {
			return nil, err
		}
		if err := s.apply(seg); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ParsePath splits a "/"-joined path and parses it
func ParsePath(path string, opts ParseOptions) (*Selection, error) {
	return Parse(strings.Split(path, PathSeparator), opts)
}

func (s *Selection) apply(seg Segment) error {
	switch seg.Attribute {
	case AttrRubric:
		s.Rubric = seg.Value
	case AttrBrand:
		s.Brands = insertSorted(s.Brands, seg.Value)
	case AttrCategory:
		s.Categories = insertSorted(s.Categories, seg.Value)
	case AttrPrice:
		from, to, err := ParsePriceRange(seg.Value)
		if err != nil {
			return err
		}
		s.PriceFrom, s.PriceTo = from, to
	case AttrPage:
		n, err := positiveInt(seg)
		if err != nil {
			return err
		}
		s.Page = n
	case AttrLimit:
		n, err := positiveInt(seg)
		if err != nil {
			return err
		}
		if n > s.opts.MaxLimit {
			n = s.opts.MaxLimit
		}
		s.Limit = n
	case AttrSortBy:
		if IsSortField(seg.Value) {
			s.SortBy = seg.Value
		}
	case AttrSortDir:
		if seg.Value == SortAsc || seg.Value == SortDesc {
			s.SortDir = seg.Value
		}
	default:
		s.addOption(seg.Attribute, seg.Value)
	}
	return nil
}

func positiveInt(seg Segment) (int, error) {
	n, err := strconv.Atoi(seg.Value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidSegment, seg.Attribute)
	}
	return n, nil
}

// ParsePriceRange parses "from_to" where either side may be empty.
// A reversed range is swapped.
func ParsePriceRange(value string) (*int64, *int64, error) {
	parts := strings.Split(value, PriceSeparator)
	if len(parts) != 2 || (parts[0] == "" && parts[1] == "") {
		return nil, nil, fmt.Errorf("%w: price %q", ErrInvalidSegment, value)
	}
	var bounds [2]*int64
	for i, part := range parts {
		if part == "" {
			continue
		}
		n, err := strconv.ParseInt(part, 10, 64)
		if err != nil || n < 0 {
			return nil, nil, fmt.Errorf("%w: price %q", ErrInvalidSegment, value)
		}
		bounds[i] = &n
	}
	from, to := bounds[0], bounds[1]
	if from != nil && to != nil && *from > *to {
		from, to = to, from
	}
	return from, to, nil
}

// FormatPriceRange is the inverse of ParsePriceRange
func FormatPriceRange(from, to *int64) string {
	var b strings.Builder
	if from != nil {
		b.WriteString(strconv.FormatInt(*from, 10))
	}
	b.WriteString(PriceSeparator)
	if to != nil {
		b.WriteString(strconv.FormatInt(*to, 10))
	}
	return b.String()
}

func insertSorted(values []string, v string) []string {
	i := sort.SearchStrings(values, v)
	if i < len(values) && values[i] == v {
		return values
	}
	values = append(values, "")
	copy(values[i+1:], values[i:])
	values[i] = v
	return values
}

func removeValue(values []string, v string) []string {
	out := values[:0:0]
	for _, existing := range values {
		if existing != v {
			out = append(out, existing)
		}
	}
	return out
}

func (s *Selection) attributeIndex(attr string) (int, bool) {
	i := sort.Search(len(s.Options), func(i int) bool { return s.Options[i].Attribute >= attr })
	return i, i < len(s.Options) && s.Options[i].Attribute == attr
}

func (s *Selection) addOption(attr, value string) {
	i, found := s.attributeIndex(attr)
	if found {
		s.Options[i].Options = insertSorted(s.Options[i].Options, value)
		return
	}
	s.Options = append(s.Options, AttributeSelection{})
	copy(s.Options[i+1:], s.Options[i:])
	s.Options[i] = AttributeSelection{Attribute: attr, Options: []string{value}}
}

func (s *Selection) removeOption(attr, value string) {
	i, found := s.attributeIndex(attr)
	if !found {
		return
	}
	s.Options[i].Options = removeValue(s.Options[i].Options, value)
	if len(s.Options[i].Options) == 0 {
		s.Options = append(s.Options[:i], s.Options[i+1:]...)
	}
}

// Segments returns the canonical serialization: rubric, attribute options by
// attribute slug, brands, categories, price, then sort, limit and page when
// they differ from the defaults.
func (s *Selection) Segments() []string {
	segments := make([]string, 0, 4+s.SelectedCount())
	if s.Rubric != "" {
		segments = append(segments, AttrRubric+Separator+s.Rubric)
	}
	for _, seg := range s.Selected() {
		segments = append(segments, seg.String())
	}
	if s.SortBy != s.opts.DefaultSortBy {
		segments = append(segments, AttrSortBy+Separator+s.SortBy)
	}
	if s.SortDir != s.opts.DefaultSortDir {
		segments = append(segments, AttrSortDir+Separator+s.SortDir)
	}
	if s.Limit != s.opts.DefaultLimit {
		segments = append(segments, AttrLimit+Separator+strconv.Itoa(s.Limit))
	}
	if s.Page > 1 {
		segments = append(segments, AttrPage+Separator+strconv.Itoa(s.Page))
	}
	return segments
}

// Selected returns the active filters (options, brands, categories, price) in canonical order
func (s *Selection) Selected() []Segment {
	var out []Segment
	for _, a := range s.Options {
		for _, o := range a.Options {
			out = append(out, Segment{Attribute: a.Attribute, Value: o})
		}
	}
	for _, b := range s.Brands {
		out = append(out, Segment{Attribute: AttrBrand, Value: b})
	}
	for _, c := range s.Categories {
		out = append(out, Segment{Attribute: AttrCategory, Value: c})
	}
	if s.HasPrice() {
		out = append(out, Segment{Attribute: AttrPrice, Value: FormatPriceRange(s.PriceFrom, s.PriceTo)})
	}
	return out
}

// Path joins the canonical segments under prefix
func (s *Selection) Path(prefix string) string {
	prefix = strings.TrimRight(prefix, PathSeparator)
	segments := s.Segments()
	if len(segments) == 0 {
		if prefix == "" {
			return PathSeparator
		}
		return prefix
	}
	escaped := make([]string, len(segments))
	for i, seg := range segments {
		escaped[i] = url.PathEscape(seg)
	}
	return prefix + PathSeparator + strings.Join(escaped, PathSeparator)
}

// Clone returns a deep copy
func (s *Selection) Clone() *Selection {
	c := *s
	c.Options = nil
	for _, a := range s.Options {
		c.Options = append(c.Options, AttributeSelection{Attribute: a.Attribute, Options: append([]string(nil), a.Options...)})
	}
	c.Brands = append([]string(nil), s.Brands...)
	c.Categories = append([]string(nil), s.Categories...)
	if s.PriceFrom != nil {
		v := *s.PriceFrom
		c.PriceFrom = &v
	}
	if s.PriceTo != nil {
		v := *s.PriceTo
		c.PriceTo = &v
	}
	return &c
}

// IsSelected reports whether value is active for attr
func (s *Selection) IsSelected(attr, value string) bool {
	switch attr {
	case AttrBrand:
		return contains(s.Brands, value)
	case AttrCategory:
		return contains(s.Categories, value)
	case AttrPrice:
		return s.HasPrice() && FormatPriceRange(s.PriceFrom, s.PriceTo) == value
	}
	return contains(s.OptionsOf(attr), value)
}

// IsAttributeSelected reports whether any value of attr is active
func (s *Selection) IsAttributeSelected(attr string) bool {
	switch attr {
	case AttrBrand:
		return len(s.Brands) > 0
	case AttrCategory:
		return len(s.Categories) > 0
	case AttrPrice:
		return s.HasPrice()
	}
	_, found := s.attributeIndex(attr)
	return found
}

// OptionsOf returns the selected option slugs of attr
func (s *Selection) OptionsOf(attr string) []string {
	if i, found := s.attributeIndex(attr); found {
		return s.Options[i].Options
	}
	return nil
}

// HasPrice reports whether a price bound is set
func (s *Selection) HasPrice() bool {
	return s.PriceFrom != nil || s.PriceTo != nil
}

// HasExplicitSort reports whether the sort differs from the defaults
func (s *Selection) HasExplicitSort() bool {
	return s.SortBy != s.opts.DefaultSortBy || s.SortDir != s.opts.DefaultSortDir
}

// SelectedCount is the number of active filter values; a price range counts once
func (s *Selection) SelectedCount() int {
	n := len(s.Brands) + len(s.Categories)
	for _, a := range s.Options {
		n += len(a.Options)
	}
	if s.HasPrice() {
		n++
	}
	return n
}

// Offset is the number of rows to skip for the current page
func (s *Selection) Offset() int {
	return (s.Page - 1) * s.Limit
}

// Toggle adds value to attr when absent and removes it otherwise.
// For price the value replaces the current range.
func (s *Selection) Toggle(attr, value string) *Selection {
	if s.IsSelected(attr, value) {
		return s.Without(attr, value)
	}
	c := s.Clone()
	c.Page = 1
	if err := c.apply(Segment{Attribute: attr, Value: value}); err != nil {
		return s.Clone()
	}
	return c
}

// Without returns a copy with value of attr removed
func (s *Selection) Without(attr, value string) *Selection {
	c := s.Clone()
	c.Page = 1
	switch attr {
	case AttrBrand:
		c.Brands = removeValue(c.Brands, value)
	case AttrCategory:
		c.Categories = removeValue(c.Categories, value)
	case AttrPrice:
		c.PriceFrom, c.PriceTo = nil, nil
	default:
		c.removeOption(attr, value)
	}
	return c
}

// WithoutAttribute returns a copy with every value of attr removed
func (s *Selection) WithoutAttribute(attr string) *Selection {
	c := s.Clone()
	c.Page = 1
	switch attr {
	case AttrBrand:
		c.Brands = nil
	case AttrCategory:
		c.Categories = nil
	case AttrPrice:
		c.PriceFrom, c.PriceTo = nil, nil
	default:
		if i, found := c.attributeIndex(attr); found {
			c.Options = append(c.Options[:i], c.Options[i+1:]...)
		}
	}
	return c
}

// WithPrice returns a copy with the price range replaced
func (s *Selection) WithPrice(from, to *int64) *Selection {
	c := s.Clone()
	c.Page = 1
	c.PriceFrom, c.PriceTo = from, to
	if from != nil && to != nil && *from > *to {
		c.PriceFrom, c.PriceTo = to, from
	}
	return c
}

// ClearAll drops every filter but keeps rubric, sort and limit
func (s *Selection) ClearAll() *Selection {
	c := New(s.opts)
	c.Rubric = s.Rubric
	c.SortBy = s.SortBy
	c.SortDir = s.SortDir
	c.Limit = s.Limit
	return c
}

// WithPage returns a copy on page n (at least 1)
func (s *Selection) WithPage(n int) *Selection {
	c := s.Clone()
	if n < 1 {
		n = 1
	}
	c.Page = n
	return c
}

func contains(values []string, v string) bool {
	i := sort.SearchStrings(values, v)
	return i < len(values) && values[i] == v
}
