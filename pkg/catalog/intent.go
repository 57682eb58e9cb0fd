package catalog

import (
	"fmt"
	"strings"
)

type SortKey string

const (
	SortByName     SortKey = "name"
	SortByGrade    SortKey = "grade"
	SortByCategory SortKey = "category"
	SortByCreated  SortKey = "created"
)

type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

func (k SortKey) Valid() bool {
	switch k {
	case SortByName, SortByGrade, SortByCategory, SortByCreated:
		return true
	}
	return false
}

func (o SortOrder) Valid() bool {
	return o == Ascending || o == Descending
}

// Mode is the filter currently narrowing the raw list.
type Mode string

const (
	ModeNone     Mode = "none"
	ModeSearch   Mode = "search"
	ModeBarcode  Mode = "barcode"
	ModeCategory Mode = "category"
)

// Intent is everything the user controls about what is displayed.
type Intent struct {
	SearchQuery      string    `json:"search_query"`
	BarcodeQuery     string    `json:"barcode_query"`
	SelectedCategory string    `json:"selected_category"`
	SortBy           SortKey   `json:"sort_by"`
	SortOrder        SortOrder `json:"sort_order"`
	CurrentPage      int       `json:"current_page"`
	HasMore          bool      `json:"has_more"`
}

func DefaultIntent() Intent {
	return Intent{
		SortBy:      SortByName,
		SortOrder:   Ascending,
		CurrentPage: 1,
		HasMore:     true,
	}
}

// Mode resolves precedence: search > barcode > category > none.
// Whitespace-only queries count as empty.
func (in Intent) Mode() Mode {
	switch {
	case strings.TrimSpace(in.SearchQuery) != "":
		return ModeSearch
	case strings.TrimSpace(in.BarcodeQuery) != "":
		return ModeBarcode
	case in.SelectedCategory != "":
		return ModeCategory
	default:
		return ModeNone
	}
}

func (in Intent) Validate() error {
	if !in.SortBy.Valid() {
		return fmt.Errorf("%w: unknown sort key %q", ErrInvalidIntent, in.SortBy)
	}
	if !in.SortOrder.Valid() {
		return fmt.Errorf("%w: unknown sort order %q", ErrInvalidIntent, in.SortOrder)
	}
	return nil
}

// Change is a partial Intent update. Nil fields are left as they are.
type Change struct {
	SearchQuery      *string    `json:"search_query,omitempty"`
	BarcodeQuery     *string    `json:"barcode_query,omitempty"`
	SelectedCategory *string    `json:"selected_category,omitempty"`
	SortBy           *SortKey   `json:"sort_by,omitempty"`
	SortOrder        *SortOrder `json:"sort_order,omitempty"`
}

// apply returns the updated intent and whether the filtered list must be re-derived.
func (c Change) apply(in Intent) (Intent, bool) {
	refilter := false
	if c.SearchQuery != nil && *c.SearchQuery != in.SearchQuery {
		in.SearchQuery = *c.SearchQuery
		refilter = true
	}
	if c.BarcodeQuery != nil && *c.BarcodeQuery != in.BarcodeQuery {
		in.BarcodeQuery = *c.BarcodeQuery
		refilter = true
	}
	if c.SelectedCategory != nil && *c.SelectedCategory != in.SelectedCategory {
		in.SelectedCategory = *c.SelectedCategory
		refilter = true
	}
	if c.SortBy != nil {
		in.SortBy = *c.SortBy
	}
	if c.SortOrder != nil {
		in.SortOrder = *c.SortOrder
	}
	return in, refilter
}
