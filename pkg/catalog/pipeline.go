package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"food-explorer/pkg/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultPageSize      = 20
	DefaultCategoryLimit = 50
)

// Batch is one page returned by FetchPage.
type Batch struct {
	Page     int              `json:"page"`
	Products []models.Product `json:"products"`
	HasMore  bool             `json:"has_more"`
}

// View is a consistent snapshot of the pipeline for display.
type View struct {
	Intent        Intent           `json:"intent"`
	Mode          Mode             `json:"mode"`
	Products      []models.Product `json:"products"`
	RawCount      int              `json:"raw_count"`
	FilteredCount int              `json:"filtered_count"`
	Loading       bool             `json:"loading"`
	CanLoadMore   bool             `json:"can_load_more"`
}

// Pipeline owns the raw product list and the user's intent, and derives the
// displayed list as raw -> filtered -> sorted. It is safe for concurrent use.
//
// Every derivation of the filtered list takes a new sequence number. A remote
// search that completes after a newer derivation started is dropped, so the
// most recently issued intent always wins. Page fetches are sequenced the same
// way, independently of filtering.
type Pipeline struct {
	src           Source
	log           *zap.Logger
	pageSize      int
	categoryLimit int

	mu         sync.Mutex
	intent     Intent
	raw        []models.Product
	filtered   []models.Product
	sorted     []models.Product
	categories []models.Category
	filterSeq  uint64
	pending    bool
	fetchSeq   uint64
	fetching   bool
}

type Option func(*Pipeline)

func WithPageSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

func WithCategoryLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.categoryLimit = n
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

func New(src Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		src:           src,
		log:           zap.NewNop(),
		pageSize:      DefaultPageSize,
		categoryLimit: DefaultCategoryLimit,
		intent:        DefaultIntent(),
		raw:           []models.Product{},
		filtered:      []models.Product{},
		sorted:        []models.Product{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Load fetches the first page and the category list concurrently.
func (p *Pipeline) Load(ctx context.Context) error {
	var g errgroup.Group
	g.Go(func() error {
		_, err := p.FetchPage(ctx, 1, false)
		return err
	})
	g.Go(func() error {
		_, err := p.LoadCategories(ctx)
		return err
	})
	return g.Wait()
}

// FetchPage requests one page and replaces the raw list with it, or appends
// to it. On failure the raw list is left untouched.
func (p *Pipeline) FetchPage(ctx context.Context, page int, appendBatch bool) (Batch, error) {
	if page < 1 {
		return Batch{}, fmt.Errorf("%w: page must be at least 1, got %d", ErrInvalidIntent, page)
	}
	p.mu.Lock()
	seq := p.beginFetchLocked()
	p.mu.Unlock()

	return p.runFetch(ctx, seq, page, appendBatch)
}

// LoadMore appends the next page. It only applies while browsing unfiltered,
// and reports false without fetching when a fetch is in flight or the last
// page came back short.
func (p *Pipeline) LoadMore(ctx context.Context) (Batch, bool, error) {
	p.mu.Lock()
	if p.intent.Mode() != ModeNone || p.fetching || !p.intent.HasMore {
		p.mu.Unlock()
		return Batch{}, false, nil
	}
	next := p.intent.CurrentPage + 1
	seq := p.beginFetchLocked()
	p.mu.Unlock()

	batch, err := p.runFetch(ctx, seq, next, true)
	return batch, err == nil, err
}

func (p *Pipeline) beginFetchLocked() uint64 {
	p.fetchSeq++
	p.fetching = true
	return p.fetchSeq
}

func (p *Pipeline) runFetch(ctx context.Context, seq uint64, page int, appendBatch bool) (Batch, error) {
	products, err := p.src.FetchPage(ctx, page, p.pageSize)

	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.fetchSeq {
		p.log.Debug("Dropping superseded page", zap.Int("page", page))
		return Batch{}, ErrSuperseded
	}
	p.fetching = false

	if err != nil {
		p.log.Warn("Failed to fetch products", zap.Int("page", page), zap.Error(err))
		return Batch{}, sourceError("fetch page", err)
	}
	if products == nil {
		products = []models.Product{}
	}

	if appendBatch {
		p.raw = append(slices.Clone(p.raw), products...)
	} else {
		p.raw = slices.Clone(products)
	}
	batch := Batch{Page: page, Products: slices.Clone(products), HasMore: len(products) == p.pageSize}
	p.intent.CurrentPage = page
	p.intent.HasMore = batch.HasMore

	// remote results stay in place until the user changes the search
	switch p.intent.Mode() {
	case ModeNone, ModeCategory:
		p.nextFilterSeqLocked()
		p.installLocked(FilterByCategory(p.raw, p.activeCategoryLocked()))
	}
	return batch, nil
}

// LoadCategories fetches the category list, keeping only the first entries.
func (p *Pipeline) LoadCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := p.src.Categories(ctx)
	if err != nil {
		p.log.Warn("Failed to fetch categories", zap.Error(err))
		return nil, sourceError("fetch categories", err)
	}
	if len(categories) > p.categoryLimit {
		categories = categories[:p.categoryLimit]
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.categories = slices.Clone(categories)
	return slices.Clone(categories), nil
}

// Update applies a change to the intent and re-derives the displayed list.
// Filter changes re-run the filter chosen by precedence; sort changes only
// re-sort the current filtered list. The intent and its derivation sequence
// are taken together, so concurrent updates resolve in the order they were
// committed.
func (p *Pipeline) Update(ctx context.Context, change Change) (View, error) {
	p.mu.Lock()
	next, refilter := change.apply(p.intent)
	if err := next.Validate(); err != nil {
		v := p.viewLocked()
		p.mu.Unlock()
		return v, err
	}
	p.intent = next
	if !refilter {
		p.sorted = Sort(p.filtered, p.intent.SortBy, p.intent.SortOrder)
		v := p.viewLocked()
		p.mu.Unlock()
		return v, nil
	}

	seq := p.nextFilterSeqLocked()
	var err error
	switch next.Mode() {
	case ModeSearch:
		p.pending = true
		p.mu.Unlock()
		_, err = p.searchByName(ctx, seq, strings.TrimSpace(next.SearchQuery))
	case ModeBarcode:
		p.pending = true
		p.mu.Unlock()
		_, err = p.searchByBarcode(ctx, seq, strings.TrimSpace(next.BarcodeQuery))
	default:
		p.installLocked(FilterByCategory(p.raw, p.activeCategoryLocked()))
		v := p.viewLocked()
		p.mu.Unlock()
		return v, nil
	}
	return p.View(), err
}

// ClearFilters drops search, barcode and category and shows the raw list.
func (p *Pipeline) ClearFilters(ctx context.Context) (View, error) {
	empty := ""
	return p.Update(ctx, Change{
		SearchQuery:      &empty,
		BarcodeQuery:     &empty,
		SelectedCategory: &empty,
	})
}

// SearchByName replaces the filtered list with the remote name search result.
// A blank query restores the raw list without a request. On failure the
// filtered list is emptied and the error returned.
func (p *Pipeline) SearchByName(ctx context.Context, query string) ([]models.Product, error) {
	query = strings.TrimSpace(query)

	p.mu.Lock()
	seq := p.nextFilterSeqLocked()
	if query == "" {
		p.installLocked(slices.Clone(p.raw))
		result := slices.Clone(p.filtered)
		p.mu.Unlock()
		return result, nil
	}
	p.pending = true
	p.mu.Unlock()

	return p.searchByName(ctx, seq, query)
}

func (p *Pipeline) searchByName(ctx context.Context, seq uint64, query string) ([]models.Product, error) {
	products, err := p.src.SearchByName(ctx, query, p.pageSize)
	if err != nil {
		products = nil
		err = sourceError("search products", err)
	}
	return p.finishRemote(seq, products, err)
}

// SearchByBarcode replaces the filtered list with the exact barcode match:
// one product when found, none otherwise. A blank code restores the raw list.
func (p *Pipeline) SearchByBarcode(ctx context.Context, code string) ([]models.Product, error) {
	code = strings.TrimSpace(code)

	p.mu.Lock()
	seq := p.nextFilterSeqLocked()
	if code == "" {
		p.installLocked(slices.Clone(p.raw))
		result := slices.Clone(p.filtered)
		p.mu.Unlock()
		return result, nil
	}
	p.pending = true
	p.mu.Unlock()

	return p.searchByBarcode(ctx, seq, code)
}

func (p *Pipeline) searchByBarcode(ctx context.Context, seq uint64, code string) ([]models.Product, error) {
	product, err := p.src.LookupBarcode(ctx, code)
	var products []models.Product
	switch {
	case errors.Is(err, models.ErrProductNotFound):
		err = nil
	case err != nil:
		err = sourceError("lookup barcode", err)
	case product != nil:
		products = []models.Product{*product}
	}
	return p.finishRemote(seq, products, err)
}

// FilterByCategory narrows the in-memory raw list. It never issues a request.
func (p *Pipeline) FilterByCategory(category string) []models.Product {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextFilterSeqLocked()
	p.installLocked(FilterByCategory(p.raw, category))
	return slices.Clone(p.filtered)
}

func (p *Pipeline) finishRemote(seq uint64, products []models.Product, err error) ([]models.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if seq != p.filterSeq {
		p.log.Debug("Dropping superseded filter result", zap.Uint64("seq", seq), zap.Uint64("latest", p.filterSeq))
		return nil, ErrSuperseded
	}
	p.pending = false
	if err != nil {
		p.log.Warn("Catalog filter request failed", zap.Error(err))
	}
	p.installLocked(products)
	return slices.Clone(p.filtered), err
}

func (p *Pipeline) nextFilterSeqLocked() uint64 {
	p.filterSeq++
	p.pending = false
	return p.filterSeq
}

// installLocked replaces filtered and sorted together.
func (p *Pipeline) installLocked(filtered []models.Product) {
	if filtered == nil {
		filtered = []models.Product{}
	}
	p.filtered = filtered
	p.sorted = Sort(filtered, p.intent.SortBy, p.intent.SortOrder)
}

func (p *Pipeline) activeCategoryLocked() string {
	if p.intent.Mode() == ModeCategory {
		return p.intent.SelectedCategory
	}
	return ""
}

func (p *Pipeline) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

func (p *Pipeline) viewLocked() View {
	mode := p.intent.Mode()
	return View{
		Intent:        p.intent,
		Mode:          mode,
		Products:      slices.Clone(p.sorted),
		RawCount:      len(p.raw),
		FilteredCount: len(p.filtered),
		Loading:       p.fetching || p.pending,
		CanLoadMore:   mode == ModeNone && p.intent.HasMore && !p.fetching,
	}
}

func (p *Pipeline) Intent() Intent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.intent
}

func (p *Pipeline) Raw() []models.Product {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.raw)
}

func (p *Pipeline) Filtered() []models.Product {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.filtered)
}

func (p *Pipeline) Sorted() []models.Product {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.sorted)
}

func (p *Pipeline) Categories() []models.Category {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.categories)
}

// Find returns a product already known to the pipeline, looking at the
// displayed list first and then the raw list.
func (p *Pipeline) Find(code string) (models.Product, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, list := range [][]models.Product{p.sorted, p.raw} {
		for _, product := range list {
			if product.Code == code {
				return product, true
			}
		}
	}
	return models.Product{}, false
}
