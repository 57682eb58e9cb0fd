package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"food-explorer/pkg/api"
	"food-explorer/pkg/cart"
	"food-explorer/pkg/catalog"
	"food-explorer/pkg/models"
	"food-explorer/pkg/pagecapture"

	scalargo "github.com/bdpiprava/scalar-go"
	"go.uber.org/zap"
)

type pageCapturer interface {
	Capture(ctx context.Context, code string) ([]byte, error)
	ContentType() string
}

type app struct {
	log      *zap.Logger
	source   catalog.Source
	sessions *sessionRegistry
	capturer pageCapturer
}

func newApp(log *zap.Logger, src catalog.Source, carts *cart.Repository, capturer pageCapturer, opts []catalog.Option, sessionTTL time.Duration) *app {
	return &app{
		log:      log,
		source:   src,
		sessions: newSessionRegistry(src, opts, carts, sessionTTL, log),
		capturer: capturer,
	}
}

func (a *app) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", a.docsHandler)

	mux.HandleFunc("GET /catalog", a.withSession(a.getCatalog))
	mux.HandleFunc("PATCH /catalog/intent", a.withSession(a.updateIntent))
	mux.HandleFunc("POST /catalog/clear", a.withSession(a.clearFilters))
	mux.HandleFunc("POST /catalog/more", a.withSession(a.loadMore))
	mux.HandleFunc("POST /catalog/reload", a.withSession(a.reload))
	mux.HandleFunc("GET /catalog/categories", a.withSession(a.categories))

	mux.HandleFunc("GET /products/{code}", a.productHandler)
	mux.HandleFunc("GET /products/{code}/snapshot", a.snapshotHandler)

	mux.HandleFunc("GET /cart", a.withSession(a.getCart))
	mux.HandleFunc("POST /cart/items", a.withSession(a.addCartItem))
	mux.HandleFunc("PUT /cart/items/{code}", a.withSession(a.updateCartItem))
	mux.HandleFunc("DELETE /cart/items/{code}", a.withSession(a.removeCartItem))
	mux.HandleFunc("DELETE /cart", a.withSession(a.clearCart))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		api.WriteNotFound(w, fmt.Sprintf("No route for %s %s", r.Method, r.URL.Path), r.URL.Path)
	})
	return mux
}

func (a *app) docsHandler(w http.ResponseWriter, r *http.Request) {
	html, err := scalargo.NewV2(
		scalargo.WithSpecDir("./"),
		scalargo.WithMetaDataOpts(
			scalargo.WithTitle("Food Product Explorer API"),
		),
	)
	if err != nil {
		api.WriteInternalServerError(w, err, r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, s *session)

// withSession resolves the caller's session and echoes its ID back.
// A new session loads the first page and the categories before the handler runs.
func (a *app) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, created, err := a.sessions.resolve(r.Context(), r.Header.Get(sessionHeader))
		if err != nil {
			if errors.Is(err, errInvalidSession) {
				api.WriteBadRequest(w, err.Error(), r.URL.Path)
				return
			}
			api.WriteInternalServerError(w, err, r.URL.Path)
			return
		}
		w.Header().Set(sessionHeader, s.id)

		if created {
			if err := s.catalog.Load(r.Context()); err != nil {
				a.log.Warn("Initial catalog load failed", zap.String("session", s.id), zap.Error(err))
			}
		}
		h(w, r, s)
	}
}

func (a *app) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	if err := api.WriteJSON(w, status, v); err != nil {
		a.log.Warn("Error encoding response", zap.String("path", r.URL.Path), zap.Error(err))
	}
}

// writeFailure maps pipeline and source errors to problem responses.
func (a *app) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, catalog.ErrInvalidIntent), errors.Is(err, cart.ErrMissingCode), errors.Is(err, pagecapture.ErrInvalidCode):
		api.WriteBadRequest(w, err.Error(), r.URL.Path)
	case errors.Is(err, models.ErrProductNotFound):
		api.WriteNotFound(w, "Product not found", r.URL.Path)
	case errors.Is(err, catalog.ErrSuperseded):
		api.WriteConflict(w, err.Error(), r.URL.Path)
	case isTimeout(err):
		api.WriteGatewayTimeout(w, err, r.URL.Path)
	default:
		a.log.Warn("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
		api.WriteBadGateway(w, err, r.URL.Path)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (a *app) getCatalog(w http.ResponseWriter, r *http.Request, s *session) {
	a.writeJSON(w, r, http.StatusOK, s.catalog.View())
}

func (a *app) updateIntent(w http.ResponseWriter, r *http.Request, s *session) {
	var change catalog.Change
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&change); err != nil {
		api.WriteBadRequest(w, "Invalid JSON body. Expected a partial catalog intent.", r.URL.Path)
		return
	}

	view, err := s.catalog.Update(r.Context(), change)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, view)
}

func (a *app) clearFilters(w http.ResponseWriter, r *http.Request, s *session) {
	view, err := s.catalog.ClearFilters(r.Context())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, view)
}

type loadMoreResponse struct {
	Loaded bool         `json:"loaded"`
	Added  int          `json:"added"`
	View   catalog.View `json:"view"`
}

func (a *app) loadMore(w http.ResponseWriter, r *http.Request, s *session) {
	batch, loaded, err := s.catalog.LoadMore(r.Context())
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, loadMoreResponse{
		Loaded: loaded,
		Added:  len(batch.Products),
		View:   s.catalog.View(),
	})
}

func (a *app) reload(w http.ResponseWriter, r *http.Request, s *session) {
	if err := s.catalog.Load(r.Context()); err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, s.catalog.View())
}

func (a *app) categories(w http.ResponseWriter, r *http.Request, s *session) {
	categories := s.catalog.Categories()
	if len(categories) == 0 {
		var err error
		if categories, err = s.catalog.LoadCategories(r.Context()); err != nil {
			a.writeFailure(w, r, err)
			return
		}
	}
	a.writeJSON(w, r, http.StatusOK, categories)
}

// productDetail is a product plus the badges the detail view shows.
type productDetail struct {
	models.Product
	DisplayName string           `json:"display_name"`
	GradeColor  string           `json:"grade_color"`
	ScoreBand   models.ScoreBand `json:"score_band"`
	Created     string           `json:"created"`
	Image       string           `json:"image"`
}

func newProductDetail(p models.Product) productDetail {
	return productDetail{
		Product:     p,
		DisplayName: p.DisplayName(),
		GradeColor:  models.GradeColor(p.NutritionGrades),
		ScoreBand:   models.BandFor(p.NutritionScoreFR),
		Created:     models.FormatCreated(p.CreatedT),
		Image:       p.ImageURLOrPlaceholder(),
	}
}

func (a *app) productHandler(w http.ResponseWriter, r *http.Request) {
	rawID := r.PathValue("code")
	code := models.NormalizeBarcode(rawID)
	if code == "" {
		api.WriteBadRequest(w, fmt.Sprintf("Invalid product ID: %s. Must contain at least one digit.", rawID), r.URL.Path)
		return
	}

	product, err := a.source.LookupBarcode(r.Context(), code)
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusOK, newProductDetail(*product))
}

func (a *app) snapshotHandler(w http.ResponseWriter, r *http.Request) {
	img, err := a.capturer.Capture(r.Context(), r.PathValue("code"))
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	w.Header().Set("Content-Type", a.capturer.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (a *app) getCart(w http.ResponseWriter, r *http.Request, s *session) {
	a.writeJSON(w, r, http.StatusOK, s.cart.Snapshot())
}

type addItemRequest struct {
	Code string `json:"code"`
}

type addItemResponse struct {
	Line  cart.Line `json:"line"`
	Total int       `json:"total"`
}

func (a *app) addCartItem(w http.ResponseWriter, r *http.Request, s *session) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "Invalid JSON body. Expected {\"code\": \"...\"}.", r.URL.Path)
		return
	}

	var product models.Product
	if code := strings.TrimSpace(req.Code); code != "" {
		known, ok := s.catalog.Find(code)
		if !ok {
			found, err := a.source.LookupBarcode(r.Context(), code)
			if err != nil {
				a.writeFailure(w, r, err)
				return
			}
			known = *found
		}
		product = known
		if product.Code == "" {
			product.Code = code
		}
	}

	var resp addItemResponse
	err := a.sessions.updateCart(r.Context(), s, func(c *cart.Store) (bool, error) {
		line, err := c.Add(product)
		if err != nil {
			return false, err
		}
		resp = addItemResponse{Line: line, Total: c.Total()}
		return true, nil
	})
	if err != nil {
		a.writeFailure(w, r, err)
		return
	}
	a.writeJSON(w, r, http.StatusCreated, resp)
}

type updateItemRequest struct {
	Quantity *int `json:"quantity"`
}

func (a *app) updateCartItem(w http.ResponseWriter, r *http.Request, s *session) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		api.WriteBadRequest(w, "Invalid JSON body. Expected {\"quantity\": n}.", r.URL.Path)
		return
	}

	var snap cart.Snapshot
	a.sessions.updateCart(r.Context(), s, func(c *cart.Store) (bool, error) {
		changed := c.UpdateQuantity(r.PathValue("code"), *req.Quantity)
		snap = c.Snapshot()
		return changed, nil
	})
	a.writeJSON(w, r, http.StatusOK, snap)
}

func (a *app) removeCartItem(w http.ResponseWriter, r *http.Request, s *session) {
	var snap cart.Snapshot
	a.sessions.updateCart(r.Context(), s, func(c *cart.Store) (bool, error) {
		changed := c.Remove(r.PathValue("code"))
		snap = c.Snapshot()
		return changed, nil
	})
	a.writeJSON(w, r, http.StatusOK, snap)
}

func (a *app) clearCart(w http.ResponseWriter, r *http.Request, s *session) {
	var snap cart.Snapshot
	a.sessions.updateCart(r.Context(), s, func(c *cart.Store) (bool, error) {
		c.Clear()
		snap = c.Snapshot()
		return true, nil
	})
	a.writeJSON(w, r, http.StatusOK, snap)
}
