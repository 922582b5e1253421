// Package handler exposes the checkout API over HTTP. Business-rule
// rejections (bad coupon, unmatched postcode, declined card) return 200 with
// an error payload so clients can tell "try a different code" from "retry
// the request"; infrastructure failures return 500.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/feastbox/checkout-api/internal/domain/cart"
	"github.com/feastbox/checkout-api/internal/domain/catalog"
	"github.com/feastbox/checkout-api/internal/domain/discount"
	"github.com/feastbox/checkout-api/internal/domain/fulfillment"
	"github.com/feastbox/checkout-api/internal/domain/order"
)

// CartStore keeps draft carts between requests.
type CartStore interface {
	Save(ctx context.Context, session string, items []cart.LineItem) error
	Load(ctx context.Context, session string) ([]cart.LineItem, error)
	Delete(ctx context.Context, session string) error
}

// OrderReader serves the admin order views.
type OrderReader interface {
	GetByID(ctx context.Context, id string) (*order.Order, error)
	List(ctx context.Context, limit int) ([]order.Order, error)
}

// Handler holds the API dependencies and builds the router.
type Handler struct {
	catalog   catalog.Repository
	points    fulfillment.CollectionPointRepository
	checkout  *order.Service
	coupons   *discount.CouponValidator
	giftcards *discount.GiftCardValidator
	carts     CartStore
	orders    OrderReader
	admin     *APIKeyAuth
}

// NewHandler constructs a Handler with the required domain dependencies.
// carts may be nil when no cart store is configured; the cart endpoints then
// respond 404.
func NewHandler(
	catalogRepo catalog.Repository,
	points fulfillment.CollectionPointRepository,
	checkout *order.Service,
	coupons *discount.CouponValidator,
	giftcards *discount.GiftCardValidator,
	carts CartStore,
	orders OrderReader,
	admin *APIKeyAuth,
) *Handler {
	return &Handler{
		catalog:   catalogRepo,
		points:    points,
		checkout:  checkout,
		coupons:   coupons,
		giftcards: giftcards,
		carts:     carts,
		orders:    orders,
		admin:     admin,
	}
}

// Routes builds the API router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/meals", h.listMeals)
	r.Get("/collection-points", h.listCollectionPoints)

	r.Route("/checkout", func(r chi.Router) {
		r.Post("/quote", h.quote)
		r.Post("/intent", h.createIntent)
		r.Post("/order", h.placeOrder)
	})

	r.Post("/coupons/validate", h.validateCoupon)
	r.Post("/giftcards/validate", h.validateGiftCard)

	if h.carts != nil {
		r.Route("/cart/{session}", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Put("/", h.putCart)
			r.Delete("/", h.deleteCart)
		})
	}

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.admin.Middleware)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{id}", h.getOrder)
		r.Post("/orders", h.placeManualOrder)
	})

	return r
}

func (h *Handler) listMeals(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]catalogItemResponse, len(items))
	for i, it := range items {
		out[i] = catalogItemResponse{
			ID:       it.ID,
			Name:     it.Name,
			Price:    it.Price,
			Kind:     it.Kind,
			Category: it.Category,
			Contents: it.Contents,
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) listCollectionPoints(w http.ResponseWriter, r *http.Request) {
	points, err := h.points.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]collectionPointResponse, len(points))
	for i, p := range points {
		out[i] = collectionPointResponse{
			ID:            p.ID,
			Name:          p.Name,
			Address:       p.Address,
			CollectionFee: p.CollectionFee,
		}
	}
	respondJSON(w, http.StatusOK, out)
}
