package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"

	"github.com/feastbox/checkout-api/internal/cartstore"
	"github.com/feastbox/checkout-api/internal/domain/cart"
)

type cartResponse struct {
	Session string               `json:"session"`
	Items   []quotedItemResponse `json:"items"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")

	items, err := h.carts.Load(r.Context(), session)
	if err != nil {
		if errors.Is(err, cartstore.ErrNotFound) {
			respondJSON(w, http.StatusOK, errorResponse{Error: "cart not found"})
			return
		}
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(session, items))
}

// putCart replaces the draft cart with the posted items. Items are stored at
// their current catalog prices; the authoritative price is still computed at
// checkout.
func (h *Handler) putCart(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")

	var req struct {
		Items []itemRequest `json:"items"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	ids := make([]string, len(req.Items))
	for i, it := range req.Items {
		ids[i] = it.ItemID
	}
	fetched, err := h.catalog.GetByIDs(r.Context(), ids)
	if err != nil {
		respondError(w, r, err)
		return
	}
	byID := make(map[string]int, len(fetched))
	for i, it := range fetched {
		byID[it.ID] = i
	}

	c := cart.New()
	for _, it := range req.Items {
		idx, ok := byID[it.ItemID]
		if !ok {
			respondJSON(w, http.StatusOK, errorResponse{Error: "item " + it.ItemID + " not found"})
			return
		}
		item := fetched[idx]
		c.AddItem(cart.LineItem{
			ID:        item.ID,
			Name:      item.Name,
			UnitPrice: item.Price,
			Quantity:  it.Quantity,
			Kind:      cart.Kind(item.Kind),
			Contents:  item.Contents,
		})
	}

	items := c.Items()
	if err := h.carts.Save(r.Context(), session, items); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toCartResponse(session, items))
}

func (h *Handler) deleteCart(w http.ResponseWriter, r *http.Request) {
	session := chi.URLParam(r, "session")
	if err := h.carts.Delete(r.Context(), session); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func toCartResponse(session string, items []cart.LineItem) cartResponse {
	resp := cartResponse{Session: session}
	for _, it := range items {
		resp.Items = append(resp.Items, quotedItemResponse{
			ItemID:    it.ID,
			Name:      it.Name,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
		})
	}
	return resp
}
