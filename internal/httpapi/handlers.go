package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/blindbox-bot/internal/common"
)

type handlers struct {
	deps Deps
}

func (h *handlers) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.DB.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	cats := h.deps.Catalog.List()
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{
			ID:        c.ID,
			Type:      string(c.Type),
			Items:     len(c.Items),
			Slots:     c.SlotTotal(),
			BasePrice: h.deps.Pricing.BasePrice(c.ID),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

// categoryPrice — GET /api/v1/categories/{id}/price?group=&item=
// item принимает ID файла или имя приза.
func (h *handlers) categoryPrice(w http.ResponseWriter, r *http.Request) {
	categoryID := chi.URLParam(r, "id")
	cat, ok := h.deps.Catalog.Get(categoryID)
	if !ok {
		respondError(w, http.StatusNotFound, "category not found")
		return
	}

	groupID := r.URL.Query().Get("group")
	if groupID == "" {
		groupID = common.PrivateGroupID
	}
	itemID := r.URL.Query().Get("item")
	if itemID != "" {
		if _, ok := cat.Items[itemID]; !ok {
			item, found := cat.ItemByName(itemID)
			if !found {
				respondError(w, http.StatusNotFound, "item not found")
				return
			}
			itemID = item.ID
		}
	}

	q, err := h.deps.Pricing.Quote(r.Context(), groupID, cat.ID, itemID)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, priceResponse{
		CategoryID: cat.ID,
		ItemID:     itemID,
		GroupID:    groupID,
		Price:      q.Price,
		BasePrice:  q.Base,
		Market:     q.Market.String(),
		Scarcity:   q.Scarcity.String(),
		Blended:    q.Blended,
		Detail:     q.Detail,
	})
}

func (h *handlers) groupMarket(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "group")
	listings, err := h.deps.Market.Listings(r.Context(), groupID, r.URL.Query().Get("category"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	out := make([]listingResponse, 0, len(listings))
	for _, l := range listings {
		out = append(out, listingResponse{
			ID:         l.ID,
			CategoryID: l.CategoryID,
			ItemID:     l.ItemID,
			ItemName:   l.ItemName,
			Price:      l.Price,
			Quantity:   l.Quantity,
			Seller:     l.SellerUserID,
			IsSystem:   l.IsSystem,
			CreatedAt:  l.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *handlers) userWallet(w http.ResponseWriter, r *http.Request) {
	groupID, userID := chi.URLParam(r, "group"), chi.URLParam(r, "user")
	wlt, err := h.deps.Wallets.Get(r.Context(), groupID, userID)
	if errors.Is(err, common.ErrNotRegistered) {
		respondError(w, http.StatusNotFound, "wallet not found")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, walletResponse{
		GroupID:      wlt.GroupID,
		UserID:       wlt.UserID,
		Balance:      wlt.Balance,
		RegisteredAt: wlt.RegisteredAt,
	})
}

func (h *handlers) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.WithError(err).WithField("path", r.URL.Path).Error("Ошибка HTTP API")
	respondError(w, http.StatusInternalServerError, "internal error")
}
