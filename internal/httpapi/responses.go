package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// errorResponse — тело ответа с ошибкой.
type errorResponse struct {
	Error string `json:"error"`
}

type categoryResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Items     int    `json:"items"`
	Slots     int    `json:"slots"`
	BasePrice int64  `json:"base_price"`
}

type priceResponse struct {
	CategoryID string `json:"category_id"`
	ItemID     string `json:"item_id,omitempty"`
	GroupID    string `json:"group_id"`
	Price      int64  `json:"price"`
	BasePrice  int64  `json:"base_price"`
	Market     string `json:"market_multiplier"`
	Scarcity   string `json:"scarcity_multiplier"`
	Blended    bool   `json:"blended"`
	Detail     string `json:"detail"`
}

type listingResponse struct {
	ID         int64     `json:"id"`
	CategoryID string    `json:"category_id"`
	ItemID     string    `json:"item_id"`
	ItemName   string    `json:"item_name"`
	Price      int64     `json:"price"`
	Quantity   int       `json:"quantity"`
	Seller     string    `json:"seller"`
	IsSystem   bool      `json:"is_system"`
	CreatedAt  time.Time `json:"created_at"`
}

type walletResponse struct {
	GroupID      string    `json:"group_id"`
	UserID       string    `json:"user_id"`
	Balance      int64     `json:"balance"`
	RegisteredAt time.Time `json:"registered_at"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.WithError(err).Error("Не удалось записать JSON-ответ")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
