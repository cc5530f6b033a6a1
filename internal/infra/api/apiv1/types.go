package apiv1

import (
	"time"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/usecase"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type AccessResponse struct {
	ContentID    string `json:"content_id"`
	SeasonNumber *int   `json:"season_number,omitempty"`
	HasAccess    bool   `json:"has_access"`
}

type PriceResponse struct {
	ContentID    string `json:"content_id"`
	SeasonNumber *int   `json:"season_number,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
	Free         bool   `json:"free"`
}

type PurchasedSeasonsResponse struct {
	ContentID string `json:"content_id"`
	Seasons   []int  `json:"seasons"`
}

type CheckoutRequest struct {
	ContentID    string `json:"content_id"`
	SeasonNumber *int   `json:"season_number,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
}

type CheckoutResponse struct {
	OrderID     string            `json:"order_id"`
	CheckoutURL string            `json:"checkout_url"`
	Fields      map[string]string `json:"fields"`
	Amount      int64             `json:"amount"`
	Currency    string            `json:"currency"`
	Resumed     bool              `json:"resumed"`
}

type Purchase struct {
	OrderID      string     `json:"order_id"`
	ContentID    string     `json:"content_id"`
	SeasonNumber *int       `json:"season_number,omitempty"`
	Amount       int64      `json:"amount"`
	Currency     string     `json:"currency"`
	Status       string     `json:"status"`
	PurchasedAt  time.Time  `json:"purchased_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func toPurchase(p *model.Purchase) Purchase {
	return Purchase{
		OrderID:      p.OrderID,
		ContentID:    p.ContentID,
		SeasonNumber: model.CopySeason(p.SeasonNumber),
		Amount:       p.Amount,
		Currency:     p.Currency,
		Status:       string(p.Status),
		PurchasedAt:  p.PurchasedAt,
		CompletedAt:  p.CompletedAt,
	}
}

type PurchaseList struct {
	Items []Purchase `json:"items"`
}

type RefundResponse struct {
	Purchase Purchase `json:"purchase"`
	Applied  bool     `json:"applied"`
}

type NotifyResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type SetPriceRequest struct {
	Price *int64 `json:"price"`
}

type ContentPriceResponse struct {
	ContentID string `json:"content_id"`
	Price     int64  `json:"price"`
}

type BulkSeasonPricesRequest struct {
	Prices []usecase.SeasonPriceInput `json:"prices"`
}

type SeasonPriceList struct {
	ContentID string               `json:"content_id"`
	Items     []*model.SeasonPrice `json:"items"`
}
