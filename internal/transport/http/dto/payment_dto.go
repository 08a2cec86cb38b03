package dto

type CheckoutCreateRequest struct {
	DeviceID   string `json:"device_id"`
	ProductID  string `json:"product_id"`
	SuccessURL string `json:"success_url,omitempty"`
}

type CheckoutCreateResponse struct {
	CheckoutURL string `json:"checkout_url"`
	CheckoutID  string `json:"checkout_id"`
}

type WebhookRequest struct {
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
}

type WebhookResponse struct {
	Received  bool   `json:"received"`
	Processed bool   `json:"processed"`
	Reason    string `json:"reason,omitempty"`
}

type ProductItem struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	Tokens        int     `json:"tokens"`
	UnlimitedDays int     `json:"unlimited_days,omitempty"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	Popular       bool    `json:"popular"`
}

type ProductsResponse struct {
	Products []ProductItem `json:"products"`
}
