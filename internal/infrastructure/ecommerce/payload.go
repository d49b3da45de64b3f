package ecommerce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/erp/stocksync/internal/domain/integration"
)

// platformID accepts ids sent either as JSON numbers or strings.
type platformID string

func (id *platformID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = platformID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or string: %w", err)
	}
	*id = platformID(n.String())
	return nil
}

func (id platformID) String() string { return string(id) }

type orderPayload struct {
	ID                platformID        `json:"id"`
	Name              string            `json:"name"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
	CancelledAt       *time.Time        `json:"cancelled_at"`
	FinancialStatus   string            `json:"financial_status"`
	FulfillmentStatus string            `json:"fulfillment_status"`
	Currency          string            `json:"currency"`
	LineItems         []lineItemPayload `json:"line_items"`
}

type lineItemPayload struct {
	ID        platformID      `json:"id"`
	VariantID platformID      `json:"variant_id"`
	SKU       string          `json:"sku"`
	Title     string          `json:"title"`
	Quantity  float64         `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

func (p orderPayload) toDomain() integration.OrderEvent {
	o := integration.OrderEvent{
		OrderID:           p.ID.String(),
		OrderName:         p.Name,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
		CancelledAt:       p.CancelledAt,
		FinancialStatus:   p.FinancialStatus,
		FulfillmentStatus: p.FulfillmentStatus,
		Currency:          p.Currency,
		LineItems:         make([]integration.LineItem, 0, len(p.LineItems)),
	}
	for _, li := range p.LineItems {
		o.LineItems = append(o.LineItems, integration.LineItem{
			LineItemID: li.ID.String(),
			VariantID:  li.VariantID.String(),
			SKU:        strings.TrimSpace(li.SKU),
			Title:      li.Title,
			Quantity:   li.Quantity,
			UnitPrice:  li.Price,
		})
	}
	return o
}

type inventoryLevelPayload struct {
	InventoryItemID platformID `json:"inventory_item_id"`
	LocationID      platformID `json:"location_id"`
	Available       *int64     `json:"available"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (p inventoryLevelPayload) toDomain() (integration.StockChangeEvent, error) {
	if p.InventoryItemID == "" || p.LocationID == "" {
		return integration.StockChangeEvent{}, fmt.Errorf("%w: inventory level without item or location", integration.ErrPlatformInvalidResponse)
	}
	if p.Available == nil {
		return integration.StockChangeEvent{}, fmt.Errorf("%w: inventory level without available quantity", integration.ErrPlatformInvalidResponse)
	}
	return integration.StockChangeEvent{
		ExternalInventoryItemID: p.InventoryItemID.String(),
		ExternalLocationID:      p.LocationID.String(),
		NewAvailableQuantity:    *p.Available,
		OccurredAt:              p.UpdatedAt,
	}, nil
}

type productPayload struct {
	ID       platformID       `json:"id"`
	Title    string           `json:"title"`
	Variants []variantPayload `json:"variants"`
}

type variantPayload struct {
	ID              platformID `json:"id"`
	InventoryItemID platformID `json:"inventory_item_id"`
	SKU             string     `json:"sku"`
	Title           string     `json:"title"`
}

func (p productPayload) toDomain(deleted bool) integration.ProductEvent {
	ev := integration.ProductEvent{
		ProductID: p.ID.String(),
		Title:     p.Title,
		Deleted:   deleted,
		Variants:  make([]integration.ProductVariant, 0, len(p.Variants)),
	}
	for _, v := range p.Variants {
		ev.Variants = append(ev.Variants, integration.ProductVariant{
			VariantID:       v.ID.String(),
			InventoryItemID: v.InventoryItemID.String(),
			SKU:             strings.TrimSpace(v.SKU),
			Title:           v.Title,
		})
	}
	return ev
}

type locationPayload struct {
	ID       platformID `json:"id"`
	Name     string     `json:"name"`
	Address1 string     `json:"address1"`
	Address2 string     `json:"address2"`
	City     string     `json:"city"`
	Province string     `json:"province"`
	Country  string     `json:"country"`
	Zip      string     `json:"zip"`
	Active   bool       `json:"active"`
}

func (p locationPayload) toDomain() integration.PlatformLocation {
	return integration.PlatformLocation{
		ID:       p.ID.String(),
		Name:     p.Name,
		Address1: p.Address1,
		Address2: p.Address2,
		City:     p.City,
		Province: p.Province,
		Country:  p.Country,
		Zip:      p.Zip,
		Active:   p.Active,
	}
}

type ordersResponse struct {
	Orders []orderPayload `json:"orders"`
}

type locationsResponse struct {
	Locations []locationPayload `json:"locations"`
}

type setInventoryLevelRequest struct {
	LocationID      string `json:"location_id"`
	InventoryItemID string `json:"inventory_item_id"`
	Available       int64  `json:"available"`
}
