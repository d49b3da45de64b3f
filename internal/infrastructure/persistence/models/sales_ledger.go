package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/erp/stocksync/internal/domain/integration"
)

// SalesLedgerEntryModel is the persistence model for integration.SalesLedgerEntry.
// The natural key (tenant_id, external_order_id, external_line_item_id) is
// unique so repeated writes of the same line collapse onto one row.
type SalesLedgerEntryModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_sales_ledger_natural_key,priority:1;index:idx_sales_ledger_sale_date,priority:1"`
	SKU                string          `gorm:"column:sku;type:varchar(100);not null"`
	SaleDate           string          `gorm:"type:date;not null;index:idx_sales_ledger_sale_date,priority:2"`
	Quantity           int64           `gorm:"not null"`
	Revenue            decimal.Decimal `gorm:"type:numeric(18,4);not null"`
	Source             string          `gorm:"type:varchar(50);not null"`
	ExternalOrderID    string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_sales_ledger_natural_key,priority:2"`
	ExternalLineItemID string          `gorm:"type:varchar(100);not null;uniqueIndex:idx_sales_ledger_natural_key,priority:3"`
	MetadataJSON       string          `gorm:"type:jsonb;column:metadata"`
	CreatedAt          time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (SalesLedgerEntryModel) TableName() string {
	return "sales_ledger_entries"
}

// ToDomain converts the persistence model to a domain entry.
func (m *SalesLedgerEntryModel) ToDomain() integration.SalesLedgerEntry {
	e := integration.SalesLedgerEntry{
		ID:                 m.ID,
		TenantID:           m.TenantID,
		SKU:                m.SKU,
		SaleDate:           normalizeSaleDate(m.SaleDate),
		Quantity:           m.Quantity,
		Revenue:            m.Revenue,
		Source:             m.Source,
		ExternalOrderID:    m.ExternalOrderID,
		ExternalLineItemID: m.ExternalLineItemID,
		CreatedAt:          m.CreatedAt,
	}
	if m.MetadataJSON != "" {
		var metadata map[string]any
		if err := json.Unmarshal([]byte(m.MetadataJSON), &metadata); err == nil {
			e.Metadata = metadata
		}
	}
	return e
}

// SalesLedgerEntryModelFromDomain creates a persistence model from a domain entry.
func SalesLedgerEntryModelFromDomain(e integration.SalesLedgerEntry) SalesLedgerEntryModel {
	m := SalesLedgerEntryModel{
		ID:                 e.ID,
		TenantID:           e.TenantID,
		SKU:                e.SKU,
		SaleDate:           e.SaleDate,
		Quantity:           e.Quantity,
		Revenue:            e.Revenue,
		Source:             e.Source,
		ExternalOrderID:    e.ExternalOrderID,
		ExternalLineItemID: e.ExternalLineItemID,
		MetadataJSON:       "{}",
		CreatedAt:          e.CreatedAt,
	}
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if len(e.Metadata) > 0 {
		if b, err := json.Marshal(e.Metadata); err == nil {
			m.MetadataJSON = string(b)
		}
	}
	return m
}

// normalizeSaleDate trims a driver-returned timestamp down to the calendar day.
func normalizeSaleDate(s string) string {
	if len(s) > len(integration.SaleDateLayout) {
		return s[:len(integration.SaleDateLayout)]
	}
	return s
}
