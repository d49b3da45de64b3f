package models

import (
	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/integration"
)

// WarehouseMappingModel is the persistence model for integration.WarehouseMapping.
type WarehouseMappingModel struct {
	BaseModel
	TenantID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_warehouse_mapping_location,priority:1"`
	ExternalLocationID  string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_warehouse_mapping_location,priority:2"`
	InternalWarehouseID uuid.UUID `gorm:"type:uuid;not null"`
	Name                string    `gorm:"type:varchar(255)"`
	Address1            string    `gorm:"type:varchar(255)"`
	Address2            string    `gorm:"type:varchar(255)"`
	City                string    `gorm:"type:varchar(100)"`
	Province            string    `gorm:"type:varchar(100)"`
	Country             string    `gorm:"type:varchar(100)"`
	Zip                 string    `gorm:"type:varchar(20)"`
	Active              bool      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (WarehouseMappingModel) TableName() string {
	return "warehouse_mappings"
}

// ToDomain converts the persistence model to a domain WarehouseMapping.
func (m *WarehouseMappingModel) ToDomain() *integration.WarehouseMapping {
	return &integration.WarehouseMapping{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		ExternalLocationID:  m.ExternalLocationID,
		InternalWarehouseID: m.InternalWarehouseID,
		Name:                m.Name,
		Address1:            m.Address1,
		Address2:            m.Address2,
		City:                m.City,
		Province:            m.Province,
		Country:             m.Country,
		Zip:                 m.Zip,
		Active:              m.Active,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// WarehouseMappingModelFromDomain creates a persistence model from a domain WarehouseMapping.
func WarehouseMappingModelFromDomain(w *integration.WarehouseMapping) *WarehouseMappingModel {
	m := &WarehouseMappingModel{
		BaseModel:           BaseModel{ID: w.ID, CreatedAt: w.CreatedAt, UpdatedAt: w.UpdatedAt},
		TenantID:            w.TenantID,
		ExternalLocationID:  w.ExternalLocationID,
		InternalWarehouseID: w.InternalWarehouseID,
		Name:                w.Name,
		Address1:            w.Address1,
		Address2:            w.Address2,
		City:                w.City,
		Province:            w.Province,
		Country:             w.Country,
		Zip:                 w.Zip,
		Active:              w.Active,
	}
	m.ensureID()
	if m.InternalWarehouseID == uuid.Nil {
		m.InternalWarehouseID = uuid.New()
	}
	return m
}
