package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/stocksync/internal/domain/integration"
)

// TenantSyncConfigModel is the persistence model for integration.TenantSyncConfig.
type TenantSyncConfigModel struct {
	TenantID                uuid.UUID `gorm:"type:uuid;primaryKey"`
	AuthoritativeLocationID string    `gorm:"type:varchar(64)"`
	ShopDomain              string    `gorm:"type:varchar(255)"`
	AccessToken             string    `gorm:"type:text"`
	Timezone                string    `gorm:"type:varchar(64)"`
	WebhookSecret           string    `gorm:"type:text"`
	SyncEnabled             bool      `gorm:"not null;index"`
	CreatedAt               time.Time `gorm:"not null"`
	UpdatedAt               time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantSyncConfigModel) TableName() string {
	return "tenant_sync_configs"
}

// ToDomain converts the persistence model to a domain TenantSyncConfig.
func (m *TenantSyncConfigModel) ToDomain() *integration.TenantSyncConfig {
	return &integration.TenantSyncConfig{
		TenantID:                m.TenantID,
		AuthoritativeLocationID: m.AuthoritativeLocationID,
		ShopDomain:              m.ShopDomain,
		AccessToken:             m.AccessToken,
		Timezone:                m.Timezone,
		WebhookSecret:           m.WebhookSecret,
		SyncEnabled:             m.SyncEnabled,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
}

// TenantSyncConfigModelFromDomain creates a persistence model from a domain config.
func TenantSyncConfigModelFromDomain(c *integration.TenantSyncConfig) *TenantSyncConfigModel {
	return &TenantSyncConfigModel{
		TenantID:                c.TenantID,
		AuthoritativeLocationID: c.AuthoritativeLocationID,
		ShopDomain:              c.ShopDomain,
		AccessToken:             c.AccessToken,
		Timezone:                c.Timezone,
		WebhookSecret:           c.WebhookSecret,
		SyncEnabled:             c.SyncEnabled,
		CreatedAt:               c.CreatedAt,
		UpdatedAt:               c.UpdatedAt,
	}
}
