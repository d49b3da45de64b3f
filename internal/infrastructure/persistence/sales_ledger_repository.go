package persistence

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/persistence/models"
)

// GormSalesLedgerRepository implements integration.SalesLedgerRepository using GORM
type GormSalesLedgerRepository struct {
	db *gorm.DB
}

// NewGormSalesLedgerRepository creates a new GormSalesLedgerRepository
func NewGormSalesLedgerRepository(db *gorm.DB) *GormSalesLedgerRepository {
	return &GormSalesLedgerRepository{db: db}
}

var ledgerConflict = clause.OnConflict{
	Columns: []clause.Column{
		{Name: "tenant_id"},
		{Name: "external_order_id"},
		{Name: "external_line_item_id"},
	},
	DoNothing: true,
}

// InsertIgnoreDuplicates writes entries in chunks. Rows whose natural key
// already exists are skipped and counted as duplicates.
func (r *GormSalesLedgerRepository) InsertIgnoreDuplicates(ctx context.Context, entries []integration.SalesLedgerEntry) (integration.UpsertResult, error) {
	return insertLedgerChunks(r.db.WithContext(ctx), entries)
}

// ReplaceOrderEntries deletes the rows of orderID and inserts entries in one
// transaction. Reversal rows live under a different order id and are untouched.
func (r *GormSalesLedgerRepository) ReplaceOrderEntries(ctx context.Context, tenantID uuid.UUID, orderID string, entries []integration.SalesLedgerEntry) (int64, integration.UpsertResult, error) {
	var (
		deleted int64
		result  integration.UpsertResult
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		del := tx.Scopes(TenantScope(tenantID)).
			Where("external_order_id = ?", orderID).
			Delete(&models.SalesLedgerEntryModel{})
		if del.Error != nil {
			return del.Error
		}
		deleted = del.RowsAffected

		res, err := insertLedgerChunks(tx, entries)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return 0, integration.UpsertResult{}, err
	}
	return deleted, result, nil
}

// FindByOrder returns every row stored under orderID
func (r *GormSalesLedgerRepository) FindByOrder(ctx context.Context, tenantID uuid.UUID, orderID string) ([]integration.SalesLedgerEntry, error) {
	var rows []models.SalesLedgerEntryModel
	if err := r.db.WithContext(ctx).
		Scopes(TenantScope(tenantID)).
		Where("external_order_id = ?", orderID).
		Order("external_line_item_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]integration.SalesLedgerEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

func insertLedgerChunks(db *gorm.DB, entries []integration.SalesLedgerEntry) (integration.UpsertResult, error) {
	var result integration.UpsertResult
	for _, part := range chunk(entries, integration.LedgerUpsertChunkSize) {
		rows := make([]models.SalesLedgerEntryModel, len(part))
		for i := range part {
			rows[i] = models.SalesLedgerEntryModelFromDomain(part[i])
		}
		res := db.Clauses(ledgerConflict).Create(&rows)
		if res.Error != nil {
			return result, res.Error
		}
		inserted := int(res.RowsAffected)
		result.Add(integration.UpsertResult{
			Inserted:          inserted,
			DuplicatesSkipped: len(rows) - inserted,
		})
	}
	return result, nil
}

var _ integration.SalesLedgerRepository = (*GormSalesLedgerRepository)(nil)
