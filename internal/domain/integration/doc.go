// Package integration contains the commerce platform sync bounded context.
// It keeps stock levels and the sales ledger consistent between an external
// commerce platform and the internal store.
//
// Key concepts:
//   - ProductMapping: links a platform variant to an internal SKU and carries
//     the SyncMetadata stamp used to recognise echoes of our own writes
//   - SalesLedgerEntry: one signed unit-of-sale row keyed by
//     (tenant, external order, external line item)
//   - WarehouseMapping: mirror of a platform location
//   - UnmappedProduct: platform variants seen without a mapping
//   - TenantSyncConfig: per-tenant settings passed explicitly to every handler
//
// Decision logic (location filter, loop guard, ledger derivation, validation)
// is pure and lives here. Side effects sit behind the repository and platform
// ports; adapters are in the infrastructure layer.
package integration
