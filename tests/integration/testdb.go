// Package integration runs the sync engine against real PostgreSQL and Redis
// containers started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/erp/stocksync/internal/domain/integration"
	"github.com/erp/stocksync/internal/infrastructure/migration"
	"github.com/erp/stocksync/internal/infrastructure/persistence"
)

// TestDB represents a test database connection
type TestDB struct {
	DB        *gorm.DB
	SqlDB     *sql.DB
	Container testcontainers.Container
	DSN       string
	t         *testing.T
}

func skipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
}

// NewTestDB starts a PostgreSQL container and applies the embedded migrations.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipIfShort(t)

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("stocksync_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get connection string")

	db, sqlDB := connectToDatabase(t, dsn)

	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err, "Failed to create migrator")
	require.NoError(t, m.Up(), "Failed to run migrations")

	testDB := &TestDB{
		DB:        db,
		SqlDB:     sqlDB,
		Container: container,
		DSN:       dsn,
		t:         t,
	}
	t.Cleanup(testDB.Close)

	return testDB
}

// Close closes the database connection and terminates the container
func (tdb *TestDB) Close() {
	if tdb.SqlDB != nil {
		_ = tdb.SqlDB.Close()
	}
	if tdb.Container != nil {
		if err := tdb.Container.Terminate(context.Background()); err != nil {
			tdb.t.Logf("Warning: Failed to terminate container: %v", err)
		}
	}
}

func connectToDatabase(t *testing.T, dsn string) (*gorm.DB, *sql.DB) {
	t.Helper()

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")

	sqlDB, err := db.DB()
	require.NoError(t, err, "Failed to get underlying SQL DB")
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)

	return db, sqlDB
}

// CreateTenant stores a sync-enabled tenant config and returns it
func (tdb *TestDB) CreateTenant(shopDomain, secret, locationID string) integration.TenantSyncConfig {
	tdb.t.Helper()

	cfg := integration.TenantSyncConfig{
		TenantID:                uuid.New(),
		AuthoritativeLocationID: locationID,
		ShopDomain:              shopDomain,
		AccessToken:             "test-token",
		Timezone:                "Asia/Shanghai",
		WebhookSecret:           secret,
		SyncEnabled:             true,
	}
	repo := persistence.NewGormTenantSyncConfigRepository(tdb.DB)
	require.NoError(tdb.t, repo.Save(context.Background(), &cfg))
	return cfg
}

// CreateStoreProduct inserts an internal product with on-hand stock
func (tdb *TestDB) CreateStoreProduct(tenantID uuid.UUID, sku string, stock int64) {
	tdb.t.Helper()

	err := tdb.DB.Exec(`
		INSERT INTO store_products (id, tenant_id, sku, name, stock)
		VALUES (?, ?, ?, ?, ?)
	`, uuid.New(), tenantID, sku, fmt.Sprintf("Product %s", sku), stock).Error
	require.NoError(tdb.t, err, "Failed to create store product")
}

// CreateMapping links a platform variant and inventory item to an internal SKU
func (tdb *TestDB) CreateMapping(tenantID uuid.UUID, variantID, inventoryItemID, sku string) {
	tdb.t.Helper()

	m, err := integration.NewProductMapping(tenantID, variantID, inventoryItemID, sku)
	require.NoError(tdb.t, err)
	require.NoError(tdb.t, persistence.NewGormProductMappingRepository(tdb.DB).Upsert(context.Background(), m))
}

// NewTestRedis starts a Redis container and returns a connected client
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	skipIfShort(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}
