package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockedby/spending-stats/internal/database"
)

// Test-only table definitions; the service never creates its tables.
type userSpending struct {
	ID         uint `gorm:"primaryKey"`
	UserID     int64
	MoneySpent float64
}

func (userSpending) TableName() string { return "user_spending" }

type userInfo struct {
	UserID int64 `gorm:"primaryKey;autoIncrement:false"`
	Age    *int
}

func (userInfo) TableName() string { return "user_info" }

type highSpender struct {
	UserID        int64 `gorm:"primaryKey;autoIncrement:false"`
	TotalSpending int64
}

func (highSpender) TableName() string { return "high_spenders" }

func setupRepo(t *testing.T) (*SpendingRepository, *database.DB) {
	t.Helper()

	db, err := database.Open(context.Background(), filepath.Join(t.TempDir(), "spending.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.GORM.AutoMigrate(&userSpending{}, &userInfo{}, &highSpender{}))

	return NewSpendingRepository(db), db
}

func seedUser(t *testing.T, db *database.DB, userID int64, age *int, spends ...float64) {
	t.Helper()

	require.NoError(t, db.GORM.Create(&userInfo{UserID: userID, Age: age}).Error)
	for _, s := range spends {
		require.NoError(t, db.GORM.Create(&userSpending{UserID: userID, MoneySpent: s}).Error)
	}
}

func intPtr(v int) *int { return &v }

func TestTotalSpent_NoRowsIsZero(t *testing.T) {
	repo, _ := setupRepo(t)

	total, err := repo.TotalSpent(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)
}

func TestTotalSpent_SumsRows(t *testing.T) {
	repo, db := setupRepo(t)
	seedUser(t, db, 1, intPtr(30), 100, 50, 25.5)
	seedUser(t, db, 2, intPtr(40), 999)

	total, err := repo.TotalSpent(context.Background(), 1)
	require.NoError(t, err)
	assert.InDelta(t, 175.5, total, 1e-9)
}

func TestTotalSpent_MissingTableIsError(t *testing.T) {
	repo, db := setupRepo(t)
	require.NoError(t, db.GORM.Migrator().DropTable(&userSpending{}))

	_, err := repo.TotalSpent(context.Background(), 1)
	assert.Error(t, err)
}

func TestAverageByAgeGroup_BucketsAndOrder(t *testing.T) {
	repo, db := setupRepo(t)
	seedUser(t, db, 1, intPtr(18), 100)
	seedUser(t, db, 2, intPtr(24), 200)
	seedUser(t, db, 3, intPtr(47), 10, 20)
	seedUser(t, db, 4, intPtr(48), 7)
	seedUser(t, db, 5, intPtr(90), 9)

	result, err := repo.AverageByAgeGroup(context.Background())
	require.NoError(t, err)

	require.Len(t, result, 3)
	assert.Equal(t, "18-24", result[0].AgeGroup)
	assert.InDelta(t, 150.0, result[0].AverageSpending, 1e-9)
	assert.Equal(t, "37-47", result[1].AgeGroup)
	assert.InDelta(t, 15.0, result[1].AverageSpending, 1e-9)
	assert.Equal(t, ">47", result[2].AgeGroup)
	assert.InDelta(t, 8.0, result[2].AverageSpending, 1e-9)
}

func TestAverageByAgeGroup_NeverReturnsEmptyBuckets(t *testing.T) {
	repo, db := setupRepo(t)
	// a user with info but no spending, and spending without info
	seedUser(t, db, 1, intPtr(27))
	require.NoError(t, db.GORM.Create(&userSpending{UserID: 99, MoneySpent: 500}).Error)
	seedUser(t, db, 2, intPtr(33), 60)

	result, err := repo.AverageByAgeGroup(context.Background())
	require.NoError(t, err)

	require.Len(t, result, 1)
	assert.Equal(t, "31-36", result[0].AgeGroup)
	assert.InDelta(t, 60.0, result[0].AverageSpending, 1e-9)
}

func TestAverageByAgeGroup_ExcludesUnbucketedAges(t *testing.T) {
	repo, db := setupRepo(t)
	seedUser(t, db, 1, intPtr(17), 1000)
	seedUser(t, db, 2, nil, 1000)

	result, err := repo.AverageByAgeGroup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestUpsertHighSpender_Idempotent(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()

	hs := HighSpender{UserID: 5, TotalSpending: 1200}
	require.NoError(t, repo.UpsertHighSpender(ctx, hs))
	require.NoError(t, repo.UpsertHighSpender(ctx, hs))

	var rows []highSpender
	require.NoError(t, db.GORM.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0].UserID)
	assert.Equal(t, int64(1200), rows[0].TotalSpending)
}

func TestUpsertHighSpender_UpdatesExisting(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.UpsertHighSpender(ctx, HighSpender{UserID: 5, TotalSpending: 1200}))
	require.NoError(t, repo.UpsertHighSpender(ctx, HighSpender{UserID: 5, TotalSpending: 3000}))
	require.NoError(t, repo.UpsertHighSpender(ctx, HighSpender{UserID: 6, TotalSpending: 10}))

	var got highSpender
	require.NoError(t, db.GORM.First(&got, "user_id = ?", 5).Error)
	assert.Equal(t, int64(3000), got.TotalSpending)

	var count int64
	require.NoError(t, db.GORM.Model(&highSpender{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestUpsertHighSpender_ConcurrentWritersSameUser(t *testing.T) {
	repo, db := setupRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			errs <- repo.UpsertHighSpender(ctx, HighSpender{UserID: 77, TotalSpending: v})
		}(int64(i))
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	var count int64
	require.NoError(t, db.GORM.Model(&highSpender{}).Where("user_id = ?", 77).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestSpendingRepository_UsesRequestScope(t *testing.T) {
	repo, db := setupRepo(t)
	seedUser(t, db, 1, intPtr(20), 10)

	var total float64
	var inUse int
	handler := db.Scope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		total, err = repo.TotalSpent(r.Context(), 1)
		require.NoError(t, err)
		_, err = repo.AverageByAgeGroup(r.Context())
		require.NoError(t, err)
		inUse = db.SQL.Stats().InUse
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.InDelta(t, 10.0, total, 1e-9)
	assert.Equal(t, 1, inUse)
	assert.Equal(t, 0, db.SQL.Stats().InUse)
}
