package implementation

import (
	"context"
	"testing"

	"casebook/internal/entity"
	"casebook/internal/model"
	"casebook/internal/repository/specification"
	"casebook/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewGormDB(database.GormConfig{
		Driver:     database.DriverSqlite,
		Connection: ":memory:",
		LogLevel:   "silent",
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(model.All()...))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func TestCaseRepositoryCreateAssignsId(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepository(newTestDB(t))

	c := &entity.Case{
		Title:      "Water damage",
		Status:     entity.CaseStatusOpen,
		Attributes: map[string]interface{}{"floor": "3"},
		CreatedBy:  uuid.New(),
	}
	require.NoError(t, repo.Create(ctx, c))
	assert.NotZero(t, c.Id)
	assert.False(t, c.CreatedAt.IsZero())

	found, err := repo.FindOne(ctx, specification.ByID{ID: c.Id})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Water damage", found.Title)
	assert.Equal(t, "3", found.Attributes["floor"])
}

func TestCaseRepositoryFindOneMissingReturnsNil(t *testing.T) {
	repo := NewCaseRepository(newTestDB(t))

	found, err := repo.FindOne(context.Background(), specification.ByID{ID: int64(999)})
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestCaseRepositoryFindAllNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewCaseRepository(newTestDB(t))
	owner := uuid.New()

	for _, title := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Create(ctx, &entity.Case{Title: title, Status: entity.CaseStatusOpen, CreatedBy: owner}))
	}

	cases, err := repo.FindAll(ctx, specification.NewestFirst())
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, "third", cases[0].Title)
	assert.Equal(t, "first", cases[2].Title)
}

func TestUserRepositoryLowercasesEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))

	u := &entity.User{Id: uuid.New(), Email: "  Ana@Example.COM ", PasswordHash: "x"}
	require.NoError(t, repo.Create(ctx, u))

	found, err := repo.FindOne(ctx, specification.ByEmail{Email: "ANA@example.com"})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "ana@example.com", found.Email)
}
