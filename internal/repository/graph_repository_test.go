package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/reviewpilot/engine/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("engine_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.CourseGraph{}))
	return db
}

func TestGraphRepositoryGetOrCreate(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGraphRepository(db)
	ctx := context.Background()

	g, err := repo.GetOrCreate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), g.CourseID)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Relations)

	// Second call returns the same record, not a fresh one.
	again, err := repo.GetOrCreate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, g.CourseID, again.CourseID)

	var count int64
	require.NoError(t, db.Model(&models.CourseGraph{}).Where("course_id = ?", 7).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGraphRepositoryGetOrCreateConcurrent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGraphRepository(db)
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = repo.GetOrCreate(ctx, 42)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "caller %d", i)
	}

	var count int64
	require.NoError(t, db.Model(&models.CourseGraph{}).Where("course_id = ?", 42).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestGraphRepositorySaveRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	repo := NewGraphRepository(db)
	ctx := context.Background()

	g, err := repo.GetOrCreate(ctx, 7)
	require.NoError(t, err)

	w := 0.5
	g.Nodes = append(g.Nodes, models.GraphNode{
		ID:    "n1",
		Label: "Recursion",
		Meta:  map[string]any{"difficulty": "hard"},
	})
	g.Nodes = append(g.Nodes, models.GraphNode{ID: "n2", Label: "Induction"})
	g.Relations = append(g.Relations, models.GraphRelation{
		ID: "r1", From: "n2", To: "n1", Type: "PREREQUISITE", Directed: true, Weight: &w,
	})
	require.NoError(t, repo.Save(ctx, g))

	loaded, err := repo.GetOrCreate(ctx, 7)
	require.NoError(t, err)
	require.Len(t, loaded.Nodes, 2)
	require.Len(t, loaded.Relations, 1)
	assert.Equal(t, "Recursion", loaded.Nodes[0].Label)
	assert.Equal(t, "hard", loaded.Nodes[0].Meta["difficulty"])
	assert.Equal(t, "PREREQUISITE", loaded.Relations[0].Type)
	require.NotNil(t, loaded.Relations[0].Weight)
	assert.Equal(t, 0.5, *loaded.Relations[0].Weight)
}
