package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/reviewpilot/engine/internal/models"
	appErr "github.com/reviewpilot/engine/pkg/errors"
)

// memGraphRepo is an in-memory GraphRepository. It returns copies on read
// and stores copies on save, so every operation observes a fresh snapshot
// the way a database-backed repository would.
type memGraphRepo struct {
	mu     sync.Mutex
	graphs map[uint64]*models.CourseGraph
}

func newMemGraphRepo() *memGraphRepo {
	return &memGraphRepo{graphs: map[uint64]*models.CourseGraph{}}
}

func (m *memGraphRepo) GetOrCreate(ctx context.Context, courseID uint64) (*models.CourseGraph, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.graphs[courseID]
	if !ok {
		g = &models.CourseGraph{CourseID: courseID}
		m.graphs[courseID] = g
	}
	return copyGraph(g), nil
}

func (m *memGraphRepo) Save(ctx context.Context, graph *models.CourseGraph) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.graphs[graph.CourseID] = copyGraph(graph)
	return nil
}

func copyGraph(g *models.CourseGraph) *models.CourseGraph {
	cp := *g
	cp.Nodes = append(datatypes.JSONSlice[models.GraphNode]{}, g.Nodes...)
	cp.Relations = append(datatypes.JSONSlice[models.GraphRelation]{}, g.Relations...)
	return &cp
}

// memCourses is a CourseLookup over a fixed set of course ids.
type memCourses struct {
	owners map[uint64]uuid.UUID
}

func (m *memCourses) Exists(ctx context.Context, courseID uint64) (bool, error) {
	_, ok := m.owners[courseID]
	return ok, nil
}

func (m *memCourses) OwnerID(ctx context.Context, courseID uint64) (uuid.UUID, error) {
	owner, ok := m.owners[courseID]
	if !ok {
		return uuid.Nil, appErr.New(appErr.CodeNotFound, "course not found")
	}
	return owner, nil
}

func newTestGraphService(courseIDs ...uint64) GraphService {
	owners := map[uint64]uuid.UUID{}
	for _, id := range courseIDs {
		owners[id] = uuid.New()
	}
	return NewGraphService(newMemGraphRepo(), &memCourses{owners: owners})
}

func strptr(s string) *string   { return &s }
func f64ptr(f float64) *float64 { return &f }

func TestListNodesOnFreshCourseIsEmpty(t *testing.T) {
	svc := newTestGraphService(1)

	nodes, err := svc.ListNodes(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestOperationsOnMissingCourseFailNotFound(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	_, err := svc.ListNodes(ctx, 99)
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	_, err = svc.CreateNode(ctx, 99, CreateNodeInput{Label: "Arrays"})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))
}

func TestCreateNodeAssignsSequentialIDs(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	for i, label := range []string{"Arrays", "Lists", "Trees"} {
		n, err := svc.CreateNode(ctx, 1, CreateNodeInput{Label: label})
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("n%d", i+1), n.ID)
	}
}

func TestCreateNodeRejectsBlankLabel(t *testing.T) {
	svc := newTestGraphService(1)

	_, err := svc.CreateNode(context.Background(), 1, CreateNodeInput{Label: "   "})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestCreateNodeDuplicateLabelCaseInsensitive(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	_, err := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Arrays"})
	require.NoError(t, err)

	_, err = svc.CreateNode(ctx, 1, CreateNodeInput{Label: "arrays"})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))
}

func TestSameLabelAllowedAcrossCourses(t *testing.T) {
	svc := newTestGraphService(1, 2)
	ctx := context.Background()

	_, err := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Arrays"})
	require.NoError(t, err)
	_, err = svc.CreateNode(ctx, 2, CreateNodeInput{Label: "Arrays"})
	assert.NoError(t, err)
}

func TestGetNodeDegreesStartAtZero(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n, err := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Recursion"})
	require.NoError(t, err)

	detail, err := svc.GetNode(ctx, 1, n.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.InDegree)
	assert.Equal(t, 0, detail.OutDegree)
}

func TestGetNodeCountsDegrees(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n1, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Recursion"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Induction"})

	rel, err := svc.CreateRelation(ctx, 1, CreateRelationInput{From: n2.ID, To: n1.ID, Type: "PREREQUISITE"})
	require.NoError(t, err)
	assert.Equal(t, "r1", rel.ID)
	assert.True(t, rel.Directed)

	detail, err := svc.GetNode(ctx, 1, n1.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.InDegree)
	assert.Equal(t, 0, detail.OutDegree)

	detail, err = svc.GetNode(ctx, 1, n2.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, detail.InDegree)
	assert.Equal(t, 1, detail.OutDegree)
}

func TestUpdateNodePatchSemantics(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Trees", Type: "topic", Description: "balanced trees"})

	// Omitted fields stay untouched; provided empty string overwrites.
	updated, err := svc.UpdateNode(ctx, 1, n.ID, UpdateNodeInput{Type: strptr("")})
	require.NoError(t, err)
	assert.Equal(t, "", updated.Type)
	assert.Equal(t, "balanced trees", updated.Description)
	assert.Equal(t, "Trees", updated.Label)
}

func TestUpdateNodeLabelConflict(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	_, _ = svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Arrays"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Lists"})

	_, err := svc.UpdateNode(ctx, 1, n2.ID, UpdateNodeInput{Label: strptr("ARRAYS")})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	// Case-only rename of a node's own label is allowed.
	updated, err := svc.UpdateNode(ctx, 1, n2.ID, UpdateNodeInput{Label: strptr("lists")})
	require.NoError(t, err)
	assert.Equal(t, "lists", updated.Label)
}

func TestUpdateNodeBlankLabelRejected(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Arrays"})
	_, err := svc.UpdateNode(ctx, 1, n.ID, UpdateNodeInput{Label: strptr(" ")})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))
}

func TestDeleteNodeBlockedByRelations(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n1, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Recursion"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Induction"})
	rel, _ := svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n2.ID, Type: "PREREQUISITE"})

	err := svc.DeleteNode(ctx, 1, n2.ID)
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	require.NoError(t, svc.DeleteRelation(ctx, 1, rel.ID))
	assert.NoError(t, svc.DeleteNode(ctx, 1, n2.ID))
}

func TestCreateRelationValidation(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n1, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Recursion"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Induction"})

	_, err := svc.CreateRelation(ctx, 1, CreateRelationInput{From: "", To: n2.ID, Type: "PREREQUISITE"})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	_, err = svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: "n99", Type: "PREREQUISITE"})
	assert.True(t, appErr.IsCode(err, appErr.CodeNotFound))

	// A failed create leaves the relation sequence unchanged.
	rels, err := svc.ListRelations(ctx, 1, RelationFilter{})
	require.NoError(t, err)
	assert.Empty(t, rels)
}

func TestCreateRelationDuplicateTriple(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n1, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Recursion"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "Induction"})

	_, err := svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n2.ID, Type: "PREREQUISITE"})
	require.NoError(t, err)

	// Same triple, type compared case-insensitively.
	_, err = svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n2.ID, Type: "prerequisite"})
	assert.True(t, appErr.IsCode(err, appErr.CodeConflict))

	// Distinct type between the same pair is fine.
	rel, err := svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n2.ID, Type: "RELATED_TO"})
	require.NoError(t, err)
	assert.Equal(t, "r2", rel.ID)
}

func TestListRelationsFilters(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n1, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "A"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "B"})
	n3, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "C"})

	_, _ = svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n2.ID, Type: "PREREQUISITE"})
	_, _ = svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n3.ID, Type: "RELATED_TO"})
	_, _ = svc.CreateRelation(ctx, 1, CreateRelationInput{From: n2.ID, To: n3.ID, Type: "PREREQUISITE"})

	all, err := svc.ListRelations(ctx, 1, RelationFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	fromN1, err := svc.ListRelations(ctx, 1, RelationFilter{From: n1.ID})
	require.NoError(t, err)
	assert.Len(t, fromN1, 2)

	toN3, err := svc.ListRelations(ctx, 1, RelationFilter{To: n3.ID})
	require.NoError(t, err)
	assert.Len(t, toN3, 2)

	prereq, err := svc.ListRelations(ctx, 1, RelationFilter{Type: "prerequisite"})
	require.NoError(t, err)
	assert.Len(t, prereq, 2)

	both, err := svc.ListRelations(ctx, 1, RelationFilter{From: n2.ID, Type: "PREREQUISITE"})
	require.NoError(t, err)
	assert.Len(t, both, 1)
}

func TestUpdateRelationWeightBounds(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n1, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "A"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "B"})
	rel, _ := svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n2.ID, Type: "PREREQUISITE"})

	_, err := svc.UpdateRelation(ctx, 1, rel.ID, UpdateRelationInput{Weight: f64ptr(1.5)})
	assert.True(t, appErr.IsCode(err, appErr.CodeInvalid))

	updated, err := svc.UpdateRelation(ctx, 1, rel.ID, UpdateRelationInput{Weight: f64ptr(0.5)})
	require.NoError(t, err)
	require.NotNil(t, updated.Weight)
	assert.Equal(t, 0.5, *updated.Weight)

	// The stored weight is retrievable unchanged.
	rels, err := svc.ListRelations(ctx, 1, RelationFilter{})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	require.NotNil(t, rels[0].Weight)
	assert.Equal(t, 0.5, *rels[0].Weight)
}

func TestUpdateRelationFromToImmutable(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	n1, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "A"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "B"})
	rel, _ := svc.CreateRelation(ctx, 1, CreateRelationInput{From: n1.ID, To: n2.ID, Type: "PREREQUISITE"})

	updated, err := svc.UpdateRelation(ctx, 1, rel.ID, UpdateRelationInput{Type: strptr("RELATED_TO")})
	require.NoError(t, err)
	assert.Equal(t, n1.ID, updated.From)
	assert.Equal(t, n2.ID, updated.To)
	assert.Equal(t, "RELATED_TO", updated.Type)
}

func TestNodeIDSlotReusedAfterDeletingMax(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	_, _ = svc.CreateNode(ctx, 1, CreateNodeInput{Label: "A"})
	n2, _ := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "B"})
	require.Equal(t, "n2", n2.ID)

	require.NoError(t, svc.DeleteNode(ctx, 1, n2.ID))

	// The allocator rescans surviving ids, so the freed slot is reissued.
	n, err := svc.CreateNode(ctx, 1, CreateNodeInput{Label: "C"})
	require.NoError(t, err)
	assert.Equal(t, "n2", n.ID)
}

func TestConcurrentCreateNodeProducesDenseIDRange(t *testing.T) {
	svc := newTestGraphService(1)
	ctx := context.Background()

	const workers = 24
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateNode(ctx, 1, CreateNodeInput{Label: fmt.Sprintf("topic-%d", i)})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoErrorf(t, err, "worker %d", i)
	}

	nodes, err := svc.ListNodes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, nodes, workers)

	got := map[string]bool{}
	for _, n := range nodes {
		got[n.ID] = true
	}
	for i := 1; i <= workers; i++ {
		assert.Truef(t, got[fmt.Sprintf("n%d", i)], "missing id n%d", i)
	}
}

func TestConcurrentWritersOnDifferentCoursesDoNotInterfere(t *testing.T) {
	svc := newTestGraphService(1, 2)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, courseID := range []uint64{1, 2} {
		wg.Add(1)
		go func(courseID uint64) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				_, err := svc.CreateNode(ctx, courseID, CreateNodeInput{Label: fmt.Sprintf("t%d", i)})
				assert.NoError(t, err)
			}
		}(courseID)
	}
	wg.Wait()

	for _, courseID := range []uint64{1, 2} {
		nodes, err := svc.ListNodes(ctx, courseID)
		require.NoError(t, err)
		assert.Len(t, nodes, 10)
	}
}
