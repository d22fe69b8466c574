package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/reviewpilot/engine/internal/models"
	"github.com/reviewpilot/engine/internal/repository"
	appErr "github.com/reviewpilot/engine/pkg/errors"
)

// CourseLookup resolves course existence and ownership. Implemented by
// CourseService; the graph engine never performs authorization itself.
type CourseLookup interface {
	Exists(ctx context.Context, courseID uint64) (bool, error)
	OwnerID(ctx context.Context, courseID uint64) (uuid.UUID, error)
}

// GraphService is the mutation/query API over a course's knowledge graph.
// Every operation resolves the course first and fails with not_found if it
// does not exist. Mutations and reads for the same course are serialized by
// a per-course lock so invariant checks observe a consistent snapshot.
type GraphService interface {
	ListNodes(ctx context.Context, courseID uint64) ([]models.GraphNode, error)
	GetNode(ctx context.Context, courseID uint64, nodeID string) (*NodeDetail, error)
	CreateNode(ctx context.Context, courseID uint64, in CreateNodeInput) (*models.GraphNode, error)
	UpdateNode(ctx context.Context, courseID uint64, nodeID string, in UpdateNodeInput) (*models.GraphNode, error)
	DeleteNode(ctx context.Context, courseID uint64, nodeID string) error

	ListRelations(ctx context.Context, courseID uint64, f RelationFilter) ([]models.GraphRelation, error)
	CreateRelation(ctx context.Context, courseID uint64, in CreateRelationInput) (*models.GraphRelation, error)
	UpdateRelation(ctx context.Context, courseID uint64, relationID string, in UpdateRelationInput) (*models.GraphRelation, error)
	DeleteRelation(ctx context.Context, courseID uint64, relationID string) error
}

// NodeDetail is a node together with its incident relation counts.
type NodeDetail struct {
	Node      models.GraphNode `json:"node"`
	InDegree  int              `json:"inDegree"`
	OutDegree int              `json:"outDegree"`
}

type CreateNodeInput struct {
	Label       string         `json:"label"`
	Type        string         `json:"type"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta"`
}

// UpdateNodeInput distinguishes "not provided" (nil) from "set to empty":
// only non-nil fields overwrite.
type UpdateNodeInput struct {
	Label       *string        `json:"label"`
	Type        *string        `json:"type"`
	Description *string        `json:"description"`
	Meta        map[string]any `json:"meta"`
}

type CreateRelationInput struct {
	From     string         `json:"from"`
	To       string         `json:"to"`
	Type     string         `json:"type"`
	Directed *bool          `json:"directed"`
	Weight   *float64       `json:"weight"`
	Meta     map[string]any `json:"meta"`
}

// UpdateRelationInput carries the mutable relation fields; from and to are
// immutable after creation.
type UpdateRelationInput struct {
	Type     *string        `json:"type"`
	Directed *bool          `json:"directed"`
	Weight   *float64       `json:"weight"`
	Meta     map[string]any `json:"meta"`
}

// RelationFilter narrows ListRelations. Blank fields pass everything; Type
// matches case-insensitively.
type RelationFilter struct {
	From string
	To   string
	Type string
}

type graphService struct {
	graphs  repository.GraphRepository
	courses CourseLookup
	locks   *courseLocks
}

func NewGraphService(graphs repository.GraphRepository, courses CourseLookup) GraphService {
	return &graphService{graphs: graphs, courses: courses, locks: newCourseLocks()}
}

// loadGraph resolves the course and returns its graph, creating an empty
// one on first access. Callers must hold the course lock.
func (s *graphService) loadGraph(ctx context.Context, courseID uint64) (*models.CourseGraph, error) {
	ok, err := s.courses.Exists(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErr.New(appErr.CodeNotFound, "course not found")
	}
	return s.graphs.GetOrCreate(ctx, courseID)
}

// Nodes

func (s *graphService) ListNodes(ctx context.Context, courseID uint64) ([]models.GraphNode, error) {
	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if g.Nodes == nil {
		return []models.GraphNode{}, nil
	}
	return g.Nodes, nil
}

func (s *graphService) GetNode(ctx context.Context, courseID uint64, nodeID string) (*NodeDetail, error) {
	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}
	idx := findNode(g, nodeID)
	if idx < 0 {
		return nil, appErr.New(appErr.CodeNotFound, "node not found")
	}

	in, out := 0, 0
	for _, r := range g.Relations {
		if r.To == nodeID {
			in++
		}
		if r.From == nodeID {
			out++
		}
	}
	return &NodeDetail{Node: g.Nodes[idx], InDegree: in, OutDegree: out}, nil
}

func (s *graphService) CreateNode(ctx context.Context, courseID uint64, in CreateNodeInput) (*models.GraphNode, error) {
	if strings.TrimSpace(in.Label) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "label is required")
	}

	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}
	for _, n := range g.Nodes {
		if strings.EqualFold(n.Label, in.Label) {
			return nil, appErr.New(appErr.CodeConflict, "node with same label exists")
		}
	}

	node := models.GraphNode{
		ID:          nextNodeID(g),
		Label:       in.Label,
		Type:        in.Type,
		Description: in.Description,
		Meta:        in.Meta,
	}
	g.Nodes = append(g.Nodes, node)
	if err := s.graphs.Save(ctx, g); err != nil {
		return nil, err
	}
	return &node, nil
}

func (s *graphService) UpdateNode(ctx context.Context, courseID uint64, nodeID string, in UpdateNodeInput) (*models.GraphNode, error) {
	if in.Label != nil && strings.TrimSpace(*in.Label) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "label cannot be blank")
	}

	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}
	idx := findNode(g, nodeID)
	if idx < 0 {
		return nil, appErr.New(appErr.CodeNotFound, "node not found")
	}
	node := &g.Nodes[idx]

	if in.Label != nil {
		if !strings.EqualFold(*in.Label, node.Label) {
			for _, other := range g.Nodes {
				if other.ID != nodeID && strings.EqualFold(other.Label, *in.Label) {
					return nil, appErr.New(appErr.CodeConflict, "node with same label exists")
				}
			}
		}
		node.Label = *in.Label
	}
	if in.Type != nil {
		node.Type = *in.Type
	}
	if in.Description != nil {
		node.Description = *in.Description
	}
	if in.Meta != nil {
		node.Meta = in.Meta
	}

	if err := s.graphs.Save(ctx, g); err != nil {
		return nil, err
	}
	return node, nil
}

func (s *graphService) DeleteNode(ctx context.Context, courseID uint64, nodeID string) error {
	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return err
	}
	idx := findNode(g, nodeID)
	if idx < 0 {
		return appErr.New(appErr.CodeNotFound, "node not found")
	}
	for _, r := range g.Relations {
		if r.From == nodeID || r.To == nodeID {
			return appErr.New(appErr.CodeConflict, "node is referenced by relations")
		}
	}

	g.Nodes = append(g.Nodes[:idx], g.Nodes[idx+1:]...)
	return s.graphs.Save(ctx, g)
}

// Relations

func (s *graphService) ListRelations(ctx context.Context, courseID uint64, f RelationFilter) ([]models.GraphRelation, error) {
	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}

	out := []models.GraphRelation{}
	for _, r := range g.Relations {
		if f.From != "" && r.From != f.From {
			continue
		}
		if f.To != "" && r.To != f.To {
			continue
		}
		if f.Type != "" && !strings.EqualFold(r.Type, f.Type) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *graphService) CreateRelation(ctx context.Context, courseID uint64, in CreateRelationInput) (*models.GraphRelation, error) {
	if strings.TrimSpace(in.From) == "" || strings.TrimSpace(in.To) == "" || strings.TrimSpace(in.Type) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "from, to and type are required")
	}
	if in.Weight != nil && (*in.Weight < 0.0 || *in.Weight > 1.0) {
		return nil, appErr.New(appErr.CodeInvalid, "weight must be between 0 and 1")
	}

	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if findNode(g, in.From) < 0 || findNode(g, in.To) < 0 {
		return nil, appErr.New(appErr.CodeNotFound, "source or target node not found")
	}
	for _, r := range g.Relations {
		if r.From == in.From && r.To == in.To && strings.EqualFold(r.Type, in.Type) {
			return nil, appErr.New(appErr.CodeConflict, "relation already exists")
		}
	}

	directed := true
	if in.Directed != nil {
		directed = *in.Directed
	}
	rel := models.GraphRelation{
		ID:       nextRelationID(g),
		From:     in.From,
		To:       in.To,
		Type:     in.Type,
		Directed: directed,
		Weight:   in.Weight,
		Meta:     in.Meta,
	}
	g.Relations = append(g.Relations, rel)
	if err := s.graphs.Save(ctx, g); err != nil {
		return nil, err
	}
	return &rel, nil
}

func (s *graphService) UpdateRelation(ctx context.Context, courseID uint64, relationID string, in UpdateRelationInput) (*models.GraphRelation, error) {
	if in.Type != nil && strings.TrimSpace(*in.Type) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "type cannot be blank")
	}
	if in.Weight != nil && (*in.Weight < 0.0 || *in.Weight > 1.0) {
		return nil, appErr.New(appErr.CodeInvalid, "weight must be between 0 and 1")
	}

	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return nil, err
	}
	idx := findRelation(g, relationID)
	if idx < 0 {
		return nil, appErr.New(appErr.CodeNotFound, "relation not found")
	}
	rel := &g.Relations[idx]

	if in.Type != nil {
		rel.Type = *in.Type
	}
	if in.Directed != nil {
		rel.Directed = *in.Directed
	}
	if in.Weight != nil {
		rel.Weight = in.Weight
	}
	if in.Meta != nil {
		rel.Meta = in.Meta
	}

	if err := s.graphs.Save(ctx, g); err != nil {
		return nil, err
	}
	return rel, nil
}

func (s *graphService) DeleteRelation(ctx context.Context, courseID uint64, relationID string) error {
	defer s.locks.lock(courseID)()

	g, err := s.loadGraph(ctx, courseID)
	if err != nil {
		return err
	}
	idx := findRelation(g, relationID)
	if idx < 0 {
		return appErr.New(appErr.CodeNotFound, "relation not found")
	}

	g.Relations = append(g.Relations[:idx], g.Relations[idx+1:]...)
	return s.graphs.Save(ctx, g)
}

func findNode(g *models.CourseGraph, nodeID string) int {
	for i, n := range g.Nodes {
		if n.ID == nodeID {
			return i
		}
	}
	return -1
}

func findRelation(g *models.CourseGraph, relationID string) int {
	for i, r := range g.Relations {
		if r.ID == relationID {
			return i
		}
	}
	return -1
}
