package models

import (
	"time"

	"gorm.io/datatypes"
)

// CourseGraph stores one knowledge graph per course. The node and relation
// collections are serialized whole into JSONB columns, so every mutation is
// a read-modify-write of the full record.
type CourseGraph struct {
	CourseID  uint64                             `gorm:"primaryKey;autoIncrement:false" json:"course_id"`
	Nodes     datatypes.JSONSlice[GraphNode]     `gorm:"type:jsonb" json:"nodes"`
	Relations datatypes.JSONSlice[GraphRelation] `gorm:"type:jsonb" json:"relations"`
	CreatedAt time.Time                          `json:"created_at"`
	UpdatedAt time.Time                          `json:"updated_at"`
}

// GraphNode is a labeled vertex representing one knowledge unit.
// Labels are unique per course, compared case-insensitively.
type GraphNode struct {
	ID          string         `json:"id"`
	Label       string         `json:"label" validate:"required"`
	Type        string         `json:"type,omitempty"`
	Description string         `json:"description,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// GraphRelation is a typed, optionally weighted edge between two nodes of
// the same course. The (From, To, Type) triple is unique per course, with
// Type compared case-insensitively. From and To are immutable once set.
type GraphRelation struct {
	ID       string         `json:"id"`
	From     string         `json:"from" validate:"required"`
	To       string         `json:"to" validate:"required"`
	Type     string         `json:"type" validate:"required"`
	Directed bool           `json:"directed"`
	Weight   *float64       `json:"weight,omitempty" validate:"omitempty,gte=0,lte=1"`
	Meta     map[string]any `json:"meta,omitempty"`
}
