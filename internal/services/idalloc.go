package services

import (
	"strconv"
	"strings"

	"github.com/reviewpilot/engine/internal/models"
)

const (
	nodeIDPrefix     = "n"
	relationIDPrefix = "r"
)

// nextGraphID derives the next free identifier for one of a graph's
// collections: the highest integer suffix among ids matching prefix+int,
// plus one. Ids that do not match the pattern count as 0. The max is
// recomputed from surviving ids on every call, so deleting the
// highest-numbered entry frees its numeric slot for the next allocation.
func nextGraphID(prefix string, ids []string) string {
	max := 0
	for _, id := range ids {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		n, err := strconv.Atoi(id[len(prefix):])
		if err != nil || n < 0 {
			continue
		}
		if n > max {
			max = n
		}
	}
	return prefix + strconv.Itoa(max+1)
}

func nextNodeID(g *models.CourseGraph) string {
	ids := make([]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	return nextGraphID(nodeIDPrefix, ids)
}

func nextRelationID(g *models.CourseGraph) string {
	ids := make([]string, 0, len(g.Relations))
	for _, r := range g.Relations {
		ids = append(ids, r.ID)
	}
	return nextGraphID(relationIDPrefix, ids)
}
