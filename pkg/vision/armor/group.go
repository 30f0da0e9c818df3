// Package armor turns per-armor observations into a single tracked robot:
// grouping by class, target selection with a TTL grace window, and robot-pose
// reconstruction from one or two simultaneously visible armors.
package armor

import (
	"math"

	"github.com/nusrobomaster/autoaim/pkg/state"
)

// Group is all armors of one robot visible in a frame.
type Group struct {
	ClassID int
	Armors  []state.Detection
}

// FormRobot groups detections by class. A class with more than two armors is
// geometrically impossible for one robot and is discarded wholesale.
func FormRobot(dets []state.Detection) []Group {
	byClass := map[int][]state.Detection{}
	order := []int{}
	for _, d := range dets {
		if _, seen := byClass[d.ClassID]; !seen {
			order = append(order, d.ClassID)
		}
		byClass[d.ClassID] = append(byClass[d.ClassID], d)
	}

	groups := make([]Group, 0, len(order))
	for _, id := range order {
		armors := byClass[id]
		if len(armors) > 2 {
			continue
		}
		groups = append(groups, Group{ClassID: id, Armors: armors})
	}
	return groups
}

// MeanDistance is the mean armor range of a group, the selection criterion.
func (g Group) MeanDistance() float64 {
	if len(g.Armors) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for _, a := range g.Armors {
		sum += a.TVec.Len()
	}
	return sum / float64(len(g.Armors))
}
