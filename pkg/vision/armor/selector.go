package armor

// Selector decides which robot the pipeline tracks this cycle. Identity is
// sticky: once a robot is selected it survives missed detections for a TTL
// grace window before the selector falls back to reacquisition.
type Selector struct {
	maxTTL float64

	trackedID int
	tracking  bool
	ttl       float64
}

// NewSelector creates a selector with the given grace window, seconds.
func NewSelector(maxTTL float64) *Selector {
	return &Selector{maxTTL: maxTTL}
}

// Tracked returns the currently tracked class id, if any.
func (s *Selector) Tracked() (int, bool) {
	return s.trackedID, s.tracking
}

// Select applies one frame of observations. dt is the time since the
// previous frame, seconds. It returns the armors to emit this cycle and
// reacquired=true when the returned group is a fresh acquisition that must
// reset the filter.
func (s *Selector) Select(groups []Group, dt float64) (g Group, ok bool, reacquired bool) {
	if len(groups) == 0 {
		s.ttl -= dt
		if s.tracking && s.ttl <= 0 {
			s.tracking = false
		}
		return Group{}, false, false
	}

	if s.tracking {
		for _, cand := range groups {
			if cand.ClassID == s.trackedID {
				s.ttl = s.maxTTL
				return cand, true, false
			}
		}
		// Tracked robot missing but detections present: hold identity
		// through the grace window, emitting nothing.
		s.ttl -= dt
		if s.ttl > 0 {
			return Group{}, false, false
		}
		s.tracking = false
	}

	best := pickBest(groups)
	s.trackedID = best.ClassID
	s.tracking = true
	s.ttl = s.maxTTL
	return best, true, true
}

// Reset drops the tracked identity.
func (s *Selector) Reset() {
	s.tracking = false
	s.ttl = 0
}

func pickBest(groups []Group) Group {
	best := groups[0]
	bestDist := best.MeanDistance()
	for _, g := range groups[1:] {
		if d := g.MeanDistance(); d < bestDist {
			best, bestDist = g, d
		}
	}
	return best
}
