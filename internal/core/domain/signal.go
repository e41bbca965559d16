package domain

// Axis is a semantic dimension of interpretation.
type Axis string

const (
	AxisRelationship Axis = "relationship"
	AxisCareer       Axis = "career"
	AxisWealth       Axis = "wealth"
	AxisHealth       Axis = "health"
	AxisEmotion      Axis = "emotion"
	AxisLifePath     Axis = "life_path"
	AxisTiming       Axis = "timing"
	AxisIdentity     Axis = "identity"
	AxisGeneral      Axis = "general"
)

// Axes lists the full axis vocabulary in canonical order.
var Axes = []Axis{
	AxisRelationship,
	AxisCareer,
	AxisWealth,
	AxisHealth,
	AxisEmotion,
	AxisLifePath,
	AxisTiming,
	AxisIdentity,
	AxisGeneral,
}

var axisSet = func() map[Axis]struct{} {
	out := make(map[Axis]struct{}, len(Axes))
	for _, a := range Axes {
		out[a] = struct{}{}
	}
	return out
}()

// ParseAxis maps a raw token onto the axis vocabulary, falling back to general.
func ParseAxis(raw string) Axis {
	if _, ok := axisSet[Axis(raw)]; ok {
		return Axis(raw)
	}
	return AxisGeneral
}

// Signal is one advanced observation extracted from a chart payload.
type Signal struct {
	Key        string  `json:"key"`
	Label      string  `json:"label"`
	Value      string  `json:"value"`
	Importance float64 `json:"importance"`
	Tags       []Axis  `json:"tags,omitempty"`
	RawPath    string  `json:"raw_path,omitempty"`
}

// HasTag reports whether the signal carries the given axis tag.
func (s Signal) HasTag(axis Axis) bool {
	for _, t := range s.Tags {
		if t == axis {
			return true
		}
	}
	return false
}

// TagOverlap counts tags shared with the given axis set.
func (s Signal) TagOverlap(axes []Axis) int {
	n := 0
	for _, t := range s.Tags {
		for _, a := range axes {
			if t == a {
				n++
				break
			}
		}
	}
	return n
}

// ClampImportance bounds importance into [0,1].
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
