package mood

// Stage count bounds for an arc.
const (
	MinStages     = 2
	MaxStages     = 10
	DefaultStages = 5
)

// ClampStages bounds a requested stage count to [MinStages, MaxStages].
func ClampStages(stages int) int {
	return max(MinStages, min(MaxStages, stages))
}

// MakeArc produces per-stage feature targets moving linearly from start to end.
//
// Both endpoints go through Validate first, so partial mappings are accepted.
// The stage count is clamped to [2,10]. The first element equals the validated
// start and the last equals the validated end exactly.
func MakeArc(start, end any, stages int) ([]Vector, error) {
	stages = ClampStages(stages)

	from, err := validateNamed(start, "start")
	if err != nil {
		return nil, err
	}
	to, err := validateNamed(end, "end")
	if err != nil {
		return nil, err
	}

	arc := make([]Vector, stages)
	for i := range stages {
		t := float64(i) / float64(stages-1)
		arc[i] = Lerp(from, to, t)
	}
	return arc, nil
}

// Lerp interpolates pointwise between a and b at t, clamping each value.
// It is exact at t=0 and t=1.
func Lerp(a, b Vector, t float64) Vector {
	var out Vector
	for i := range out {
		out[i] = Clamp01(a[i]*(1-t) + b[i]*t)
	}
	return out
}
