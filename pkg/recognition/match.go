package recognition

// Candidate is a gallery entry a probe descriptor can be matched against.
type Candidate struct {
	ID         string
	Name       string
	Descriptor Descriptor
}

// Match is the result of a successful gallery lookup.
type Match struct {
	ID         string
	Name       string
	Confidence float64
}

// DistanceToConfidence converts a descriptor distance to a 0-100
// confidence score. Higher means more similar.
func DistanceToConfidence(distance float64) float64 {
	return (1 - distance) * 100
}

// MatchBest compares a probe descriptor against every candidate and
// returns the one with the highest confidence above threshold (percent).
// Comparison is strictly greater, so the first candidate reaching a
// given confidence wins ties. Returns false if no candidate clears the
// threshold.
func MatchBest(probe Descriptor, candidates []Candidate, threshold float64) (Match, bool) {
	var best Match
	bestConf := threshold
	found := false

	for _, c := range candidates {
		conf := DistanceToConfidence(EuclideanDistance(probe, c.Descriptor))
		if conf > bestConf {
			best = Match{ID: c.ID, Name: c.Name, Confidence: conf}
			bestConf = conf
			found = true
		}
	}

	return best, found
}

// Verify performs a 1:1 check of a probe descriptor against a specific
// reference descriptor. Unlike MatchBest this never consults the
// gallery: the probe must match this reference within tolerance
// (a distance, lower is stricter).
func Verify(probe, reference Descriptor, tolerance float64) bool {
	return EuclideanDistance(probe, reference) < tolerance
}
