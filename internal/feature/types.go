package feature

// Vector is a fixed-dimension feature vector. Its length is determined by
// the extractor that produced it: one weight per vocabulary term followed
// by the derived scalar features.
type Vector []float64

// Features holds the extracted representation of a single query.
type Features struct {
	// Vector is the numeric representation used for anomaly scoring.
	Vector Vector

	// TokenCount is the number of tokens in the query.
	TokenCount int

	// AvgTokenLen is the mean token length in characters.
	AvgTokenLen float64

	// PunctDensity is the fraction of non-alphanumeric characters.
	PunctDensity float64

	// UnknownTokens counts tokens absent from the fitted vocabulary.
	UnknownTokens int
}

// Complexity derives a complexity score from extracted features. It grows
// with query length, and tokens outside the fitted vocabulary count double
// since rare terms tend to need more capable models.
func Complexity(f *Features) float64 {
	return float64(f.TokenCount + f.UnknownTokens)
}
