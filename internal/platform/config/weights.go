package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Static errors for config validation.
var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrInvalidWeights = errors.New("invalid scoring weights")
)

// Feature names accepted in SCORING_WEIGHTS.
const (
	FeatureDuplicateRatio     = "duplicateRatio"
	FeatureRateAnomaly        = "rateAnomaly"
	FeatureAccountAge         = "accountAge"
	FeatureEngagementMismatch = "engagementMismatch"
)

var knownFeatures = map[string]struct{}{
	FeatureDuplicateRatio:     {},
	FeatureRateAnomaly:        {},
	FeatureAccountAge:         {},
	FeatureEngagementMismatch: {},
}

// ParseWeights parses a "feature:weight,feature:weight" list into a weight map.
// Unknown feature names and non-positive totals are rejected so a typo cannot
// silently zero out a scoring signal.
func ParseWeights(spec string) (map[string]float64, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty spec", ErrInvalidWeights)
	}

	weights := make(map[string]float64)
	total := 0.0

	for _, pair := range strings.Split(spec, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			return nil, fmt.Errorf("%w: %q is not feature:weight", ErrInvalidWeights, pair)
		}

		name = strings.TrimSpace(name)
		if _, known := knownFeatures[name]; !known {
			return nil, fmt.Errorf("%w: unknown feature %q", ErrInvalidWeights, name)
		}

		if _, dup := weights[name]; dup {
			return nil, fmt.Errorf("%w: duplicate feature %q", ErrInvalidWeights, name)
		}

		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: weight for %q: %s", ErrInvalidWeights, name, err)
		}

		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight for %q", ErrInvalidWeights, name)
		}

		weights[name] = w
		total += w
	}

	if total <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidWeights)
	}

	return weights, nil
}
