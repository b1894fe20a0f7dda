package history

import (
	"context"
	"fmt"

	"github.com/montanaflynn/stats"
)

// Summary aggregates the recorded screenings
type Summary struct {
	Count                    int     `json:"count"`
	AtRisk                   int     `json:"at_risk"`
	AtRiskRate               float64 `json:"at_risk_rate"`
	MeanProbabilityStunted   float64 `json:"mean_probability_stunted"`
	MedianProbabilityStunted float64 `json:"median_probability_stunted"`
	MaxProbabilityStunted    float64 `json:"max_probability_stunted"`
}

// Summary computes counts and stunted-probability statistics over every entry
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	var rows []struct {
		Probability float64 `db:"probability_stunted"`
		AtRisk      bool    `db:"at_risk"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT probability_stunted, at_risk FROM screenings`); err != nil {
		return Summary{}, fmt.Errorf("failed to summarize screenings: %w", err)
	}

	var sum Summary
	if len(rows) == 0 {
		return sum, nil
	}

	probs := make(stats.Float64Data, len(rows))
	for i, r := range rows {
		probs[i] = r.Probability
		if r.AtRisk {
			sum.AtRisk++
		}
	}
	sum.Count = len(rows)
	sum.AtRiskRate = float64(sum.AtRisk) / float64(sum.Count)

	var err error
	if sum.MeanProbabilityStunted, err = stats.Mean(probs); err != nil {
		return Summary{}, err
	}
	if sum.MedianProbabilityStunted, err = stats.Median(probs); err != nil {
		return Summary{}, err
	}
	if sum.MaxProbabilityStunted, err = stats.Max(probs); err != nil {
		return Summary{}, err
	}
	return sum, nil
}
