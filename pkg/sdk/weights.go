package vecmatch

import (
	"fmt"
	"time"
)

// Weights returns the current category weights.
func (c *Client) Weights() Weights {
	return fromDomainWeights(c.weightsSvc.Snapshot().Weights)
}

// UpdateWeights replaces the weights used by subsequent rankings.
// Every category must be present; on error the current weights stay.
func (c *Client) UpdateWeights(w Weights, updatedBy string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("update_weights", start, err) }()

	ws, err := toDomainWeights(w)
	if err != nil {
		return fmt.Errorf("update weights: %w", err)
	}
	if ws == nil {
		return fmt.Errorf("update weights: %w", ErrInvalidWeights)
	}
	if _, err = c.weightsSvc.Update(*ws, updatedBy); err != nil {
		return fmt.Errorf("update weights: %w", err)
	}
	return nil
}
