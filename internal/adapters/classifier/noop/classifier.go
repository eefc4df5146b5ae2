// Package noop provides a classifier that reports the capability as
// unavailable. It is the default provider: with it, the pipeline runs
// entirely on the deterministic detection layers.
package noop

import (
	"context"

	"github.com/armourmail/armourmail/internal/core"
)

// Classifier always returns core.ErrClassifierUnavailable.
type Classifier struct{}

// NewClassifier creates the no-op classifier.
func NewClassifier() *Classifier { return &Classifier{} }

// Classify reports the capability unavailable; the aggregator handles
// this fail-open.
func (c *Classifier) Classify(_ context.Context, _ string) (*core.ClassifierResult, error) {
	return nil, core.ErrClassifierUnavailable
}
