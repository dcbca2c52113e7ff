package ml

import (
	"context"
	"fmt"
	"sync"

	"NewsScanner/internal/ports"
)

// Lazy defers building a label model until the first classification.
// The loader runs at most once, even under concurrent first calls; its
// result, model or error, is kept for the life of the process.
type Lazy struct {
	load func() (ports.LabelModel, error)
}

var _ ports.LabelModel = (*Lazy)(nil)

// NewLazy wraps a loader.
func NewLazy(loader func() (ports.LabelModel, error)) *Lazy {
	return &Lazy{load: sync.OnceValues(loader)}
}

// Classify loads the model on first use, then delegates.
func (l *Lazy) Classify(ctx context.Context, text string, labels []string) (ports.Distribution, error) {
	model, err := l.load()
	if err != nil {
		return nil, fmt.Errorf("load label model: %w", err)
	}
	return model.Classify(ctx, text, labels)
}
