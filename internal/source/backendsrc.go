package source

import (
	"context"
	"fmt"

	"github.com/crimson-sun/logdeck/internal/backend"
	"github.com/crimson-sun/logdeck/internal/model"
)

// Backend reads one named service's log snapshot from the backend API.
type Backend struct {
	id     string
	client *backend.Client
}

// NewBackend creates a Backend source for the given service id.
func NewBackend(id string, client *backend.Client) *Backend {
	return &Backend{id: id, client: client}
}

func (b *Backend) ID() string { return b.id }

func (b *Backend) Fetch(ctx context.Context, maxLines int) ([]model.LogLine, error) {
	snap, err := b.client.Logs(ctx, b.id, maxLines)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", b.id, err)
	}
	return snap.SplitLines(), nil
}
