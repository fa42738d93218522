package eventbus

import (
	"context"

	"github.com/clearlamp/clearlamp/app/shared"
)

// InitializeStreams creates the JetStream streams the core publishes to.
func InitializeStreams(ctx context.Context, bus shared.EventBus) error {
	streams := []struct {
		name    string
		subject string
	}{
		{"import", "import.*"},
		{"chart", "chart.*"},
	}

	for _, s := range streams {
		if err := bus.CreateStream(ctx, s.name, s.subject); err != nil {
			return err
		}
	}
	return nil
}
