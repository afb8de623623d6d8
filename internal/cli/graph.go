package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/waypoint/internal/presentation/graph"
	"github.com/aretw0/waypoint/pkg/domain"
)

// Graph writes the tour as a Mermaid flowchart. With a session ID, the step
// saved for that session and the ones before it are highlighted.
func (s *Stack) Graph(ctx context.Context, out io.Writer, sessionID string) error {
	def, err := s.Loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tour: %w", err)
	}

	var overlay *graph.Overlay
	if sessionID != "" {
		p, err := s.Store.Load(ctx, sessionID)
		switch {
		case errors.Is(err, domain.ErrProgressNotFound):
			s.Logger.Warn("no saved progress, drawing without overlay", "session_id", sessionID)
		case err != nil:
			return err
		case p.TourID == def.ID:
			overlay = &graph.Overlay{Current: p.StepIndex}
			for i := 0; i < p.StepIndex; i++ {
				overlay.Visited = append(overlay.Visited, i)
			}
		}
	}
	_, err = io.WriteString(out, graph.GenerateMermaid(def, overlay))
	return err
}
