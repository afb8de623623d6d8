package runner

import (
	"context"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Notice kinds reported to a Handler.
const (
	NoticeComplete = "complete"
	NoticeSkipped  = "skipped"
	NoticeStopped  = "stopped"
	NoticeRoute    = "route"
	NoticeError    = "error"
	NoticeHelp     = "help"
)

// Handler is the strategy for presenting a tour and reading commands.
// Text and JSON-lines implementations are provided.
type Handler interface {
	// Step presents the step the engine just showed.
	Step(ctx context.Context, step domain.Step, total int) error

	// Notice reports anything that is not a step.
	Notice(ctx context.Context, kind, msg string) error

	// Input blocks until a command line is read or ctx is done. It returns
	// io.EOF once the source is exhausted.
	Input(ctx context.Context) (string, error)
}
