package runner

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/waypoint/internal/presentation/tui"
	"github.com/aretw0/waypoint/pkg/domain"
)

// TextHandler renders steps as markdown cards and reads commands from a
// line-oriented reader.
type TextHandler struct {
	Writer   io.Writer
	Renderer tui.Renderer
	Prompt   string

	mu   sync.Mutex
	pump *linePump
}

// TextHandlerOption configures a TextHandler.
type TextHandlerOption func(*TextHandler)

// WithTextRenderer sets the markdown renderer.
func WithTextRenderer(r tui.Renderer) TextHandlerOption {
	return func(h *TextHandler) {
		h.Renderer = r
	}
}

// WithPrompt overrides the input prompt.
func WithPrompt(p string) TextHandlerOption {
	return func(h *TextHandler) {
		h.Prompt = p
	}
}

// NewTextHandler creates a handler for r and w, defaulting to stdin and stdout.
func NewTextHandler(r io.Reader, w io.Writer, opts ...TextHandlerOption) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	h := &TextHandler{
		Writer:   w,
		Renderer: tui.Plain,
		Prompt:   "> ",
		pump:     newLinePump(r),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *TextHandler) Step(ctx context.Context, step domain.Step, total int) error {
	out := tui.RenderStep(h.Renderer, step, total)
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := fmt.Fprintf(h.Writer, "\n%s\n\n", out)
	return err
}

func (h *TextHandler) Notice(ctx context.Context, kind, msg string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var err error
	switch kind {
	case NoticeHelp:
		_, err = fmt.Fprint(h.Writer, msg)
	case NoticeError:
		_, err = fmt.Fprintf(h.Writer, "error: %s\n", msg)
	default:
		_, err = fmt.Fprintf(h.Writer, "[%s] %s\n", kind, msg)
	}
	return err
}

func (h *TextHandler) Input(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		h.mu.Lock()
		fmt.Fprint(h.Writer, h.Prompt)
		h.mu.Unlock()

		line, err := h.pump.next(ctx)
		if err != nil {
			return "", err
		}
		clean, err := SanitizeCommand(line)
		if err != nil {
			_ = h.Notice(ctx, NoticeError, err.Error())
			continue
		}
		return clean, nil
	}
}
