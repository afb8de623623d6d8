package runner

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Message is one JSON line written by JSONHandler.
type Message struct {
	Type    string       `json:"type"`
	Step    *domain.Step `json:"step,omitempty"`
	Total   int          `json:"total,omitempty"`
	Message string       `json:"message,omitempty"`
}

// JSONHandler speaks JSON lines for headless hosts. Commands may arrive as
// JSON strings ("next") or raw text.
type JSONHandler struct {
	mu   sync.Mutex
	enc  *json.Encoder
	pump *linePump
}

// NewJSONHandler creates a handler for r and w, defaulting to stdin and stdout.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{enc: json.NewEncoder(w), pump: newLinePump(r)}
}

func (h *JSONHandler) emit(m Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.enc.Encode(m)
}

func (h *JSONHandler) Step(ctx context.Context, step domain.Step, total int) error {
	return h.emit(Message{Type: "step", Step: &step, Total: total})
}

func (h *JSONHandler) Notice(ctx context.Context, kind, msg string) error {
	return h.emit(Message{Type: kind, Message: msg})
}

func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	for {
		line, err := h.pump.next(ctx)
		if err != nil {
			return "", err
		}
		line = strings.TrimSpace(line)
		var s string
		if err := json.Unmarshal([]byte(line), &s); err == nil {
			line = s
		}
		clean, err := SanitizeCommand(line)
		if err != nil {
			_ = h.Notice(ctx, NoticeError, err.Error())
			continue
		}
		return clean, nil
	}
}
