package runner

import (
	"bufio"
	"context"
	"io"
	"sync"
)

type inputResult struct {
	text string
	err  error
}

// linePump reads lines on a goroutine so Input can honor cancellation.
type linePump struct {
	reader *bufio.Reader
	ch     chan inputResult
	once   sync.Once
}

func newLinePump(r io.Reader) *linePump {
	return &linePump{reader: bufio.NewReader(r)}
}

func (p *linePump) start() {
	p.once.Do(func() {
		p.ch = make(chan inputResult)
		go p.run()
	})
}

func (p *linePump) run() {
	defer close(p.ch)
	for {
		text, err := p.reader.ReadString('\n')
		if text != "" {
			p.ch <- inputResult{text: text}
		}
		if err != nil {
			if err != io.EOF {
				p.ch <- inputResult{err: err}
			}
			return
		}
	}
}

// next returns the next raw line.
func (p *linePump) next(ctx context.Context) (string, error) {
	p.start()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-p.ch:
		if !ok {
			return "", io.EOF
		}
		return res.text, res.err
	}
}
