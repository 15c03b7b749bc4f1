package cli

import (
	"io"
	"sync"

	"github.com/goccy/go-json"
	"github.com/oklahomer/go-kasumi/logger"

	discord "github.com/oklahomer/go-discord-bridge"
)

// result is printed once per instruction.
type result struct {
	Type        string `json:"type"`
	Instruction string `json:"instruction"`
	ID          string `json:"id,omitempty"`
	Action      string `json:"action,omitempty"`
	OK          bool   `json:"ok"`
	Error       string `json:"error,omitempty"`
}

type eventLine struct {
	Type string `json:"type"`
	*discord.Event
}

// printer writes JSON lines. Events arrive on the Host loop, results on waiting goroutines.
type printer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newPrinter(w io.Writer) *printer {
	return &printer{enc: json.NewEncoder(w)}
}

func (p *printer) event(event *discord.Event) {
	p.write(&eventLine{Type: "event", Event: event})
}

func (p *printer) result(line string, pending *discord.Pending, err error) {
	r := &result{
		Type:        "result",
		Instruction: line,
		OK:          err == nil,
	}
	if pending != nil {
		r.ID = pending.ID
		r.Action = string(pending.Action)
	}
	if err != nil {
		r.Error = err.Error()
	}
	p.write(r)
}

func (p *printer) write(v interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.enc.Encode(v); err != nil {
		logger.Errorf("Failed to write output: %+v", err)
	}
}
