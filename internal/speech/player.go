package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// Synthesizer turns text into encoded audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// AudioSink receives synthesized chunks in order.
type AudioSink interface {
	Deliver(ctx context.Context, index, total int, audio []byte) error
}

// SynthesisPlayer plays a script by synthesizing it chunk by chunk and
// handing each chunk to a sink. Pausing holds the next chunk.
type SynthesisPlayer struct {
	synth    Synthesizer
	sink     AudioSink
	maxRunes int

	mu     sync.Mutex
	paused bool
	resume chan struct{}
}

func NewSynthesisPlayer(synth Synthesizer, sink AudioSink, maxRunes int) *SynthesisPlayer {
	if maxRunes <= 0 {
		maxRunes = MaxInputRunes
	}

	return &SynthesisPlayer{
		synth:    synth,
		sink:     sink,
		maxRunes: maxRunes,
		resume:   make(chan struct{}),
	}
}

func (p *SynthesisPlayer) Play(ctx context.Context, script string) error {
	chunks := Chunk(script, p.maxRunes)

	for i, chunk := range chunks {
		if err := p.wait(ctx); err != nil {
			return err
		}

		audio, err := p.synth.Synthesize(ctx, chunk)
		if err != nil {
			return fmt.Errorf("synthesize chunk %d: %w", i, err)
		}

		if err = ctx.Err(); err != nil {
			return err
		}

		if err = p.sink.Deliver(ctx, i, len(chunks), audio); err != nil {
			return fmt.Errorf("deliver chunk %d: %w", i, err)
		}
	}

	return nil
}

func (p *SynthesisPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paused = true
}

func (p *SynthesisPlayer) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.paused {
		p.paused = false
		close(p.resume)
		p.resume = make(chan struct{})
	}
}

func (p *SynthesisPlayer) wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		paused, resume := p.paused, p.resume
		p.mu.Unlock()

		if !paused {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-resume:
		}
	}
}

// Chunk splits a script into pieces of at most maxRunes runes, preferring
// sentence boundaries and then word boundaries.
func Chunk(script string, maxRunes int) []string {
	script = strings.TrimSpace(script)
	if script == "" {
		return nil
	}

	if maxRunes <= 0 || utf8.RuneCountInString(script) <= maxRunes {
		return []string{script}
	}

	var (
		chunks  []string
		current strings.Builder
		size    int
	)

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		size = 0
	}

	for _, piece := range splitSentences(script) {
		n := utf8.RuneCountInString(piece)

		if n > maxRunes {
			flush()
			chunks = append(chunks, splitWords(piece, maxRunes)...)
			continue
		}

		if size > 0 && size+1+n > maxRunes {
			flush()
		}

		if size > 0 {
			current.WriteByte(' ')
			size++
		}
		current.WriteString(piece)
		size += n
	}
	flush()

	return chunks
}

func splitSentences(text string) []string {
	var (
		out   []string
		start int
	)

	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}

		end := i + utf8.RuneLen(r)
		if end < len(text) && text[end] != ' ' {
			continue
		}

		if s := strings.TrimSpace(text[start:end]); s != "" {
			out = append(out, s)
		}
		start = end
	}

	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}

	return out
}

func splitWords(text string, maxRunes int) []string {
	var (
		out     []string
		current []rune
	)

	for _, word := range strings.Fields(text) {
		w := []rune(word)

		for len(w) > maxRunes {
			if len(current) > 0 {
				out = append(out, string(current))
				current = nil
			}
			out = append(out, string(w[:maxRunes]))
			w = w[maxRunes:]
		}

		if len(current) > 0 && len(current)+1+len(w) > maxRunes {
			out = append(out, string(current))
			current = nil
		}

		if len(current) > 0 {
			current = append(current, ' ')
		}
		current = append(current, w...)
	}

	if len(current) > 0 {
		out = append(out, string(current))
	}

	return out
}
