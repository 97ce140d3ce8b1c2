// Package speech owns narration playback. A Channel plays one script at a
// time: starting a new narration cancels the one in flight.
package speech

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

var ErrEmptyScript = errors.New("narration script is empty")

// Player plays a script. Play blocks until playback ends or ctx is done.
type Player interface {
	Play(ctx context.Context, script string) error
}

// Pauser is implemented by players that can hold playback.
type Pauser interface {
	Pause()
	Resume()
}

type Channel struct {
	mu      sync.Mutex
	player  Player
	current *Narration
	nextID  uint64
	log     *slog.Logger
}

// Narration is the handle of one Start call. Once another narration starts
// the handle goes stale and its controls become no-ops.
type Narration struct {
	id     uint64
	ch     *Channel
	cancel context.CancelFunc
	done   chan struct{}
	err    error
	paused bool
}

func NewChannel(player Player, log *slog.Logger) *Channel {
	if log == nil {
		log = slog.Default()
	}

	return &Channel{player: player, log: log}
}

// Start cancels any narration in flight and starts playing script.
func (c *Channel) Start(ctx context.Context, script string) (*Narration, error) {
	if strings.TrimSpace(script) == "" {
		return nil, ErrEmptyScript
	}

	c.mu.Lock()
	if c.current != nil {
		c.current.cancel()
		c.log.DebugContext(ctx, "Narration is superseded",
			"narrationID", c.current.id)
	}

	c.nextID++
	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	n := &Narration{
		id:     c.nextID,
		ch:     c,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.current = n
	c.setPlayerPausedLocked(false)
	c.mu.Unlock()

	go c.play(playCtx, n, script)

	return n, nil
}

func (c *Channel) play(ctx context.Context, n *Narration, script string) {
	err := c.player.Play(ctx, script)

	c.mu.Lock()
	n.err = err
	if c.current == n {
		c.current = nil
	}
	c.mu.Unlock()

	n.cancel()
	close(n.done)

	switch {
	case err == nil:
		c.log.DebugContext(ctx, "Narration is finished",
			"narrationID", n.id,
			"scriptLen", len(script))
	case errors.Is(err, context.Canceled):
		c.log.DebugContext(ctx, "Narration is cancelled",
			"narrationID", n.id)
	default:
		c.log.ErrorContext(ctx, "Failed to play narration",
			"error", err,
			"narrationID", n.id,
			"scriptLen", len(script))
	}
}

// Cancel stops the narration in flight, if any.
func (c *Channel) Cancel() {
	c.mu.Lock()
	n := c.current
	c.current = nil
	c.mu.Unlock()

	if n != nil {
		n.cancel()
	}
}

func (c *Channel) Current() *Narration {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Speaking reports whether a narration is in flight.
func (c *Channel) Speaking() bool {
	return c.Current() != nil
}

func (n *Narration) ID() uint64 {
	return n.id
}

// Done is closed once playback has ended.
func (n *Narration) Done() <-chan struct{} {
	return n.done
}

// Err returns the playback result after Done is closed.
func (n *Narration) Err() error {
	select {
	case <-n.done:
	default:
		return nil
	}

	n.ch.mu.Lock()
	defer n.ch.mu.Unlock()

	return n.err
}

// Active reports whether this narration is still the channel's current one.
func (n *Narration) Active() bool {
	n.ch.mu.Lock()
	defer n.ch.mu.Unlock()

	return n.ch.current == n
}

func (n *Narration) Paused() bool {
	n.ch.mu.Lock()
	defer n.ch.mu.Unlock()

	return n.ch.current == n && n.paused
}

// Pause holds playback. It reports false for a stale handle.
func (n *Narration) Pause() bool {
	return n.setPaused(true)
}

// Resume continues held playback. It reports false for a stale handle.
func (n *Narration) Resume() bool {
	return n.setPaused(false)
}

// TogglePause flips between paused and playing and returns the new paused
// state. A stale handle reports false.
func (n *Narration) TogglePause() bool {
	n.ch.mu.Lock()
	paused := !n.paused
	n.ch.mu.Unlock()

	if !n.setPaused(paused) {
		return false
	}

	return paused
}

func (n *Narration) setPaused(paused bool) bool {
	n.ch.mu.Lock()
	defer n.ch.mu.Unlock()

	if n.ch.current != n {
		return false
	}
	n.paused = paused
	n.ch.setPlayerPausedLocked(paused)

	return true
}

// setPlayerPausedLocked drives the player under c.mu so a stale handle can
// never hold the player of a newer narration.
func (c *Channel) setPlayerPausedLocked(paused bool) {
	p, ok := c.player.(Pauser)
	if !ok {
		return
	}

	if paused {
		p.Pause()
	} else {
		p.Resume()
	}
}

// Cancel stops this narration. It is a no-op for a stale handle.
func (n *Narration) Cancel() {
	n.ch.mu.Lock()
	if n.ch.current != n {
		n.ch.mu.Unlock()
		return
	}
	n.ch.current = nil
	n.ch.mu.Unlock()

	n.cancel()
}
