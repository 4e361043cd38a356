package app

import (
	"log/slog"
	"sync"
)

// Transport is the write side of one player connection. Implementations
// bound each write with a deadline so a stuck socket fails instead of
// blocking forever.
type Transport interface {
	WriteMessage(msg []byte) error
	Close() error
}

// Peer is a registered player connection. Messages are offered to a bounded
// queue while the session lock is held and written by the peer's own
// goroutine, so a slow socket never stalls the session or other peers.
type Peer struct {
	identity  string
	transport Transport
	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	onFailure func(*Peer)
}

func newPeer(identity string, t Transport, buffer int, onFailure func(*Peer)) *Peer {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Peer{
		identity:  identity,
		transport: t,
		queue:     make(chan []byte, buffer),
		done:      make(chan struct{}),
		onFailure: onFailure,
	}
}

func (p *Peer) Identity() string { return p.identity }

// Done is closed once the peer has been dropped or has left.
func (p *Peer) Done() <-chan struct{} { return p.done }

// offer enqueues msg without blocking and reports whether it was accepted.
func (p *Peer) offer(msg []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.queue <- msg:
		return true
	default:
		return false
	}
}

func (p *Peer) writeLoop() {
	defer func() {
		if err := p.transport.Close(); err != nil {
			slog.Debug("peer: close transport", "player", p.identity, "error", err)
		}
	}()

	for {
		select {
		case <-p.done:
			return
		case msg := <-p.queue:
			if err := p.transport.WriteMessage(msg); err != nil {
				slog.Warn("peer: write failed", "player", p.identity, "error", err)
				p.close()
				if p.onFailure != nil {
					p.onFailure(p)
				}
				return
			}
		}
	}
}

// close stops the writer; the writer closes the transport on its way out.
func (p *Peer) close() {
	p.closeOnce.Do(func() {
		close(p.done)
	})
}
