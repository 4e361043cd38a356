package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

// Registry tracks live player connections by identity. It is not safe for
// concurrent use; Session serializes access.
type Registry struct {
	peers map[string]*Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*Peer)}
}

// Register adds p under identity, rejecting identities that are already
// connected.
func (r *Registry) Register(identity string, p *Peer) error {
	if _, ok := r.peers[identity]; ok {
		return domain.ErrDuplicateIdentity
	}
	r.peers[identity] = p
	return nil
}

// Unregister removes p if it is still the connection registered for its
// identity, so a stale connection cannot evict a reconnected player.
func (r *Registry) Unregister(identity string, p *Peer) bool {
	cur, ok := r.peers[identity]
	if !ok || cur != p {
		return false
	}
	delete(r.peers, identity)
	return true
}

func (r *Registry) Lookup(identity string) (*Peer, bool) {
	p, ok := r.peers[identity]
	return p, ok
}

func (r *Registry) Count() int { return len(r.peers) }

// Identities returns the connected identities in sorted order.
func (r *Registry) Identities() []string {
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Peers returns a snapshot of the registered peers.
func (r *Registry) Peers() []*Peer {
	out := make([]*Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Broadcast offers msg to every peer and returns the peers that could not
// take it. It never blocks on the network.
func (r *Registry) Broadcast(msg []byte) []*Peer {
	var failed []*Peer
	for _, p := range r.peers {
		if !p.offer(msg) {
			failed = append(failed, p)
		}
	}
	return failed
}
