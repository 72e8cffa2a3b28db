package keepalive

import (
	"slices"
	"sync"
)

// Registry tracks which connections exist, the host each belongs to, and
// whether each is idle. All three views change together under one lock,
// and no method does I/O while holding it.
type Registry struct {
	mu     sync.Mutex
	hosts  map[string][]*Conn
	owners map[*Conn]string
	ready  map[*Conn]bool
}

func NewRegistry() *Registry {
	return &Registry{
		hosts:  make(map[string][]*Conn),
		owners: make(map[*Conn]string),
		ready:  make(map[*Conn]bool),
	}
}

// Add registers conn under host. A conn already registered is moved.
func (r *Registry) Add(host string, conn *Conn, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[conn]; ok {
		r.removeLocked(conn)
	}
	r.hosts[host] = append(r.hosts[host], conn)
	r.owners[conn] = host
	r.ready[conn] = ready
}

// Remove forgets conn. Unknown connections are ignored.
func (r *Registry) Remove(conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(conn)
}

func (r *Registry) removeLocked(conn *Conn) {
	host, ok := r.owners[conn]
	if !ok {
		return
	}
	delete(r.owners, conn)
	delete(r.ready, conn)

	conns := slices.DeleteFunc(r.hosts[host], func(c *Conn) bool { return c == conn })
	if len(conns) == 0 {
		delete(r.hosts, host)
		return
	}
	r.hosts[host] = conns
}

// SetReady marks conn idle or in use. Unknown connections are ignored.
func (r *Registry) SetReady(conn *Conn, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ready[conn]; ok {
		r.ready[conn] = ready
	}
}

// ReadyConn claims the first idle connection for host and marks it in use.
// It returns nil when host has no idle connection.
func (r *Registry) ReadyConn(host string) *Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, conn := range r.hosts[host] {
		if r.ready[conn] {
			r.ready[conn] = false
			return conn
		}
	}
	return nil
}

// Ready reports whether conn is idle and whether it is registered at all.
func (r *Registry) Ready(conn *Conn) (ready, known bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ready, known = r.ready[conn]
	return ready, known
}

// Conns returns a copy of host's connections.
func (r *Registry) Conns(host string) []*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.hosts[host])
}

// All returns a copy of every host's connections.
func (r *Registry) All() map[string][]*Conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make(map[string][]*Conn, len(r.hosts))
	for host, conns := range r.hosts {
		all[host] = slices.Clone(conns)
	}
	return all
}
