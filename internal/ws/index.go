package ws

import "sync"

// SessionIndex maintains the session to connection-set mapping. The reverse
// direction (connection to session) lives on the Client itself. A session
// entry is removed the moment its connection set becomes empty.
type SessionIndex struct {
	mu       sync.RWMutex
	sessions map[string]map[string]struct{}
}

// NewSessionIndex creates an empty SessionIndex.
func NewSessionIndex() *SessionIndex {
	return &SessionIndex{
		sessions: make(map[string]map[string]struct{}),
	}
}

// Attach records that a connection belongs to a session.
func (i *SessionIndex) Attach(sessionID, connectionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	set, ok := i.sessions[sessionID]
	if !ok {
		set = make(map[string]struct{})
		i.sessions[sessionID] = set
	}
	set[connectionID] = struct{}{}
}

// Detach removes a connection from a session's set, evicting the session
// entry entirely once the set is empty.
func (i *SessionIndex) Detach(sessionID, connectionID string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	set, ok := i.sessions[sessionID]
	if !ok {
		return
	}
	delete(set, connectionID)
	if len(set) == 0 {
		delete(i.sessions, sessionID)
	}
}

// Snapshot returns a copy of the connection ids currently attached to a
// session. Connections added after the snapshot is taken are not included.
func (i *SessionIndex) Snapshot(sessionID string) []string {
	i.mu.RLock()
	defer i.mu.RUnlock()

	set, ok := i.sessions[sessionID]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// ConnectionCount returns the number of connections attached to a session.
func (i *SessionIndex) ConnectionCount(sessionID string) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.sessions[sessionID])
}

// Has reports whether the session has an entry in the index.
func (i *SessionIndex) Has(sessionID string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.sessions[sessionID]
	return ok
}

// SessionCount returns the number of sessions with at least one connection.
func (i *SessionIndex) SessionCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.sessions)
}
