package server

import (
	"sync"
)

// RoomManager tracks the optional room scope of sessions. A session with
// no room participates in the global scope; broadcasts carrying a room
// name reach only that room's members.
type RoomManager struct {
	mu      sync.RWMutex
	members map[string]map[string]bool // room -> set of sessionIDs
}

// NewRoomManager creates a new room manager.
func NewRoomManager() *RoomManager {
	return &RoomManager{
		members: make(map[string]map[string]bool),
	}
}

// Join adds a session to a room, removing it from any previous room.
// Returns the previous room, or "" if the session was unscoped.
func (rm *RoomManager) Join(sessionID, room string) (prev string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for name, sessions := range rm.members {
		if sessions[sessionID] {
			delete(sessions, sessionID)
			prev = name
			if len(sessions) == 0 {
				delete(rm.members, name)
			}
			break
		}
	}

	if _, ok := rm.members[room]; !ok {
		rm.members[room] = make(map[string]bool)
	}
	rm.members[room][sessionID] = true
	return prev
}

// Leave removes a session from its room, if any, and returns it.
func (rm *RoomManager) Leave(sessionID string) (room string) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for name, sessions := range rm.members {
		if sessions[sessionID] {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(rm.members, name)
			}
			return name
		}
	}
	return ""
}

// RoomOf returns the room a session is in, or "" if unscoped.
func (rm *RoomManager) RoomOf(sessionID string) string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	for name, sessions := range rm.members {
		if sessions[sessionID] {
			return name
		}
	}
	return ""
}

// Members returns all session IDs in a room.
func (rm *RoomManager) Members(room string) []string {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	sessions := rm.members[room]
	result := make([]string, 0, len(sessions))
	for sid := range sessions {
		result = append(result, sid)
	}
	return result
}
