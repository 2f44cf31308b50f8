package interfaces

import "context"

// GameSessions is the boundary to the game server's session machinery. All
// mutating calls are marshaled onto the game tick thread by the implementation;
// callers may invoke them from any goroutine.
type GameSessions interface {
	// Lookup returns the live session id for an account, if online.
	Lookup(accountID string) (sessionID string, ok bool)

	// OriginOf returns the network origin a session connected from.
	OriginOf(sessionID string) (origin string, ok bool)

	// SessionsByOrigin returns all live session ids from an origin.
	SessionsByOrigin(origin string) []string

	Freeze(sessionID string)
	Unfreeze(sessionID string)
	Kick(sessionID, reason string)

	// Message sends a chat line to a session; best effort.
	Message(sessionID, text string)

	// RunOnGameThread schedules fn on the tick thread. It must never block the
	// caller.
	RunOnGameThread(fn func())
}

// SessionEventSource is implemented by the core to receive session lifecycle
// callbacks from the game server.
type SessionEventSource interface {
	OnSessionStart(ctx context.Context, accountID, displayName, sessionID, origin string)
	OnSessionQuit(ctx context.Context, accountID string)
}
