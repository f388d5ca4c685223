package pkg

import "github.com/google/uuid"

// GenerateGameID returns an unguessable game identifier. Sharing it is the
// only way to discover a session, so it must not be enumerable.
func GenerateGameID() string {
	return uuid.NewString()
}

// GenerateNewSessionID returns a fresh per-connection identity.
func GenerateNewSessionID() string {
	return uuid.NewString()
}
