package registry

import (
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/mancala-backend/internal/apperror"
	"github.com/rocketscienceinc/mancala-backend/internal/entity"
)

func newTestRegistry(onEvict func(gameID string)) *Registry {
	return New(slog.Default(), 10*time.Millisecond, onEvict)
}

func TestRegistry_CreateAndGet(t *testing.T) {
	// Given: an empty registry
	sessions := newTestRegistry(nil)

	// When: a host opens a session
	session := sessions.Create("host-1")

	// Then: the session holds a waiting game with the host in slot 0
	require.NotNil(t, session.Game)
	assert.Equal(t, entity.StatusWaiting, session.Game.Status)

	session.Lock()
	role, ok := session.RoleOf("host-1")
	session.Unlock()
	require.True(t, ok)
	assert.Equal(t, roleHost, role)

	// Then: the session is reachable by game id and by participant
	found, err := sessions.Get(session.Game.ID)
	require.NoError(t, err)
	assert.Same(t, session, found)

	found, err = sessions.ByParticipant("host-1")
	require.NoError(t, err)
	assert.Same(t, session, found)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	sessions := newTestRegistry(nil)

	_, err := sessions.Get("missing")
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)

	_, err = sessions.ByParticipant("nobody")
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)
}

func TestRegistry_Join(t *testing.T) {
	t.Run("Joining a waiting session starts the game", func(t *testing.T) {
		// Given: a hosted session waiting for a second player
		sessions := newTestRegistry(nil)
		session := sessions.Create("host-1")

		// When: a second participant joins
		joined, role, err := sessions.Join(session.Game.ID, "joiner-1")
		require.NoError(t, err)

		// Then: the joiner got slot 1 and the game is running
		assert.Same(t, session, joined)
		assert.Equal(t, roleJoiner, role)
		assert.Equal(t, entity.StatusInProgress, session.Game.Status)

		found, err := sessions.ByParticipant("joiner-1")
		require.NoError(t, err)
		assert.Same(t, session, found)
	})

	t.Run("Error on joining an unknown session", func(t *testing.T) {
		sessions := newTestRegistry(nil)

		_, _, err := sessions.Join("missing", "joiner-1")
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})

	t.Run("Error on joining a full session", func(t *testing.T) {
		// Given: a session that already has two participants
		sessions := newTestRegistry(nil)
		session := sessions.Create("host-1")
		_, _, err := sessions.Join(session.Game.ID, "joiner-1")
		require.NoError(t, err)

		// When: a third participant tries to join
		_, _, err = sessions.Join(session.Game.ID, "joiner-2")

		// Then: the claim is rejected
		require.ErrorIs(t, err, apperror.ErrSessionFull)
	})

	t.Run("A participant rejoining gets its existing role back", func(t *testing.T) {
		// Given: a running session
		sessions := newTestRegistry(nil)
		session := sessions.Create("host-1")
		_, _, err := sessions.Join(session.Game.ID, "joiner-1")
		require.NoError(t, err)

		// When: host and joiner both call join again
		_, hostRole, err := sessions.Join(session.Game.ID, "host-1")
		require.NoError(t, err)
		_, joinerRole, err := sessions.Join(session.Game.ID, "joiner-1")
		require.NoError(t, err)

		// Then: the existing roles are returned without any state change
		assert.Equal(t, roleHost, hostRole)
		assert.Equal(t, roleJoiner, joinerRole)
	})

	t.Run("Exactly one of two concurrent joins wins the slot", func(t *testing.T) {
		// Given: a waiting session and many competing joiners
		sessions := newTestRegistry(nil)
		session := sessions.Create("host-1")

		const contenders = 16

		var waitGroup sync.WaitGroup
		errs := make([]error, contenders)

		start := make(chan struct{})
		for i := 0; i < contenders; i++ {
			i := i
			waitGroup.Add(1)
			go func() {
				defer waitGroup.Done()
				<-start
				_, _, errs[i] = sessions.Join(session.Game.ID, "joiner-"+strconv.Itoa(i))
			}()
		}

		// When: all joiners race for the single free slot
		close(start)
		waitGroup.Wait()

		// Then: exactly one join succeeded, the rest saw a full session
		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			require.ErrorIs(t, err, apperror.ErrSessionFull)
		}
		assert.Equal(t, 1, succeeded)
	})
}

func TestRegistry_Remove(t *testing.T) {
	// Given: a running session and an eviction hook
	evicted := make(chan string, 1)
	sessions := newTestRegistry(func(gameID string) { evicted <- gameID })

	session := sessions.Create("host-1")
	_, _, err := sessions.Join(session.Game.ID, "joiner-1")
	require.NoError(t, err)

	// When: the session is removed
	sessions.Remove(session.Game.ID)

	// Then: neither the game id nor the participants resolve any more
	_, err = sessions.Get(session.Game.ID)
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	_, err = sessions.ByParticipant("host-1")
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	_, err = sessions.ByParticipant("joiner-1")
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)

	// Then: the eviction hook fired once
	assert.Equal(t, session.Game.ID, <-evicted)

	// Then: removing again is a no-op
	sessions.Remove(session.Game.ID)
	select {
	case gameID := <-evicted:
		t.Fatalf("unexpected second eviction for %s", gameID)
	default:
	}
}

func TestRegistry_ScheduleEviction(t *testing.T) {
	t.Run("An armed timer removes the session after the grace period", func(t *testing.T) {
		// Given: a session with a short eviction grace
		evicted := make(chan string, 1)
		sessions := newTestRegistry(func(gameID string) { evicted <- gameID })
		session := sessions.Create("host-1")

		// When: the eviction is scheduled
		sessions.ScheduleEviction(session.Game.ID)

		// Then: the session disappears after the grace period
		select {
		case gameID := <-evicted:
			assert.Equal(t, session.Game.ID, gameID)
		case <-time.After(time.Second):
			t.Fatal("eviction timer never fired")
		}

		_, err := sessions.Get(session.Game.ID)
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})

	t.Run("Cancelling disarms a pending eviction", func(t *testing.T) {
		// Given: a session with a pending eviction
		evicted := make(chan string, 1)
		sessions := newTestRegistry(func(gameID string) { evicted <- gameID })
		session := sessions.Create("host-1")
		sessions.ScheduleEviction(session.Game.ID)

		// When: the eviction is cancelled before the grace period elapses
		sessions.CancelEviction(session.Game.ID)

		// Then: the session survives well past the grace period
		select {
		case gameID := <-evicted:
			t.Fatalf("session %s was evicted despite the cancel", gameID)
		case <-time.After(100 * time.Millisecond):
		}

		_, err := sessions.Get(session.Game.ID)
		require.NoError(t, err)
	})

	t.Run("Scheduling for an unknown session is a no-op", func(t *testing.T) {
		sessions := newTestRegistry(nil)

		sessions.ScheduleEviction("missing")
		sessions.CancelEviction("missing")
	})
}

func TestRegistry_SweepStale(t *testing.T) {
	// Given: one stale waiting session and one fresh running session
	sessions := newTestRegistry(nil)

	stale := sessions.Create("host-stale")
	stale.Lock()
	stale.createdAt = time.Now().Add(-time.Hour)
	stale.Unlock()

	running := sessions.Create("host-running")
	_, _, err := sessions.Join(running.Game.ID, "joiner-1")
	require.NoError(t, err)

	// When: sweeping sessions older than ten minutes
	sessions.sweepStale(10 * time.Minute)

	// Then: only the stale waiting session was removed
	_, err = sessions.Get(stale.Game.ID)
	require.ErrorIs(t, err, apperror.ErrSessionNotFound)

	_, err = sessions.Get(running.Game.ID)
	require.NoError(t, err)
}
