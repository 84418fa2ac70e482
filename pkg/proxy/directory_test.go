package proxy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dualspiral/velocity/pkg/util/profile"
)

func newDirectoryTestPlayer(name string) *connectedPlayer {
	return &connectedPlayer{profile: profile.NewOffline(name)}
}

func TestPlayerDirectory(t *testing.T) {
	d := newPlayerDirectory()
	alice := newDirectoryTestPlayer("Alice")

	require.True(t, d.TryInsert(alice))
	assert.Equal(t, 1, d.Count())
	assert.Same(t, alice, d.Player(alice.ID()))
	assert.Same(t, alice, d.PlayerByName("aLiCe"))

	// Same name in another case is a collision, the id differs.
	assert.False(t, d.TryInsert(newDirectoryTestPlayer("ALICE")))
	// Same id is a collision.
	assert.False(t, d.TryInsert(&connectedPlayer{profile: &profile.GameProfile{ID: alice.ID(), Name: "Other"}}))
	assert.Equal(t, 1, d.Count())

	// A rejected duplicate must not remove the live entry.
	dup := newDirectoryTestPlayer("Alice")
	assert.False(t, d.Remove(dup))
	assert.Same(t, alice, d.PlayerByName("alice"))

	assert.True(t, d.Remove(alice))
	assert.False(t, d.Remove(alice))
	assert.Nil(t, d.Player(alice.ID()))
	assert.Nil(t, d.PlayerByName("alice"))
	assert.Zero(t, d.Count())
}

func TestPlayerDirectoryConcurrentInsert(t *testing.T) {
	d := newPlayerDirectory()

	const contenders = 64
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	wg.Add(contenders)
	for i := 0; i < contenders; i++ {
		go func() {
			defer wg.Done()
			if d.TryInsert(newDirectoryTestPlayer("Notch")) {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted, "exactly one session may own a name")
	assert.Equal(t, 1, d.Count())
	assert.Len(t, d.Players(), 1)
}
