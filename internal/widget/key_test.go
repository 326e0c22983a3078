package widget

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeyGeneratorFormat(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	g := NewKeyGenerator("")
	g.Now = func() time.Time { return now }

	assert.Equal(t, "1700000000123-avatar.png", g.Next("avatar.png"))
	assert.Equal(t, "1700000000124-avatar.png", g.Next("avatar.png"))

	now = now.Add(time.Second)
	assert.Equal(t, "1700000001123-avatar.png", g.Next("avatar.png"))
}

func TestKeyGeneratorPrefixAndNames(t *testing.T) {
	g := NewKeyGenerator("/avatars/")
	g.Now = func() time.Time { return time.UnixMilli(5) }

	assert.Equal(t, "avatars/5-me.jpg", g.Next("C:\\Users\\me\\me.jpg"))
	assert.Equal(t, "avatars/6-me.jpg", g.Next("../../me.jpg"))
	assert.Equal(t, "avatars/7-file", g.Next(""))
}

func TestKeyGeneratorConcurrentUnique(t *testing.T) {
	g := NewKeyGenerator("")
	g.Now = func() time.Time { return time.UnixMilli(42) }

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = map[string]struct{}{}
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := g.Next("same.gif")
			mu.Lock()
			seen[key] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 50)
}
