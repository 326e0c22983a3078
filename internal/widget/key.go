package widget

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// KeyGenerator builds destination keys of the form "<token>-<name>".
// Tokens are millisecond timestamps, bumped so that no two keys issued by
// the same generator share a token.
type KeyGenerator struct {
	Now    func() time.Time
	Prefix string

	mu   sync.Mutex
	last int64
}

// NewKeyGenerator returns a generator that places keys under prefix.
func NewKeyGenerator(prefix string) *KeyGenerator {
	return &KeyGenerator{Now: time.Now, Prefix: strings.Trim(prefix, "/")}
}

// Next returns a new key for fileName.
func (g *KeyGenerator) Next(fileName string) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}

	g.mu.Lock()
	token := now().UnixMilli()
	if token <= g.last {
		token = g.last + 1
	}
	g.last = token
	g.mu.Unlock()

	key := fmt.Sprintf("%s-%s", strconv.FormatInt(token, 10), baseName(fileName))
	if g.Prefix == "" {
		return key
	}
	return g.Prefix + "/" + key
}

// baseName drops any directory part a client may send along with the name.
func baseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(name)
	if base == "." || base == "/" {
		return "file"
	}
	return base
}
