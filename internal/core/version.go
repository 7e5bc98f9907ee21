package core

import (
	"strings"

	debversion "github.com/knqyf263/go-deb-version"
)

// versionCache memoizes parsed package versions. Package versions share
// the epoch:upstream-release shape of Debian versions, so the Debian
// ordering rules are used to compare them.
type versionCache struct {
	parsed map[string]debversion.Version
	failed map[string]struct{}
}

func newVersionCache() *versionCache {
	return &versionCache{
		parsed: map[string]debversion.Version{},
		failed: map[string]struct{}{},
	}
}

func (c *versionCache) version(value string) (debversion.Version, bool) {
	if parsed, ok := c.parsed[value]; ok {
		return parsed, true
	}
	if _, ok := c.failed[value]; ok {
		return debversion.Version{}, false
	}
	parsed, err := debversion.NewVersion(value)
	if err != nil {
		c.failed[value] = struct{}{}
		return debversion.Version{}, false
	}
	c.parsed[value] = parsed
	return parsed, true
}

// compare orders two version strings. Values that do not parse fall back
// to plain string ordering.
func (c *versionCache) compare(a string, b string) int {
	v1, ok1 := c.version(a)
	v2, ok2 := c.version(b)
	if ok1 && ok2 {
		return v1.Compare(v2)
	}
	return strings.Compare(a, b)
}
