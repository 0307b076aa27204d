package cache

import (
	"fmt"
	"strings"
)

const (
	manifestPrefix = "manifest"
	marketsPrefix  = "markets"
	lockPrefix     = "lock:update"

	// OnePagerKey holds the rendered markdown one-pager.
	OnePagerKey = "onepager"
)

// Key joins prefix and parts with ':'.
func Key(prefix string, parts ...interface{}) string {
	var b strings.Builder
	b.WriteString(prefix)
	for _, p := range parts {
		b.WriteByte(':')
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// ManifestKey addresses the cached manifest of one base asset and timeframe.
func ManifestKey(base, tf string) string {
	return Key(manifestPrefix, strings.ToUpper(base), tf)
}

// ManifestPattern matches every cached manifest of base, or all manifests
// when base is empty.
func ManifestPattern(base string) string {
	if base == "" {
		return BuildPattern(manifestPrefix + ":")
	}
	return BuildPattern(Key(manifestPrefix, strings.ToUpper(base)) + ":")
}

// MarketsKey addresses the tradable pair list of an exchange.
func MarketsKey(exchange string) string {
	return Key(marketsPrefix, strings.ToLower(exchange))
}

// UpdateLockKey guards incremental updates of one base asset and timeframe.
func UpdateLockKey(base, tf string) string {
	return Key(lockPrefix, strings.ToUpper(base), tf)
}

// BuildPattern turns a key prefix into a glob understood by DeleteByPattern.
func BuildPattern(prefix string) string {
	return prefix + "*"
}
