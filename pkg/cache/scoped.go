package cache

// ScopedKeyer wraps a Keyer with a prefix for namespace isolation. A watch
// daemon serving several documents from one shared Redis instance gives
// each document its own scope so evicting one document's entries cannot
// touch another's.
//
// Example usage:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "doc:report:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ModuleKey generates a prefixed key for flattened-module caching.
func (k *ScopedKeyer) ModuleKey(docHash string) string {
	return k.prefix + k.inner.ModuleKey(docHash)
}

// FragmentKey generates a prefixed key for fragment caching.
func (k *ScopedKeyer) FragmentKey(addr string, opts FragmentKeyOpts) string {
	return k.prefix + k.inner.FragmentKey(addr, opts)
}

// ArtifactKey generates a prefixed key for assembled-artifact caching.
func (k *ScopedKeyer) ArtifactKey(moduleHash string, opts ArtifactKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(moduleHash, opts)
}
