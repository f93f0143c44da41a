package pe

import "mesisim/cache"

// Port adapts a PE's word-addressed LOAD/STORE operands to the cache's
// byte-addressed Read/Write. It caches nothing of its own.
type Port struct {
	cache *cache.Cache
}

// NewPort wraps c for word-addressed access.
func NewPort(c *cache.Cache) *Port {
	return &Port{cache: c}
}

// Load reads the word at wordIndex.
func (p *Port) Load(wordIndex uint64) (uint64, error) {
	word, _, err := p.cache.Read(wordIndex * 8)
	return word, err
}

// Store writes value to the word at wordIndex.
func (p *Port) Store(wordIndex uint64, value uint64) error {
	_, err := p.cache.Write(wordIndex*8, value)
	return err
}
