package cache

import "fmt"

// Key identifies one cached page: a segment plus its page window.
type Key struct {
	Segment  string
	Offset   int
	PageSize int
}

// String generates a deterministic Redis key.
// Format: archive:page:{segment}:{offset}:{pageSize}
func (k Key) String() string {
	return fmt.Sprintf("archive:page:%s:%d:%d", k.Segment, k.Offset, k.PageSize)
}
