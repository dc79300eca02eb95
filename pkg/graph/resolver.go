package graph

import (
	"strings"

	"github.com/OFFIS-RIT/relgraph/pkg/common"
)

// EntityResolver maps a free-text mention back to a merged entity id.
type EntityResolver struct {
	ids     []string
	lowered []string
}

// NewEntityResolver indexes entities in their insertion order.
func NewEntityResolver(entities []common.MergedEntity) *EntityResolver {
	r := &EntityResolver{
		ids:     make([]string, len(entities)),
		lowered: make([]string, len(entities)),
	}
	for i, e := range entities {
		r.ids[i] = e.ID
		r.lowered[i] = strings.ToLower(e.Text)
	}
	return r
}

// Resolve returns the id of the first entity whose text is contained in the
// mention, ignoring case. If none matches, the first entity's id is
// returned with ok set to false. An empty resolver returns ("", false).
func (r *EntityResolver) Resolve(mention string) (id string, ok bool) {
	if len(r.ids) == 0 {
		return "", false
	}

	m := strings.ToLower(mention)
	for i, text := range r.lowered {
		if text != "" && strings.Contains(m, text) {
			return r.ids[i], true
		}
	}
	return r.ids[0], false
}
