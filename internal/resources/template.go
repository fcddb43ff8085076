package resources

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/domain"
)

// placeholders returns the {name} segments of a path template in order
func placeholders(template string) []string {
	var names []string
	rest := template
	for {
		start := strings.IndexByte(rest, '{')
		if start == -1 {
			return names
		}
		end := strings.IndexByte(rest[start:], '}')
		if end == -1 {
			return names
		}
		names = append(names, rest[start+1:start+end])
		rest = rest[start+end+1:]
	}
}

// expand fills the template from params. Params not used by the path are returned as query values.
func expand(template string, params actions.Params) (string, url.Values, error) {
	if template == "" {
		return "", nil, fmt.Errorf("%w: operation not supported", domain.ErrInvalidParams)
	}

	path := template
	used := placeholders(template)
	for _, name := range used {
		value, ok := params.Get(name)
		if !ok || value == "" {
			return "", nil, fmt.Errorf("%w: missing %s", domain.ErrInvalidParams, name)
		}
		path = strings.Replace(path, "{"+name+"}", url.PathEscape(value), 1)
	}

	var query url.Values
	for _, pair := range params.Without(used...).All() {
		if query == nil {
			query = url.Values{}
		}
		query.Set(pair.Name, pair.Value)
	}

	return path, query, nil
}
