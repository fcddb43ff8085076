package actions

import (
	"net/url"
	"slices"
	"strings"

	"github.com/Amund211/coursesync/internal/domain"
)

type Param struct {
	Name  string
	Value string
}

func P(name, value string) Param {
	return Param{Name: name, Value: value}
}

// Params is an immutable, name-sorted set of request parameters.
// Equal sets encode identically regardless of construction order.
type Params struct {
	pairs []Param
}

// NewParams sorts the pairs by name. When a name is repeated the last value wins.
func NewParams(pairs ...Param) Params {
	out := make([]Param, 0, len(pairs))
	indexByName := make(map[string]int, len(pairs))
	for _, pair := range pairs {
		if i, ok := indexByName[pair.Name]; ok {
			out[i] = pair
			continue
		}
		indexByName[pair.Name] = len(out)
		out = append(out, pair)
	}

	slices.SortFunc(out, func(a, b Param) int {
		return strings.Compare(a.Name, b.Name)
	})

	return Params{pairs: out}
}

func (p Params) Get(name string) (string, bool) {
	for _, pair := range p.pairs {
		if pair.Name == name {
			return pair.Value, true
		}
	}
	return "", false
}

// Value returns the value for name, or "" if it is missing
func (p Params) Value(name string) string {
	value, _ := p.Get(name)
	return value
}

func (p Params) Len() int {
	return len(p.pairs)
}

// All returns a copy of the pairs in name order
func (p Params) All() []Param {
	return slices.Clone(p.pairs)
}

func (p Params) Without(names ...string) Params {
	out := make([]Param, 0, len(p.pairs))
	for _, pair := range p.pairs {
		if slices.Contains(names, pair.Name) {
			continue
		}
		out = append(out, pair)
	}
	return Params{pairs: out}
}

// Encode renders the params as name=value pairs joined by '&'.
// An empty value still renders as "name=" so empty identifiers map to a stable key.
func (p Params) Encode() string {
	var b strings.Builder
	for i, pair := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(pair.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(pair.Value))
	}
	return b.String()
}

// Key identifies one cache slot in the entity store
type Key struct {
	Kind domain.Kind
	ID   string
}

func KeyOf(kind domain.Kind, params Params) Key {
	return Key{Kind: kind, ID: params.Encode()}
}

func (k Key) Singleton() bool {
	return k.ID == ""
}

func (k Key) String() string {
	if k.ID == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + "?" + k.ID
}
