package resources

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"

	"github.com/Amund211/coursesync/internal/actions"
	"github.com/Amund211/coursesync/internal/domain"
)

var errWrongType = errors.New("cached value has unexpected type")

// Resource describes how one entity kind is fetched, decoded, merged and deleted
type Resource interface {
	Kind() domain.Kind
	Collection() bool

	FetchPath(params actions.Params) (string, url.Values, error)
	DeletePath(params actions.Params) (string, error)
	MutatePath(method string, params actions.Params) (string, error)

	// DeleteIDs are the delete template values in path order, handed to delete callbacks
	DeleteIDs(params actions.Params) []string
	// SlotKey is the cache slot an item addressed by params lives in
	SlotKey(params actions.Params) actions.Key
	ItemID(params actions.Params) string

	Decode(data []byte) (any, error)
	DecodeItemID(data []byte) (string, error)
	Merge(current any, itemID string, patch []byte) (any, error)
	Remove(current any, itemID string) (any, bool)
}

type Templates struct {
	Fetch  string
	Delete string
	Mutate string
	// Item is the param naming a single item within a collection
	Item string
}

type base struct {
	kind      domain.Kind
	templates Templates
}

func (b base) Kind() domain.Kind {
	return b.kind
}

func (b base) FetchPath(params actions.Params) (string, url.Values, error) {
	return expand(b.templates.Fetch, params)
}

func (b base) DeletePath(params actions.Params) (string, error) {
	path, _, err := expand(b.templates.Delete, params)
	return path, err
}

func (b base) DeleteIDs(params actions.Params) []string {
	names := placeholders(b.templates.Delete)
	ids := make([]string, 0, len(names))
	for _, name := range names {
		ids = append(ids, params.Value(name))
	}
	return ids
}

func (b base) ItemID(params actions.Params) string {
	if b.templates.Item == "" {
		return ""
	}
	return params.Value(b.templates.Item)
}

// clone deep-copies an entity so overlaying a patch never writes through shared slices or pointers
func clone[T any](item T) (T, error) {
	var out T
	data, err := json.Marshal(item)
	if err != nil {
		return out, fmt.Errorf("failed to marshal item: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal item: %w", err)
	}
	return out, nil
}

// overlay applies the fields present in patch on top of a copy of item
func overlay[T any](item T, patch []byte) (T, error) {
	merged, err := clone(item)
	if err != nil {
		return merged, err
	}
	if err := json.Unmarshal(patch, &merged); err != nil {
		return merged, fmt.Errorf("failed to apply patch: %w", err)
	}
	return merged, nil
}

type collection[T domain.Entity] struct {
	base
}

// Collection describes a kind whose slots hold []T
func Collection[T domain.Entity](kind domain.Kind, templates Templates) Resource {
	return collection[T]{base{kind: kind, templates: templates}}
}

func (c collection[T]) Collection() bool {
	return true
}

func (c collection[T]) SlotKey(params actions.Params) actions.Key {
	return actions.KeyOf(c.kind, params.Without(c.templates.Item))
}

func (c collection[T]) MutatePath(method string, params actions.Params) (string, error) {
	path, _, err := expand(c.templates.Mutate, params.Without(c.templates.Item))
	if err != nil {
		return "", err
	}
	if method == http.MethodPost {
		return path, nil
	}

	itemID := c.ItemID(params)
	if itemID == "" {
		return "", fmt.Errorf("%w: missing %s", domain.ErrInvalidParams, c.templates.Item)
	}
	return path + "/" + url.PathEscape(itemID), nil
}

func (c collection[T]) Decode(data []byte) (any, error) {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", c.kind, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c collection[T]) DecodeItemID(data []byte) (string, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return "", fmt.Errorf("failed to decode %s item: %w", c.kind, err)
	}
	return item.EntityID(), nil
}

func (c collection[T]) Merge(current any, itemID string, patch []byte) (any, error) {
	items, ok := current.([]T)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errWrongType, current)
	}

	index := slices.IndexFunc(items, func(item T) bool {
		return itemID != "" && item.EntityID() == itemID
	})
	if index == -1 {
		var added T
		if err := json.Unmarshal(patch, &added); err != nil {
			return nil, fmt.Errorf("failed to decode added item: %w", err)
		}
		if added.EntityID() == "" {
			return nil, fmt.Errorf("%w: added item has no id", domain.ErrInvalidParams)
		}
		return append(slices.Clone(items), added), nil
	}

	merged, err := overlay(items[index], patch)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(items)
	out[index] = merged
	return out, nil
}

func (c collection[T]) Remove(current any, itemID string) (any, bool) {
	items, ok := current.([]T)
	if !ok {
		return current, false
	}

	index := slices.IndexFunc(items, func(item T) bool {
		return item.EntityID() == itemID
	})
	if index == -1 {
		return current, false
	}
	return slices.Delete(slices.Clone(items), index, index+1), true
}

type single[T domain.Entity] struct {
	base
}

// Single describes a kind whose slots hold one T
func Single[T domain.Entity](kind domain.Kind, templates Templates) Resource {
	return single[T]{base{kind: kind, templates: templates}}
}

func (s single[T]) Collection() bool {
	return false
}

func (s single[T]) SlotKey(params actions.Params) actions.Key {
	return actions.KeyOf(s.kind, params)
}

func (s single[T]) MutatePath(method string, params actions.Params) (string, error) {
	path, _, err := expand(s.templates.Mutate, params)
	return path, err
}

func (s single[T]) Decode(data []byte) (any, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", s.kind, err)
	}
	return item, nil
}

func (s single[T]) DecodeItemID(data []byte) (string, error) {
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", s.kind, err)
	}
	return item.EntityID(), nil
}

func (s single[T]) Merge(current any, itemID string, patch []byte) (any, error) {
	item, ok := current.(T)
	if !ok {
		return nil, fmt.Errorf("%w: %T", errWrongType, current)
	}
	if itemID != "" && item.EntityID() != "" && item.EntityID() != itemID {
		return nil, fmt.Errorf("%w: patch for %s applied to %s", domain.ErrInvalidParams, itemID, item.EntityID())
	}
	return overlay(item, patch)
}

// Remove on a singleton slot always succeeds; the store marks the slot deleted
func (s single[T]) Remove(current any, itemID string) (any, bool) {
	return nil, true
}
