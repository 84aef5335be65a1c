package client

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Result is the document a successful call resolves to.
type Result map[string]any

// Decode fills a caller struct from the result document. Field matching
// honors json tags, since documents originate from JSON bodies.
func (r Result) Decode(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to build result decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(r)); err != nil {
		return fmt.Errorf("failed to decode result: %w", err)
	}
	return nil
}

// lookupPath resolves a dotted path ("Table.TableStatus") inside a nested
// document.
func lookupPath(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, segment := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[segment]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// tokenPresent reports whether a continuation token value means "more
// pages": present, non-nil and not the empty string.
func tokenPresent(value any, ok bool) bool {
	if !ok || value == nil {
		return false
	}
	if s, isString := value.(string); isString && s == "" {
		return false
	}
	return true
}

// itemsAt concatenates the values under each result key. A list value
// contributes its elements, anything else contributes itself, and a
// missing key contributes nothing.
func itemsAt(doc map[string]any, keys []string) []any {
	var items []any
	for _, key := range keys {
		value, ok := lookupPath(doc, key)
		if !ok || value == nil {
			continue
		}
		if list, isList := value.([]any); isList {
			items = append(items, list...)
			continue
		}
		items = append(items, value)
	}
	return items
}
