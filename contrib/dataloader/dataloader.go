// Package dataloader provides generic helpers for batch loading rows by key.
//
// Batch relation loading issues one IN query per chunk of parent keys and
// then distributes the rows back to their parents:
//
//	keys := dataloader.UniqueKeys(parentIDs)
//	for _, chunk := range dataloader.Chunk(keys, 500) {
//	    rows, _ := loadPostsByUser(ctx, chunk)
//	    grouped := dataloader.GroupByKey(rows, func(p Post) int64 { return p.UserID })
//	    for i, posts := range dataloader.OrderGroupsByKeys(chunk, grouped) {
//	        // posts belong to chunk[i]
//	    }
//	}
package dataloader

import (
	"errors"
)

// ErrNotFound is returned when an entity is not found in a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// UniqueKeys returns keys without duplicates, keeping first occurrences in order.
func UniqueKeys[K comparable](keys []K) []K {
	seen := make(map[K]struct{}, len(keys))
	out := make([]K, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Chunk splits keys into consecutive batches of at most size keys.
// A non-positive size returns a single batch.
func Chunk[K any](keys []K, size int) [][]K {
	if len(keys) == 0 {
		return nil
	}
	if size <= 0 || size >= len(keys) {
		return [][]K{keys}
	}
	chunks := make([][]K, 0, (len(keys)+size-1)/size)
	for size < len(keys) {
		keys, chunks = keys[size:], append(chunks, keys[:size:size])
	}
	return append(chunks, keys)
}

// OrderByKeys reorders entities to match the order of requested keys.
// Missing entities are represented as zero values with corresponding errors.
// When several entities share a key, the first one wins.
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	lookup := FirstByKey(values, keyFn)
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// FirstByKey indexes entities by key, keeping the first entity of each key.
// Useful for to-one relationships where the query may return extra rows.
func FirstByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K]V {
	result := make(map[K]V, len(values))
	for _, v := range values {
		key := keyFn(v)
		if _, ok := result[key]; !ok {
			result[key] = v
		}
	}
	return result
}

// GroupByKey groups entities by a key function.
// Useful for one-to-many relationships where multiple entities share the same foreign key.
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped entities to match the order of requested keys.
// Keys without entities get an empty, non-nil slice.
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		if g := groups[key]; g != nil {
			result[i] = g
		} else {
			result[i] = []V{}
		}
	}
	return result
}
