// Package cache provides content-addressed cache keys and the key-value store capability
// shared by every pipeline stage.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

const (
	// MaxKeyLength is the longest key DeriveKey will return.
	MaxKeyLength = 250

	// HashedKeyPrefix marks keys that were replaced by a digest of themselves.
	HashedKeyPrefix = "k_"

	keySeparator = "|"
)

// separator escaping keeps scalar tokens from forging a boundary, so
// ("a|b", "c") and ("a", "b|c") derive different keys
var scalarEscaper = strings.NewReplacer(`\`, `\\`, keySeparator, `\`+keySeparator)

// Unordered marks a string collection whose order carries no meaning.
// DeriveKey sorts a copy before digesting it, so permutations share a key.
type Unordered []string

// DeriveKey builds a cache key from an operation name and its ordered arguments.
//
// Scalars are stringified with the separator and backslash escaped. Slices, arrays, maps and structs are JSON encoded
// (map keys sorted) and digested to a fixed-width token. A key longer than
// MaxKeyLength is replaced by HashedKeyPrefix plus the digest of the whole key.
// Arguments that cannot be JSON encoded are a programming error and panic.
func DeriveKey(operation string, args ...any) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, scalarEscaper.Replace(operation))
	for _, arg := range args {
		parts = append(parts, argToken(arg))
	}

	key := strings.Join(parts, keySeparator)
	if len(key) > MaxKeyLength {
		return HashedKeyPrefix + digest([]byte(key))
	}
	return key
}

func argToken(arg any) string {
	if set, ok := arg.(Unordered); ok {
		sorted := make([]string, len(set))
		copy(sorted, set)
		sort.Strings(sorted)
		return compositeToken(sorted)
	}

	if arg == nil {
		return "null"
	}

	v := reflect.ValueOf(arg)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return "null"
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Struct:
		return compositeToken(v.Interface())
	default:
		return scalarEscaper.Replace(fmt.Sprint(v.Interface()))
	}
}

func compositeToken(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("cache: argument of type %T cannot be encoded: %v", v, err))
	}
	return digest(data)
}

func digest(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
