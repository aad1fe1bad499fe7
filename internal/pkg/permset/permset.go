// Package permset converts the "permitted systems" attribute between its
// wire form ([]string) and its storage form (a JSON array blob).
//
// Rows written by older tooling sometimes hold the attribute already decoded
// (drivers that map JSON columns to native values), so Decode accepts both
// forms and is idempotent on a decoded set.
package permset

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/99minutos/account-service/internal/core/domain"
)

// Encode renders systems as a JSON array. A nil set encodes as "[]".
func Encode(systems []string) (string, error) {
	if systems == nil {
		systems = []string{}
	}
	b, err := json.Marshal(systems)
	if err != nil {
		return "", fmt.Errorf("encode permission set: %w", err)
	}
	return string(b), nil
}

// Decode returns the set held in v, which may be either the storage blob
// (string, []byte, json.RawMessage) or an already-decoded sequence
// ([]string, []any of strings). A nil value decodes to the empty set.
// Anything else fails with domain.ErrMalformedPermissionSet.
func Decode(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return []string{}, nil
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: element %d is %T", domain.ErrMalformedPermissionSet, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return decodeBlob([]byte(t))
	case []byte:
		return decodeBlob(t)
	case json.RawMessage:
		return decodeBlob(t)
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", domain.ErrMalformedPermissionSet, v)
	}
}

func decodeBlob(b []byte) ([]string, error) {
	trimmed := strings.TrimSpace(string(b))
	if trimmed == "" || trimmed == "null" {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedPermissionSet, err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

// Contains reports whether system is a member of systems.
func Contains(systems []string, system string) bool {
	for _, s := range systems {
		if s == system {
			return true
		}
	}
	return false
}
