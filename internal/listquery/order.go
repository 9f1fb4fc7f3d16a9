package listquery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/netn10/learn-romanian/internal/storage"
)

const (
	defaultPrimary     = storage.OrderCreatedAt
	defaultPrimaryDesc = true
	fallbackKey        = storage.OrderID
)

var orderKeys = map[string]bool{
	storage.OrderCreatedAt: true,
	storage.OrderRomanian:  true,
	storage.OrderEnglish:   true,
	storage.OrderID:        true,
}

type orderParams struct {
	primaryKey    string
	primaryDesc   bool
	secondaryKey  string
	secondaryDesc bool
}

func parseOrderBy(raw string) (orderParams, error) {
	ord := orderParams{
		primaryKey:   defaultPrimary,
		primaryDesc:  defaultPrimaryDesc,
		secondaryKey: fallbackKey,
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ord, nil
	}

	seen := make(map[string]bool, 2)
	idx := 0
	for _, seg := range strings.Split(raw, ",") {
		parts := strings.Fields(seg)
		if len(parts) == 0 {
			continue
		}
		key := parts[0]
		if !orderKeys[key] {
			return orderParams{}, fmt.Errorf("field %q cannot be used for ordering", key)
		}

		var desc bool
		switch len(parts) {
		case 1:
		case 2:
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				desc = true
			default:
				return orderParams{}, fmt.Errorf("invalid direction %q for field %q", parts[1], key)
			}
		default:
			return orderParams{}, fmt.Errorf("invalid order segment %q", strings.TrimSpace(seg))
		}

		if seen[key] {
			return orderParams{}, fmt.Errorf("duplicate order key %q", key)
		}
		seen[key] = true

		switch idx {
		case 0:
			ord.primaryKey, ord.primaryDesc = key, desc
		case 1:
			ord.secondaryKey, ord.secondaryDesc = key, desc
		default:
			return orderParams{}, errors.New("order_by supports at most two keys")
		}
		idx++
	}

	// A lone id key still needs a distinct tie-breaker.
	if idx == 1 && ord.secondaryKey == ord.primaryKey {
		ord.secondaryKey, ord.secondaryDesc = storage.OrderCreatedAt, false
	}
	return ord, nil
}
