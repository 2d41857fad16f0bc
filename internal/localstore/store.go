package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Keys used by the storefront for its client-local state.
const (
	KeyCart      = "cart"
	KeyLastOrder = "lastOrder"
	KeyUserInfo  = "userInfo"
	KeyUser      = "user"
	KeyToken     = "token"
)

// ErrNotFound indicates no value is stored under the requested key.
var ErrNotFound = errors.New("localstore: key not found")

// Storage persists opaque blobs under fixed keys, mirroring browser local storage.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// GetJSON decodes the value stored under key into dst. It reports whether the key existed.
// A present but malformed value is returned as an error so callers can decide how to recover.
func GetJSON(ctx context.Context, s Storage, key string, dst any) (bool, error) {
	if s == nil {
		return false, nil
	}
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it under key.
func SetJSON(ctx context.Context, s Storage, key string, v any) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
