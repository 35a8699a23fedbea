// Package settings holds runtime feature settings behind a small KV
// abstraction so the service keeps working when the store is down.
package settings

import (
	"context"
	"log"
	"strconv"
)

// DecompositionEnabledKey is the store key for the decomposition toggle.
const DecompositionEnabledKey = "stepwise:settings:decomposition_enabled"

// Store is a string KV store. Get reports found=false when the key has
// never been set.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string) error
}

// Service reads and writes feature settings. A missing key or a store
// error resolves to the configured default rather than failing the caller.
type Service struct {
	store          Store
	defaultEnabled bool
}

func NewService(store Store, defaultEnabled bool) *Service {
	return &Service{store: store, defaultEnabled: defaultEnabled}
}

// DecompositionEnabled reports whether prompt decomposition is on.
func (s *Service) DecompositionEnabled(ctx context.Context) bool {
	v, found, err := s.store.Get(ctx, DecompositionEnabledKey)
	if err != nil {
		log.Printf("settings: read %s: %v (using default %t)", DecompositionEnabledKey, err, s.defaultEnabled)
		return s.defaultEnabled
	}
	if !found {
		return s.defaultEnabled
	}
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("settings: bad value %q for %s (using default %t)", v, DecompositionEnabledKey, s.defaultEnabled)
		return s.defaultEnabled
	}
	return enabled
}

// SetDecompositionEnabled persists the toggle.
func (s *Service) SetDecompositionEnabled(ctx context.Context, enabled bool) error {
	return s.store.Set(ctx, DecompositionEnabledKey, strconv.FormatBool(enabled))
}
