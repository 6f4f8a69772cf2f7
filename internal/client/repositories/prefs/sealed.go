package prefs

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/smartyedu/internal/cryptox"
	"github.com/dmitrijs2005/smartyedu/internal/filex"
)

// LoadDeviceKey reads the device key at path, generating and persisting a
// fresh random key on first use.
func LoadDeviceKey(path string) ([]byte, error) {
	key, err := filex.ReadOrCreate(path, cryptox.NewKey)
	if err != nil {
		return nil, fmt.Errorf("device key: %w", err)
	}
	if len(key) != cryptox.KeySize {
		return nil, fmt.Errorf("device key %s: expected %d bytes, got %d", path, cryptox.KeySize, len(key))
	}
	return key, nil
}

// SealedRepository encrypts values with AES-GCM before handing them to the
// underlying store. Keys stay in clear text.
type SealedRepository struct {
	inner Repository
	key   []byte
}

var _ Repository = (*SealedRepository)(nil)

func NewSealedRepository(inner Repository, key []byte) *SealedRepository {
	return &SealedRepository{inner: inner, key: key}
}

func (r *SealedRepository) Get(ctx context.Context, key string) ([]byte, error) {
	sealed, err := r.inner.Get(ctx, key)
	if err != nil || sealed == nil {
		return nil, err
	}
	plain, err := cryptox.Open(r.key, sealed)
	if err != nil {
		return nil, fmt.Errorf("open pref[%s]: %w", key, err)
	}
	return plain, nil
}

func (r *SealedRepository) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := cryptox.Seal(r.key, value)
	if err != nil {
		return fmt.Errorf("seal pref[%s]: %w", key, err)
	}
	return r.inner.Set(ctx, key, sealed)
}

func (r *SealedRepository) Delete(ctx context.Context, key string) error {
	return r.inner.Delete(ctx, key)
}

func (r *SealedRepository) Clear(ctx context.Context) error {
	return r.inner.Clear(ctx)
}

func (r *SealedRepository) List(ctx context.Context) (map[string][]byte, error) {
	raw, err := r.inner.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		plain, err := cryptox.Open(r.key, v)
		if err != nil {
			return nil, fmt.Errorf("open pref[%s]: %w", k, err)
		}
		out[k] = plain
	}
	return out, nil
}
