package secret

import (
	"fmt"
	"os"
	"strings"
)

// SecretStore resolves sensitive values such as database passwords by key.
// Connections name a key (password_env); the store decides where it lives.
type SecretStore interface {
	// Get retrieves the secret value for the given key.
	// Returns empty slice and nil error if key does not exist.
	Get(key string) ([]byte, error)
}

// EnvStore reads secrets from environment variables.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore creates an EnvStore backed by the process environment.
func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

// NewMapStore creates an EnvStore backed by a fixed map.
func NewMapStore(values map[string]string) *EnvStore {
	return &EnvStore{lookup: func(k string) (string, bool) {
		v, ok := values[k]
		return v, ok
	}}
}

func (e *EnvStore) Get(key string) ([]byte, error) {
	if key == "" {
		return nil, nil
	}
	v, ok := e.lookup(key)
	if !ok {
		return nil, nil
	}
	return []byte(v), nil
}

// New returns the SecretStore for a backend name: "env" (default) or
// "keychain".
func New(backend string) (SecretStore, error) {
	switch strings.ToLower(backend) {
	case "", "env":
		return NewEnvStore(), nil
	case "keychain":
		return NewKeychainStore(), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", backend)
	}
}
