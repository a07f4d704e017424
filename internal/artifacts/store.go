package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// DigestPrefix marks content digests produced by this package.
const DigestPrefix = "sha256:"

// ErrNotFound is returned by Get for unknown digests.
var ErrNotFound = errors.New("artifact not found")

// Ref identifies a stored blob.
type Ref struct {
	// Digest is the content address, "sha256:<hex>".
	Digest string `json:"digest"`
	// Location is a backend-specific locator such as s3://bucket/key.
	Location string `json:"location"`
	Size     int    `json:"size"`
	MIMEType string `json:"mimeType"`
}

// Store is a content-addressed blob store for generated assets. Storing the
// same bytes twice yields the same digest and does not duplicate data.
type Store interface {
	Put(ctx context.Context, data []byte, mimeType string) (Ref, error)
	Get(ctx context.Context, digest string) ([]byte, error)
	Exists(ctx context.Context, digest string) (bool, error)
}

// Digest returns the content address of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return DigestPrefix + hex.EncodeToString(sum[:])
}

// parseDigest returns the hex part of a digest.
func parseDigest(digest string) (string, error) {
	raw, ok := strings.CutPrefix(digest, DigestPrefix)
	if !ok || len(raw) != sha256.Size*2 {
		return "", fmt.Errorf("invalid digest format: %q", digest)
	}
	if _, err := hex.DecodeString(raw); err != nil {
		return "", fmt.Errorf("invalid digest format: %q", digest)
	}
	return raw, nil
}

// MemoryStore keeps blobs in memory. It is used in development mode and in
// tests.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of data.
func (m *MemoryStore) Put(_ context.Context, data []byte, mimeType string) (Ref, error) {
	digest := Digest(data)
	m.mu.Lock()
	if _, ok := m.blobs[digest]; !ok {
		m.blobs[digest] = append([]byte(nil), data...)
	}
	m.mu.Unlock()
	return Ref{Digest: digest, Location: "mem://" + digest, Size: len(data), MIMEType: mimeType}, nil
}

// Get returns a copy of the blob.
func (m *MemoryStore) Get(_ context.Context, digest string) ([]byte, error) {
	if _, err := parseDigest(digest); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[digest]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	return append([]byte(nil), data...), nil
}

// Exists reports whether the blob is stored.
func (m *MemoryStore) Exists(_ context.Context, digest string) (bool, error) {
	if _, err := parseDigest(digest); err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[digest]
	return ok, nil
}

// Len returns the number of distinct blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
