package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// =============================================================================
// Mounts
// =============================================================================

// Mounts is an ordered set of named storage roots.
type Mounts struct {
	mu    sync.RWMutex
	names []string
	roots map[string]Storage
}

// NewMounts creates an empty set of roots.
func NewMounts() *Mounts {
	return &Mounts{roots: make(map[string]Storage)}
}

// Mount registers s under name. Mounting a name twice replaces the root but
// keeps its original position.
func (m *Mounts) Mount(name string, s Storage) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.roots[name]; !ok {
		m.names = append(m.names, name)
	}
	m.roots[name] = s
}

// Get returns the root registered under name.
func (m *Mounts) Get(name string) (Storage, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.roots[name]
	return s, ok
}

// Names returns the mount names in registration order.
func (m *Mounts) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.names...)
}

// Image returns a lazily-read image handle for path inside the named root.
func (m *Mounts) Image(name, path string) (*Image, error) {
	s, ok := m.Get(name)
	if !ok {
		return nil, &StorageError{Op: "Image", Key: name + "://" + path, Err: ErrUnknownMount}
	}
	return NewImage(s, name, path), nil
}

// Resolve returns the image for a "mount://path" reference.
func (m *Mounts) Resolve(ref string) (*Image, error) {
	name, path, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	return m.Image(name, path)
}

// ParseRef splits a "mount://path" reference.
func ParseRef(ref string) (mount, path string, err error) {
	mount, path, ok := strings.Cut(ref, "://")
	if !ok || mount == "" || strings.Trim(path, "/") == "" {
		return "", "", &StorageError{Op: "ParseRef", Key: ref, Err: ErrInvalidKey}
	}
	return mount, strings.TrimPrefix(path, "/"), nil
}

// =============================================================================
// Image Handle
// =============================================================================

// Image is a stored image addressed by mount and path. It satisfies
// domain.Image.
type Image struct {
	storage Storage
	mount   string
	path    string
}

// NewImage creates an image handle. Nothing is read until Read is called.
func NewImage(s Storage, mount, path string) *Image {
	return &Image{storage: s, mount: mount, path: strings.TrimPrefix(path, "/")}
}

// Path returns the path inside the storage root.
func (i *Image) Path() string { return i.path }

// Mount returns the name of the storage root.
func (i *Image) Mount() string { return i.mount }

// Ref returns the "mount://path" reference.
func (i *Image) Ref() string { return i.mount + "://" + i.path }

// MIMEType returns the content type implied by the file extension.
func (i *Image) MIMEType() string {
	return DetectContentType("", i.path, nil)
}

// Exists reports whether the image is present in its root.
func (i *Image) Exists(ctx context.Context) (bool, error) {
	return i.storage.Exists(ctx, i.path)
}

// Read loads the encoded image bytes.
func (i *Image) Read(ctx context.Context) ([]byte, error) {
	data, err := ReadAll(ctx, i.storage, i.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", i.Ref(), err)
	}
	return data, nil
}
