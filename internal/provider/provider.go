package provider

import (
	"context"
	"fmt"
	"os"
	"slices"
)

// Kind identifies the type of unit of work a request asks for.
type Kind string

const (
	// KindAnalysis describes a vision model reading an image and returning text.
	KindAnalysis Kind = "analysis"
	// KindImage describes generation of a still image from a prompt.
	KindImage Kind = "image"
	// KindVideo describes generation of a short clip from a source image.
	KindVideo Kind = "video"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAnalysis, KindImage, KindVideo:
		return true
	}
	return false
}

// Request is one unit of work handed to a provider.
type Request struct {
	Kind              Kind   `json:"kind"`
	Prompt            string `json:"prompt,omitempty"`
	CharacterImageURL string `json:"characterImageUrl,omitempty"`
	ProductImageURL   string `json:"productImageUrl,omitempty"`
	SourceImageURL    string `json:"sourceImageUrl,omitempty"`
	Style             string `json:"style,omitempty"`
	AspectRatio       string `json:"aspectRatio,omitempty"`
	DurationSeconds   int    `json:"durationSeconds,omitempty"`
	// Model overrides the provider's configured model when set.
	Model string `json:"model,omitempty"`
}

// ImageURLs returns the non-empty image inputs of the request in a stable
// order: character, product, source.
func (r Request) ImageURLs() []string {
	urls := make([]string, 0, 3)
	for _, u := range []string{r.CharacterImageURL, r.ProductImageURL, r.SourceImageURL} {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Asset is a generated image or video.
type Asset struct {
	URL      string `json:"url,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	// Data holds inline bytes when the provider returned the asset directly.
	Data []byte `json:"-"`
}

// Result is what a provider returns on success.
type Result struct {
	ProviderID string  `json:"providerId"`
	Text       string  `json:"text,omitempty"`
	Assets     []Asset `json:"assets,omitempty"`
}

// Executor performs a unit of work against one external provider.
// Any returned error is treated as a failure of that provider.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts an ordinary function to the Executor interface.
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

// Execute calls f(ctx, req).
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

// Descriptor describes one interchangeable backend.
type Descriptor struct {
	ID       string
	Name     string
	Priority int
	Kinds    []Kind
	// Supports further restricts the requests this provider accepts.
	// A nil predicate accepts every request of a served kind.
	Supports func(Request) bool
	// Available is evaluated on every selection. A nil func means always available.
	Available func() bool
	Executor  Executor
}

// IsAvailable reports whether the provider can currently be used.
func (d Descriptor) IsAvailable() bool {
	return d.Available == nil || d.Available()
}

// CanServe reports whether the provider serves the request's kind and its
// capability predicate accepts the request.
func (d Descriptor) CanServe(req Request) bool {
	if !slices.Contains(d.Kinds, req.Kind) {
		return false
	}
	return d.Supports == nil || d.Supports(req)
}

// EnvCredential returns an availability func that is true while the named
// environment variable is set to a non-empty value.
func EnvCredential(name string) func() bool {
	return CredentialFrom(os.Getenv, name)
}

// CredentialFrom is EnvCredential with an injectable lookup.
func CredentialFrom(getenv func(string) string, name string) func() bool {
	if name == "" {
		return func() bool { return true }
	}
	return func() bool { return getenv(name) != "" }
}

// Registry holds the descriptors registered at startup. It is never mutated
// after construction and is safe for concurrent reads.
type Registry struct {
	descriptors []Descriptor
	byID        map[string]int
}

// NewRegistry validates and stores descriptors in registration order.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		descriptors: make([]Descriptor, 0, len(descriptors)),
		byID:        make(map[string]int, len(descriptors)),
	}
	for _, d := range descriptors {
		if d.ID == "" {
			return nil, fmt.Errorf("provider descriptor %q: empty id", d.Name)
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, fmt.Errorf("provider %q registered twice", d.ID)
		}
		if d.Executor == nil {
			return nil, fmt.Errorf("provider %q: nil executor", d.ID)
		}
		if len(d.Kinds) == 0 {
			return nil, fmt.Errorf("provider %q: no kinds", d.ID)
		}
		for _, k := range d.Kinds {
			if !k.Valid() {
				return nil, fmt.Errorf("provider %q: unknown kind %q", d.ID, k)
			}
		}
		d.Kinds = slices.Clone(d.Kinds)
		r.byID[d.ID] = len(r.descriptors)
		r.descriptors = append(r.descriptors, d)
	}
	return r, nil
}

// All returns the descriptors in registration order.
func (r *Registry) All() []Descriptor {
	return slices.Clone(r.descriptors)
}

// Lookup returns the descriptor with the given id.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return r.descriptors[i], true
}

// Len returns the number of registered providers.
func (r *Registry) Len() int { return len(r.descriptors) }

// Status is the public view of a descriptor used by the API and front-ends.
type Status struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Priority  int    `json:"priority"`
	Kinds     []Kind `json:"kinds"`
	Available bool   `json:"available"`
}

// Statuses evaluates availability of every provider now.
func (r *Registry) Statuses() []Status {
	out := make([]Status, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, Status{
			ID:        d.ID,
			Name:      d.Name,
			Priority:  d.Priority,
			Kinds:     slices.Clone(d.Kinds),
			Available: d.IsAvailable(),
		})
	}
	return out
}
