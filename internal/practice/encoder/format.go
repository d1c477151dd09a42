// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     encoder
// Description: Audio format registry and first-match format selection
// Author:      Mike Stoffels
// Created:     2025-12-07
// License:     MIT
// ============================================================================

package encoder

import (
	"sort"
	"strings"
	"sync"

	hterror "github.com/msto63/hatsuon/foundation/core/error"
)

// Well-known MIME types, highest compression first
const (
	MIMEOggOpus = "audio/ogg;codecs=opus"
	MIMEWAV     = "audio/wav"
	MIMEPCM     = "audio/pcm;rate=16000;channels=1"
)

// Codec turns PCM frames into container bytes. A codec instance encodes
// exactly one stream.
type Codec interface {
	// Begin returns the container header, if any
	Begin() ([]byte, error)
	// Encode consumes one frame of interleaved samples
	Encode(frame []int16) ([]byte, error)
	// Flush encodes buffered samples and returns the container trailer
	Flush() ([]byte, error)
}

// Factory creates a codec for the given stream layout
type Factory func(sampleRate, channels int) (Codec, error)

// ErrNoSupportedFormat matches selection failures
var ErrNoSupportedFormat = hterror.New("no supported audio format").WithCode(hterror.CodeNoSupportedFormat)

// builtins are registered into every new registry; build-tagged codecs
// append themselves from init
var (
	builtinsMu sync.Mutex
	builtins   = map[string]Factory{}
)

func registerBuiltin(mime string, f Factory) {
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	builtins[normalize(mime)] = f
}

// Registry maps MIME types to codec factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry creates a registry with all codecs compiled into this build
func DefaultRegistry() *Registry {
	r := NewRegistry()
	builtinsMu.Lock()
	defer builtinsMu.Unlock()
	for mime, f := range builtins {
		r.factories[mime] = f
	}
	return r
}

// Register adds or replaces a codec factory
func (r *Registry) Register(mime string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalize(mime)] = f
}

// Supported reports whether the MIME type can be encoded
func (r *Registry) Supported(mime string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[normalize(mime)]
	return ok
}

// Types returns the registered MIME types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for mime := range r.factories {
		out = append(out, mime)
	}
	sort.Strings(out)
	return out
}

// Select returns the first candidate this registry can encode
func (r *Registry) Select(candidates []string) (string, error) {
	for _, c := range candidates {
		if r.Supported(c) {
			return normalize(c), nil
		}
	}
	return "", hterror.New("no supported audio format").
		WithCode(hterror.CodeNoSupportedFormat).
		WithOperation("encoder.select").
		WithDetail("candidates", strings.Join(candidates, ", "))
}

func (r *Registry) factory(mime string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[normalize(mime)]
	return f, ok
}

// normalize lowercases and drops whitespace around parameters
func normalize(mime string) string {
	parts := strings.Split(mime, ";")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, ";")
}
