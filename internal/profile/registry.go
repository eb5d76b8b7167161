package profile

import (
	"fmt"
	"sort"
	"sync"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
)

// Entry describes a registered provider implementation. New receives the
// options already resolved against Options.
type Entry[T any] struct {
	Key         string
	Name        string
	Description string
	Options     []provider.OptionSpec
	New         func(opts provider.Options) (T, error)
}

// Info is the public description of a registered provider
type Info struct {
	Kind        provider.Kind         `json:"kind"`
	Key         string                `json:"key"`
	Name        string                `json:"name"`
	Description string                `json:"description"`
	Options     []provider.OptionSpec `json:"options"`
}

// Registry maps stable provider keys to constructors, one map per kind,
// and holds the named profiles that bind them together
type Registry struct {
	documents map[string]Entry[provider.DocumentProvider]
	llms      map[string]Entry[provider.LLMProvider]
	speech    map[string]Entry[provider.SpeechProvider]
	profiles  map[string]Profile
	mu        sync.RWMutex
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{
		documents: make(map[string]Entry[provider.DocumentProvider]),
		llms:      make(map[string]Entry[provider.LLMProvider]),
		speech:    make(map[string]Entry[provider.SpeechProvider]),
		profiles:  make(map[string]Profile),
	}
}

// RegisterDocument registers a document provider
func (r *Registry) RegisterDocument(e Entry[provider.DocumentProvider]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(r.documents, provider.KindDocument, e)
}

// RegisterLLM registers an LLM provider
func (r *Registry) RegisterLLM(e Entry[provider.LLMProvider]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(r.llms, provider.KindLLM, e)
}

// RegisterSpeech registers a speech provider
func (r *Registry) RegisterSpeech(e Entry[provider.SpeechProvider]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return register(r.speech, provider.KindSpeech, e)
}

func register[T any](m map[string]Entry[T], kind provider.Kind, e Entry[T]) error {
	if e.Key == "" || e.New == nil {
		return fmt.Errorf("%s provider entry needs a key and a constructor", kind)
	}
	if _, exists := m[e.Key]; exists {
		return fmt.Errorf("%s provider already registered: %s", kind, e.Key)
	}
	m[e.Key] = e
	return nil
}

// Has reports whether a provider key is registered for the kind
func (r *Registry) Has(kind provider.Kind, key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch kind {
	case provider.KindDocument:
		_, ok := r.documents[key]
		return ok
	case provider.KindLLM:
		_, ok := r.llms[key]
		return ok
	case provider.KindSpeech:
		_, ok := r.speech[key]
		return ok
	}
	return false
}

// Providers lists the registered providers of every kind, sorted by kind then key
func (r *Registry) Providers() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.documents)+len(r.llms)+len(r.speech))
	infos = appendInfos(infos, provider.KindDocument, r.documents)
	infos = appendInfos(infos, provider.KindLLM, r.llms)
	infos = appendInfos(infos, provider.KindSpeech, r.speech)
	return infos
}

func appendInfos[T any](infos []Info, kind provider.Kind, m map[string]Entry[T]) []Info {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		e := m[key]
		infos = append(infos, Info{Kind: kind, Key: e.Key, Name: e.Name, Description: e.Description, Options: e.Options})
	}
	return infos
}

// SetProfile adds a profile or replaces the one with the same name
func (r *Registry) SetProfile(p Profile) error {
	if err := r.validateProfile(p); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.Name] = p
	return nil
}

// Profile returns a profile by name
func (r *Registry) Profile(name string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[name]
	if !ok {
		return Profile{}, apperrors.Configuration(fmt.Sprintf("unknown profile: %s", name))
	}
	return p, nil
}

// Profiles returns all profiles sorted by name
func (r *Registry) Profiles() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	profiles := make([]Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].Name < profiles[j].Name })
	return profiles
}

func (r *Registry) validateProfile(p Profile) error {
	if p.Name == "" {
		return apperrors.Configuration("profile name is required")
	}
	for _, kind := range provider.Kinds() {
		b := p.Binding(kind)
		if b.Provider == "" {
			return apperrors.Configuration(fmt.Sprintf("profile %s: %s provider is required", p.Name, kind))
		}
		if !r.Has(kind, b.Provider) {
			return apperrors.Configuration(fmt.Sprintf("profile %s: unknown %s provider: %s", p.Name, kind, b.Provider))
		}
	}
	return nil
}
