package profile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/unalkalkan/podcaster/internal/apperrors"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/pkg/types"
)

// Binding selects a provider for one kind plus its profile-level options
type Binding struct {
	Provider string           `json:"provider"`
	Options  provider.Options `json:"options,omitempty"`
}

// Profile is a named combination of one provider per kind
type Profile struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Document    Binding `json:"document"`
	LLM         Binding `json:"llm"`
	Speech      Binding `json:"speech"`
}

// Binding returns the binding of the given kind
func (p Profile) Binding(kind provider.Kind) Binding {
	switch kind {
	case provider.KindDocument:
		return p.Document
	case provider.KindLLM:
		return p.LLM
	case provider.KindSpeech:
		return p.Speech
	}
	return Binding{}
}

// FromConfig converts a configured profile
func FromConfig(c types.ProfileConfig) Profile {
	return Profile{
		Name:        c.Name,
		Description: c.Description,
		Document:    Binding{Provider: c.Document.Provider, Options: provider.Options(c.Document.Options)},
		LLM:         Binding{Provider: c.LLM.Provider, Options: provider.Options(c.LLM.Options)},
		Speech:      Binding{Provider: c.Speech.Provider, Options: provider.Options(c.Speech.Options)},
	}
}

// RunOptions are the per-run option layers applied on top of a profile.
// Each map is keyed by kind so options never leak across kinds.
type RunOptions struct {
	Defaults  map[provider.Kind]provider.Options
	Overrides map[provider.Kind]provider.Options
}

// Providers is one constructed provider per kind
type Providers struct {
	Profile  string
	Document provider.DocumentProvider
	LLM      provider.LLMProvider
	Speech   provider.SpeechProvider
}

// Close closes every constructed provider
func (p *Providers) Close() error {
	var errs []error
	if p.Document != nil {
		if err := p.Document.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close document provider: %w", err))
		}
	}
	if p.LLM != nil {
		if err := p.LLM.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close llm provider: %w", err))
		}
	}
	if p.Speech != nil {
		if err := p.Speech.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close speech provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// CreateProviders builds the providers of a profile. For each kind the
// options are merged as declared defaults < profile options < run defaults
// < run overrides and resolved against that provider's option specs.
// Providers built before a failure are closed.
func (r *Registry) CreateProviders(name string, run RunOptions) (*Providers, error) {
	p, err := r.Profile(name)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	docEntry, docOK := r.documents[p.Document.Provider]
	llmEntry, llmOK := r.llms[p.LLM.Provider]
	speechEntry, speechOK := r.speech[p.Speech.Provider]
	r.mu.RUnlock()

	switch {
	case !docOK:
		return nil, apperrors.Configuration(fmt.Sprintf("unknown document provider: %s", p.Document.Provider))
	case !llmOK:
		return nil, apperrors.Configuration(fmt.Sprintf("unknown llm provider: %s", p.LLM.Provider))
	case !speechOK:
		return nil, apperrors.Configuration(fmt.Sprintf("unknown speech provider: %s", p.Speech.Provider))
	}

	out := &Providers{Profile: p.Name}
	fail := func(err error) (*Providers, error) {
		if cerr := out.Close(); cerr != nil {
			slog.Warn("failed to close providers after construction error", "profile", p.Name, "error", cerr)
		}
		return nil, err
	}

	if out.Document, err = build(docEntry, provider.KindDocument, p.Document, run); err != nil {
		return fail(err)
	}
	if out.LLM, err = build(llmEntry, provider.KindLLM, p.LLM, run); err != nil {
		return fail(err)
	}
	if out.Speech, err = build(speechEntry, provider.KindSpeech, p.Speech, run); err != nil {
		return fail(err)
	}

	slog.Info("providers created", "profile", p.Name,
		"document", p.Document.Provider, "llm", p.LLM.Provider, "speech", p.Speech.Provider)
	return out, nil
}

// ResolveFor merges and resolves the options one kind would be built with
func ResolveFor(specs []provider.OptionSpec, kind provider.Kind, b Binding, run RunOptions) (provider.Options, error) {
	merged := provider.MergeOptions(b.Options, run.Defaults[kind], run.Overrides[kind])
	return provider.ResolveOptions(specs, merged)
}

func build[T any](e Entry[T], kind provider.Kind, b Binding, run RunOptions) (T, error) {
	var zero T
	opts, err := ResolveFor(e.Options, kind, b, run)
	if err != nil {
		return zero, fmt.Errorf("failed to configure %s provider %s: %w", kind, e.Key, err)
	}
	v, err := e.New(opts)
	if err != nil {
		return zero, fmt.Errorf("failed to create %s provider %s: %w", kind, e.Key, err)
	}
	return v, nil
}

// LoadProfiles registers configured profiles, replacing built-ins with the
// same name
func (r *Registry) LoadProfiles(configs []types.ProfileConfig) error {
	for _, c := range configs {
		if err := r.SetProfile(FromConfig(c)); err != nil {
			return err
		}
	}
	return nil
}

// Redact returns a copy of the profile with secret option values masked
func (r *Registry) Redact(p Profile) Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p.Document.Options = redact(p.Document.Options, r.documents[p.Document.Provider].Options)
	p.LLM.Options = redact(p.LLM.Options, r.llms[p.LLM.Provider].Options)
	p.Speech.Options = redact(p.Speech.Options, r.speech[p.Speech.Provider].Options)
	return p
}

func redact(opts provider.Options, specs []provider.OptionSpec) provider.Options {
	if len(opts) == 0 {
		return opts
	}
	secret := make(map[string]bool)
	for _, s := range specs {
		if s.Type == provider.TypeSecret {
			secret[s.Name] = true
		}
	}
	out := make(provider.Options, len(opts))
	for k, v := range opts {
		if secret[k] {
			v = "[REDACTED]"
		}
		out[k] = v
	}
	return out
}
