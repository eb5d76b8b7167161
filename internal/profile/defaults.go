package profile

import (
	"github.com/unalkalkan/podcaster/internal/document"
	"github.com/unalkalkan/podcaster/internal/llm"
	"github.com/unalkalkan/podcaster/internal/provider"
	"github.com/unalkalkan/podcaster/internal/script"
	"github.com/unalkalkan/podcaster/internal/speech"
)

// LLM provider keys
const (
	AzureOpenAIKey = "azure-openai"
	OpenAIKey      = "openai"
	AnthropicKey   = "anthropic"
)

// DefaultProfile is used when a run names no profile
const DefaultProfile = "azure"

// NewDefaultRegistry creates a registry with every built-in provider and profile
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	mustRegister(r.registerDocuments())
	mustRegister(r.registerLLMs())
	mustRegister(r.registerSpeech())
	for _, p := range BuiltinProfiles() {
		mustRegister(r.SetProfile(p))
	}
	return r
}

func mustRegister(err error) {
	if err != nil {
		panic(err)
	}
}

func (r *Registry) registerDocuments() error {
	entries := []Entry[provider.DocumentProvider]{
		{
			Key:         document.LocalProviderKey,
			Name:        "Local converter",
			Description: "Extract text from PDF, Word, HTML, CSV and plain text files in-process.",
			Options:     document.LocalOptions(),
			New: func(opts provider.Options) (provider.DocumentProvider, error) {
				p, err := document.NewLocalProvider(opts)
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		},
		{
			Key:         document.AzureProviderKey,
			Name:        "Azure Document Intelligence",
			Description: "Convert documents to markdown with the prebuilt layout model.",
			Options:     document.AzureOptions(),
			New: func(opts provider.Options) (provider.DocumentProvider, error) {
				p, err := document.NewAzureProvider(opts)
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		},
	}
	for _, e := range entries {
		if err := r.RegisterDocument(e); err != nil {
			return err
		}
	}
	return nil
}

// llmEntry pairs a chat backend with the script generator
func llmEntry(key, name, description string, backend []provider.OptionSpec, inputRate, outputRate float64,
	newModel func(provider.Options) (llm.ChatModel, error)) Entry[provider.LLMProvider] {
	specs := append(append([]provider.OptionSpec(nil), backend...), script.GeneratorOptions(inputRate, outputRate)...)
	return Entry[provider.LLMProvider]{
		Key:         key,
		Name:        name,
		Description: description,
		Options:     specs,
		New: func(opts provider.Options) (provider.LLMProvider, error) {
			model, err := newModel(opts)
			if err != nil {
				return nil, err
			}
			return script.NewGenerator(name, description, specs, model, script.ConfigFromOptions(opts)), nil
		},
	}
}

func (r *Registry) registerLLMs() error {
	entries := []Entry[provider.LLMProvider]{
		llmEntry(AzureOpenAIKey, "Azure OpenAI",
			"Generate the podcast script with an Azure OpenAI deployment.",
			llm.AzureOpenAIOptions(), provider.ChatInputPer1MTokens, provider.ChatOutputPer1MTokens,
			func(opts provider.Options) (llm.ChatModel, error) {
				m, err := llm.NewOpenAIModelFromOptions(opts, true)
				if err != nil {
					return nil, err
				}
				return m, nil
			}),
		llmEntry(OpenAIKey, "OpenAI",
			"Generate the podcast script with the OpenAI API or a compatible endpoint.",
			llm.OpenAIOptions(), provider.OpenAIChatInputPer1MTokens, provider.OpenAIChatOutputPer1MTokens,
			func(opts provider.Options) (llm.ChatModel, error) {
				m, err := llm.NewOpenAIModelFromOptions(opts, false)
				if err != nil {
					return nil, err
				}
				return m, nil
			}),
		llmEntry(AnthropicKey, "Anthropic",
			"Generate the podcast script with Claude models.",
			llm.AnthropicOptions(), provider.AnthropicChatInputPer1MTokens, provider.AnthropicChatOutputPer1MTokens,
			func(opts provider.Options) (llm.ChatModel, error) {
				m, err := llm.NewAnthropicModelFromOptions(opts)
				if err != nil {
					return nil, err
				}
				return m, nil
			}),
	}
	for _, e := range entries {
		if err := r.RegisterLLM(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerSpeech() error {
	entries := []Entry[provider.SpeechProvider]{
		{
			Key:         speech.AzureProviderKey,
			Name:        "Azure Speech",
			Description: "Synthesize the dialogue with Azure HD voices, one voice per host.",
			Options:     speech.AzureOptions(),
			New: func(opts provider.Options) (provider.SpeechProvider, error) {
				p, err := speech.NewAzureProvider(opts)
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		},
		{
			Key:         speech.MultitalkerProviderKey,
			Name:        "Azure Speech Multitalker",
			Description: "Synthesize the dialogue as one conversation with a multitalker HD voice.",
			Options:     speech.MultitalkerOptions(),
			New: func(opts provider.Options) (provider.SpeechProvider, error) {
				p, err := speech.NewMultitalkerProvider(opts)
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		},
		{
			Key:         speech.OpenAIProviderKey,
			Name:        "OpenAI Speech",
			Description: "Synthesize each turn with an OpenAI-compatible speech endpoint.",
			Options:     speech.OpenAIOptions(),
			New: func(opts provider.Options) (provider.SpeechProvider, error) {
				p, err := speech.NewOpenAIProvider(opts)
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		},
		{
			Key:         speech.BasicProviderKey,
			Name:        "Basic SSML",
			Description: "Render standard SSML for external engines. Synthesis is not available.",
			Options:     speech.BasicOptions(),
			New: func(opts provider.Options) (provider.SpeechProvider, error) {
				p, err := speech.NewBasicProvider(opts)
				if err != nil {
					return nil, err
				}
				return p, nil
			},
		},
	}
	for _, e := range entries {
		if err := r.RegisterSpeech(e); err != nil {
			return err
		}
	}
	return nil
}

// BuiltinProfiles returns the profiles available without configuration
func BuiltinProfiles() []Profile {
	return []Profile{
		{
			Name:        "azure",
			Description: "Azure Document Intelligence, Azure OpenAI and Azure Speech HD voices",
			Document:    Binding{Provider: document.AzureProviderKey},
			LLM:         Binding{Provider: AzureOpenAIKey},
			Speech:      Binding{Provider: speech.AzureProviderKey},
		},
		{
			Name:        "azure-basic-speech",
			Description: "Azure document and script generation with plain SSML output",
			Document:    Binding{Provider: document.AzureProviderKey},
			LLM:         Binding{Provider: AzureOpenAIKey},
			Speech:      Binding{Provider: speech.BasicProviderKey},
		},
		{
			Name:        "azure-multitalker",
			Description: "Azure providers with the multitalker dialog voice",
			Document:    Binding{Provider: document.AzureProviderKey},
			LLM:         Binding{Provider: AzureOpenAIKey},
			Speech:      Binding{Provider: speech.MultitalkerProviderKey},
		},
		{
			Name:        "openai",
			Description: "Local conversion, OpenAI script generation and OpenAI speech",
			Document:    Binding{Provider: document.LocalProviderKey},
			LLM:         Binding{Provider: OpenAIKey},
			Speech:      Binding{Provider: speech.OpenAIProviderKey},
		},
		{
			Name:        "anthropic",
			Description: "Local conversion, Claude script generation and Azure Speech HD voices",
			Document:    Binding{Provider: document.LocalProviderKey},
			LLM:         Binding{Provider: AnthropicKey},
			Speech:      Binding{Provider: speech.AzureProviderKey},
		},
	}
}
