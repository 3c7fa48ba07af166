package embedding

import "fmt"

// Provider names accepted by New.
const (
	ProviderMock   = "mock"
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
)

// Settings selects and configures an embedding provider.
type Settings struct {
	Provider   string
	ModelPath  string
	Model      string
	APIKey     string
	BaseURL    string
	Dimensions int
	MaxTokens  int
}

// Name identifies the provider and model that produce the vectors. Caches
// built under one name are not reused under another.
func (s Settings) Name() string {
	switch s.Provider {
	case ProviderMock, "":
		return ProviderMock
	case ProviderONNX:
		return ProviderONNX + ":" + s.ModelPath
	case ProviderOpenAI:
		model := s.Model
		if model == "" {
			model = DefaultOpenAIModel
		}
		return ProviderOpenAI + ":" + model
	default:
		return s.Provider
	}
}

// New creates the configured provider. An empty provider selects the mock.
func New(s Settings) (Embedder, error) {
	switch s.Provider {
	case ProviderMock, "":
		return NewMockEmbedder(s.Dimensions), nil
	case ProviderONNX:
		if s.ModelPath == "" {
			return nil, fmt.Errorf("onnx provider requires a model path")
		}
		e, err := NewONNXEmbedder(s.ModelPath, s.Dimensions, s.MaxTokens)
		if err != nil {
			return nil, err
		}
		return e, nil
	case ProviderOpenAI:
		var opts []OpenAIOption
		if s.BaseURL != "" {
			opts = append(opts, WithBaseURL(s.BaseURL))
		}
		e, err := NewOpenAIEmbedder(s.APIKey, s.Model, s.Dimensions, opts...)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: mock, onnx, openai)", s.Provider)
	}
}
