package analysis

import (
	"fmt"
	"log/slog"

	"github.com/ashureev/motion-coach/internal/coaching"
	"github.com/ashureev/motion-coach/internal/config"
)

// Backend is the configured analyzer plus its lifecycle hooks.
type Backend struct {
	Name     string
	Analyzer coaching.Analyzer // nil when analysis is disabled

	ready func() bool
	close func() error
}

// Ready reports whether the backend can currently take calls.
func (b *Backend) Ready() bool {
	if b.ready == nil {
		return b.Analyzer != nil
	}
	return b.ready()
}

// Close releases the backend's connections.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// New builds the backend selected by cfg.Backend.
func New(cfg config.AnalysisConfig, logger *slog.Logger) (*Backend, error) {
	switch cfg.Backend {
	case config.AnalyzerGemini:
		client := NewGeminiClient(GeminiConfig{
			APIKey:   cfg.GeminiAPIKey,
			Model:    cfg.GeminiModel,
			Endpoint: cfg.GeminiBaseURL,
		}, logger)
		return &Backend{Name: cfg.Backend, Analyzer: client}, nil

	case config.AnalyzerGRPC:
		client, err := NewGrpcClient(DefaultGrpcClientConfig(cfg.SidecarAddr), logger)
		if err != nil {
			return nil, err
		}
		return &Backend{Name: cfg.Backend, Analyzer: client, ready: client.Ready, close: client.Close}, nil

	case config.AnalyzerNone, "":
		return &Backend{Name: config.AnalyzerNone}, nil
	}
	return nil, fmt.Errorf("unknown analyzer backend %q", cfg.Backend)
}
