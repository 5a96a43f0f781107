package provider

import (
	"fmt"

	"github.com/emredeveloper/invoice-ai-extractor/config"
	"github.com/emredeveloper/invoice-ai-extractor/pkg/logger"
)

// FromConfig builds the provider variant named in the configuration.
func FromConfig(cfg config.ProviderConfig, log logger.Logger) (Provider, error) {
	switch cfg.Kind {
	case "hosted":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("hosted provider requires an api key")
		}
		return NewHosted(cfg.APIKey, cfg.Model, cfg.Temperature, log), nil
	case "local":
		return NewLocal(cfg.BaseURL, cfg.LocalModel, cfg.MaxImages, log), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", cfg.Kind)
	}
}
