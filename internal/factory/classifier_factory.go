package factory

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/armourmail/armourmail/internal/adapters/classifier/bedrock"
	"github.com/armourmail/armourmail/internal/adapters/classifier/gemini"
	"github.com/armourmail/armourmail/internal/adapters/classifier/noop"
	"github.com/armourmail/armourmail/internal/adapters/classifier/openai"
	"github.com/armourmail/armourmail/internal/config"
	"github.com/armourmail/armourmail/internal/core"
	"github.com/armourmail/armourmail/internal/utils"
	"go.uber.org/zap"
)

// ClassifierFactory creates semantic classifiers based on configuration
type ClassifierFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewClassifierFactory creates a new classifier factory
func NewClassifierFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *ClassifierFactory {
	return &ClassifierFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateClassifier creates a classifier based on the configuration
func (f *ClassifierFactory) CreateClassifier() (core.Classifier, error) {
	classifierCfg, err := f.cfg.GetClassifier()
	if err != nil {
		return nil, fmt.Errorf("invalid classifier configuration: %w", err)
	}

	switch classifierCfg.Provider {
	case "noop":
		return noop.NewClassifier(), nil
	case "openai":
		cfg := classifierCfg.OpenAI
		return openai.NewClassifier(
			cfg.APIKey,
			cfg.ModelName,
			cfg.MaxTokens,
			float32(cfg.Temperature),
			float32(cfg.TopP),
			classifierCfg.MaxTextSize,
			f.textProcessor,
			f.logger,
		), nil
	case "bedrock":
		cfg := classifierCfg.Bedrock
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(cfg.Region),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
		}
		client := bedrockruntime.NewFromConfig(awsCfg)
		return bedrock.NewClassifier(
			client,
			cfg.ModelID,
			cfg.MaxTokens,
			float32(cfg.Temperature),
			float32(cfg.TopP),
			classifierCfg.MaxTextSize,
			f.textProcessor,
			f.logger,
		), nil
	case "gemini":
		cfg := classifierCfg.Gemini
		return gemini.NewClassifier(
			cfg.APIKey,
			cfg.ModelName,
			cfg.MaxTokens,
			float32(cfg.Temperature),
			float32(cfg.TopP),
			classifierCfg.MaxTextSize,
			f.textProcessor,
			f.logger,
		)
	default:
		return nil, fmt.Errorf("unsupported classifier provider: %s", classifierCfg.Provider)
	}
}
