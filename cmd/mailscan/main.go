package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/armourmail/armourmail/internal/adapters/storage"
	"github.com/armourmail/armourmail/internal/allowlist"
	"github.com/armourmail/armourmail/internal/config"
	"github.com/armourmail/armourmail/internal/core"
	"github.com/armourmail/armourmail/internal/factory"
	"github.com/armourmail/armourmail/internal/logging"
	"github.com/armourmail/armourmail/internal/parser"
	"github.com/armourmail/armourmail/internal/scanner"
	"github.com/armourmail/armourmail/internal/utils"
	"go.uber.org/zap"
)

var (
	// Classifier provider flags
	provider    = flag.String("provider", "noop", "Classifier provider (noop, openai, bedrock, gemini)")
	maxTokens   = flag.Int("max-tokens", 512, "Maximum tokens for classifier response")
	temperature = flag.Float64("temperature", 0.0, "Temperature for classifier generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for classifier generation")
	maxTextSize = flag.Int("max-text-size", 8192, "Maximum email text size to send to the classifier")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o-mini", "OpenAI model name")

	// Scan flags
	classifierThreshold = flag.Float64("classifier-threshold", 0.3, "Partial score at which the classifier is consulted")
	allowDomains        = flag.String("allow", "", "Comma-separated list of trusted sender domains")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Initialize classifier
	textProcessor := utils.NewTextProcessor(logger)
	classifierFactory := factory.NewClassifierFactory(cfg, logger, textProcessor)
	cls, err := classifierFactory.CreateClassifier()
	if err != nil {
		logger.Fatal("Failed to create classifier", zap.Error(err))
	}

	// Parse trusted domains
	var trustedDomains []string
	if *allowDomains != "" {
		trustedDomains = strings.Split(*allowDomains, ",")
		for i, domain := range trustedDomains {
			trustedDomains[i] = strings.TrimSpace(domain)
		}
	} else {
		trustedDomains = cfg.GetStringSlice("allowlist.domains")
	}

	if len(trustedDomains) > 0 {
		logger.Info("Using trusted domains", zap.Strings("domains", trustedDomains))
	}

	allow := allowlist.NewChecker(trustedDomains, cfg.GetAllowlist().Brands, logger)

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}
	body := textProcessor.TruncateText(string(bodyBytes), cfg.GetScanner().MaxBodySize)

	raw := parser.RawEmail{
		MessageID:  strings.Trim(msg.Header.Get("Message-Id"), "<>"),
		From:       msg.Header.Get("From"),
		To:         splitRecipients(msg.Header.Get("To")),
		Subject:    msg.Header.Get("Subject"),
		Headers:    map[string][]string(msg.Header),
		ReceivedAt: time.Now().UTC(),
	}
	raw.SPF, raw.DKIM, raw.DMARC = parseAuthResults(msg.Header.Get("Authentication-Results"))

	if strings.Contains(strings.ToLower(msg.Header.Get("Content-Type")), "text/html") {
		raw.HTMLBody = body
	} else {
		raw.TextBody = body
	}

	email, err := parser.Parse(raw)
	if err != nil {
		logger.Fatal("Failed to normalize email", zap.Error(err))
	}

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", raw.From)
	fmt.Printf("To: %s\n", msg.Header.Get("To"))
	fmt.Printf("Subject: %s\n", raw.Subject)
	fmt.Printf("Body length: %d bytes\n", len(body))
	fmt.Printf("Email ID: %s\n", email.ID)
	fmt.Printf("\n")

	// Assemble the scan pipeline
	classifierCfg, err := cfg.GetClassifier()
	if err != nil {
		logger.Fatal("Invalid classifier configuration", zap.Error(err))
	}
	scanCfg := cfg.GetScanner()
	aggregator := core.NewAggregator(core.Weights{
		Info:     scanCfg.Weights.Info,
		Low:      scanCfg.Weights.Low,
		Medium:   scanCfg.Weights.Medium,
		High:     scanCfg.Weights.High,
		Critical: scanCfg.Weights.Critical,
	})
	detectors := []core.Detector{
		scanner.NewPatternScanner(allow),
		scanner.NewStructuralAnalyzer(),
	}
	service := core.NewScanService(
		detectors,
		aggregator,
		cls,
		allow,
		storage.NewMemoryStore(logger),
		logger,
		scanCfg.ClassifierThreshold,
		classifierCfg.Timeout,
	)

	fmt.Printf("=== Analysis ===\n")
	fmt.Printf("Classifier provider: %s\n", classifierCfg.Provider)
	fmt.Printf("Classifier threshold: %.2f\n", scanCfg.ClassifierThreshold)

	startTime := time.Now()
	result, err := service.Scan(context.Background(), email)
	if err != nil {
		logger.Fatal("Failed to scan email", zap.Error(err))
	}
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Verdict: %s\n", result.Verdict)
	fmt.Printf("Risk score: %.4f\n", result.Score)
	fmt.Printf("Risk level: %s\n", result.Level)
	fmt.Printf("Flags: %d\n", len(result.Flags))
	for _, f := range result.Flags {
		fmt.Printf("  [%s] %s (%s): %s\n", f.Severity, f.Kind, f.Detector, f.Detail)
	}
	if result.Classifier != nil {
		fmt.Printf("Classifier: injection=%t score=%.2f model=%s\n",
			result.Classifier.InjectionDetected,
			result.Classifier.SocialEngineeringScore,
			result.Classifier.Model)
	}
	fmt.Printf("Processing time: %v\n", duration)

	// Close any resources that need closing
	if closer, ok := cls.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("Failed to close classifier", zap.Error(err))
		}
	}
}

func splitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseAuthResults pulls spf/dkim/dmarc outcomes out of an
// Authentication-Results header value.
func parseAuthResults(header string) (spf, dkim, dmarc string) {
	for _, clause := range strings.Split(header, ";") {
		clause = strings.TrimSpace(clause)
		fields := strings.Fields(clause)
		if len(fields) == 0 {
			continue
		}
		key, value, ok := strings.Cut(fields[0], "=")
		if !ok {
			continue
		}
		switch strings.ToLower(key) {
		case "spf":
			spf = value
		case "dkim":
			dkim = value
		case "dmarc":
			dmarc = value
		}
	}
	return spf, dkim, dmarc
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set classifier provider
	v.Set("classifier.provider", *provider)
	v.Set("classifier.max_text_size", *maxTextSize)

	// Set provider-specific configuration
	switch *provider {
	case "bedrock":
		v.Set("classifier.bedrock.region", *bedrockRegion)
		v.Set("classifier.bedrock.model_id", *bedrockModelID)
		v.Set("classifier.bedrock.max_tokens", *maxTokens)
		v.Set("classifier.bedrock.temperature", *temperature)
		v.Set("classifier.bedrock.top_p", *topP)
	case "gemini":
		v.Set("classifier.gemini.api_key", *geminiAPIKey)
		v.Set("classifier.gemini.model_name", *geminiModelName)
		v.Set("classifier.gemini.max_tokens", *maxTokens)
		v.Set("classifier.gemini.temperature", *temperature)
		v.Set("classifier.gemini.top_p", *topP)
	case "openai":
		v.Set("classifier.openai.api_key", *openaiAPIKey)
		v.Set("classifier.openai.model_name", *openaiModelName)
		v.Set("classifier.openai.max_tokens", *maxTokens)
		v.Set("classifier.openai.temperature", *temperature)
		v.Set("classifier.openai.top_p", *topP)
	}

	// Set classifier trigger threshold
	v.Set("scanner.classifier_threshold", *classifierThreshold)

	// Set trusted domains
	if *allowDomains != "" {
		domains := strings.Split(*allowDomains, ",")
		for i, domain := range domains {
			domains[i] = strings.TrimSpace(domain)
		}
		v.Set("allowlist.domains", domains)
	} else {
		v.Set("allowlist.domains", []string{})
	}

	return config.NewFromViper(v)
}
