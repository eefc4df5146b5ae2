package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/armourmail/armourmail/internal/adapters/events"
	"github.com/armourmail/armourmail/internal/allowlist"
	"github.com/armourmail/armourmail/internal/config"
	"github.com/armourmail/armourmail/internal/core"
	"github.com/armourmail/armourmail/internal/factory"
	"github.com/armourmail/armourmail/internal/logging"
	"github.com/armourmail/armourmail/internal/quarantine"
	"github.com/armourmail/armourmail/internal/router"
	"github.com/armourmail/armourmail/internal/scanner"
	"github.com/armourmail/armourmail/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewClassifierFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewStorageFactory); err != nil {
		return nil, err
	}

	// Register store
	if err := container.Provide(func(f *factory.StorageFactory) (core.Store, error) {
		return f.CreateStore()
	}); err != nil {
		return nil, err
	}

	// Register classifier
	if err := container.Provide(func(f *factory.ClassifierFactory) (core.Classifier, error) {
		return f.CreateClassifier()
	}); err != nil {
		return nil, err
	}

	// Register allowlist checker
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *allowlist.Checker {
		allowCfg := cfg.GetAllowlist()
		if len(allowCfg.Domains) > 0 {
			logger.Info("Loaded trusted domains", zap.Strings("domains", allowCfg.Domains))
		}
		return allowlist.NewChecker(allowCfg.Domains, allowCfg.Brands, logger)
	}); err != nil {
		return nil, err
	}

	// Register detectors
	if err := container.Provide(func(allow *allowlist.Checker) []core.Detector {
		return []core.Detector{
			scanner.NewPatternScanner(allow),
			scanner.NewStructuralAnalyzer(),
		}
	}); err != nil {
		return nil, err
	}

	// Register aggregator
	if err := container.Provide(func(cfg *config.Config) *core.Aggregator {
		w := cfg.GetScanner().Weights
		return core.NewAggregator(core.Weights{
			Info:     w.Info,
			Low:      w.Low,
			Medium:   w.Medium,
			High:     w.High,
			Critical: w.Critical,
		})
	}); err != nil {
		return nil, err
	}

	// Register event sink
	if err := container.Provide(func(logger *zap.Logger) core.EventSink {
		return events.NewLogSink(logger)
	}); err != nil {
		return nil, err
	}

	// Register scan service
	if err := container.Provide(func(
		cfg *config.Config,
		detectors []core.Detector,
		aggregator *core.Aggregator,
		cls core.Classifier,
		allow *allowlist.Checker,
		store core.Store,
		logger *zap.Logger,
	) (*core.ScanService, error) {
		classifierCfg, err := cfg.GetClassifier()
		if err != nil {
			return nil, err
		}
		return core.NewScanService(
			detectors,
			aggregator,
			cls,
			allow,
			store,
			logger,
			cfg.GetScanner().ClassifierThreshold,
			classifierCfg.Timeout,
		), nil
	}); err != nil {
		return nil, err
	}

	// Register quarantine manager
	if err := container.Provide(func(
		cfg *config.Config,
		store core.Store,
		sink core.EventSink,
		allow *allowlist.Checker,
		logger *zap.Logger,
	) (*quarantine.Manager, error) {
		quarantineCfg, err := cfg.GetQuarantine()
		if err != nil {
			return nil, err
		}
		return quarantine.NewManager(store, sink, allow, logger, quarantineCfg.Expiry), nil
	}); err != nil {
		return nil, err
	}

	// Register expiry sweeper
	if err := container.Provide(func(
		cfg *config.Config,
		manager *quarantine.Manager,
		logger *zap.Logger,
	) (*quarantine.Sweeper, error) {
		quarantineCfg, err := cfg.GetQuarantine()
		if err != nil {
			return nil, err
		}
		return quarantine.NewSweeper(manager, quarantineCfg.SweepFrequency, logger), nil
	}); err != nil {
		return nil, err
	}

	// Register clean delivery channel
	if err := container.Provide(func(cfg *config.Config) chan *core.CanonicalEmail {
		return make(chan *core.CanonicalEmail, cfg.GetRouter().CleanBuffer)
	}); err != nil {
		return nil, err
	}

	// Register router
	if err := container.Provide(func(
		clean chan *core.CanonicalEmail,
		manager *quarantine.Manager,
		sink core.EventSink,
		logger *zap.Logger,
	) *router.Router {
		return router.NewRouter(clean, manager, sink, logger)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
