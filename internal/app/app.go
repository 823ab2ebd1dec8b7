// Package app wires configuration, storage, and services into the shared
// application core used by cmd/corvus-server and by tests.
package app

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/corvusfin/corvus/internal/common"
	"github.com/corvusfin/corvus/internal/interfaces"
	"github.com/corvusfin/corvus/internal/services/audit"
	"github.com/corvusfin/corvus/internal/services/networth"
	"github.com/corvusfin/corvus/internal/services/position"
	"github.com/corvusfin/corvus/internal/services/posting"
	"github.com/corvusfin/corvus/internal/services/registry"
	"github.com/corvusfin/corvus/internal/storage"
)

// App holds all initialized services and storage.
type App struct {
	Config          *common.Config
	Logger          *common.Logger
	Storage         interfaces.StorageManager
	PostingService  interfaces.PostingService
	PositionService interfaces.PositionService
	NetWorthService interfaces.NetWorthService
	RegistryService interfaces.RegistryService
	AuditService    interfaces.AuditService
	StartupTime     time.Time

	scheduler *SnapshotScheduler
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes configuration, storage, and services. configPath may be
// empty, in which case CORVUS_CONFIG and then the binary directory are tried.
func NewApp(configPath string) (*App, error) {
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	if configPath == "" {
		configPath = os.Getenv("CORVUS_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "corvus.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/corvus.toml"
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative storage paths to the binary directory so the server is
	// self-contained wherever it is launched from.
	if config.Storage.Ledger.Path != "" && !filepath.IsAbs(config.Storage.Ledger.Path) {
		config.Storage.Ledger.Path = filepath.Join(binDir, config.Storage.Ledger.Path)
	}
	if config.Storage.Reference.Path != "" && !filepath.IsAbs(config.Storage.Reference.Path) {
		config.Storage.Reference.Path = filepath.Join(binDir, config.Storage.Reference.Path)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := storage.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return newApp(config, logger, storageManager), nil
}

// NewAppWithStorage wires services over externally constructed config and
// storage. Used by tests.
func NewAppWithStorage(config *common.Config, logger *common.Logger, storageManager interfaces.StorageManager) *App {
	return newApp(config, logger, storageManager)
}

func newApp(config *common.Config, logger *common.Logger, storageManager interfaces.StorageManager) *App {
	recorder := audit.NewRecorder()
	locks := common.NewKeyedLocks()

	a := &App{
		Config:          config,
		Logger:          logger,
		Storage:         storageManager,
		PostingService:  posting.NewService(storageManager, config, logger, recorder, locks),
		PositionService: position.NewService(storageManager, config, logger, recorder, locks),
		NetWorthService: networth.NewService(storageManager, config, logger, recorder, locks),
		RegistryService: registry.NewService(storageManager, config, logger, recorder, locks),
		AuditService:    audit.NewService(storageManager, logger),
		StartupTime:     time.Now(),
	}

	if interval := config.Ledger.GetSnapshotInterval(); interval > 0 {
		a.scheduler = NewSnapshotScheduler(a.RegistryService, a.NetWorthService, logger, interval)
		a.scheduler.Start()
	}

	return a
}

// Close stops the scheduler and releases storage.
func (a *App) Close() error {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}
	return nil
}
