package app

import (
	"fmt"
	"time"

	"ta-fetcher/src/catalog"
	"ta-fetcher/src/data_source/gateway"
	"ta-fetcher/src/data_source/simulated"
	"ta-fetcher/src/interfaces"
	"ta-fetcher/src/logger"
	"ta-fetcher/src/models"
	"ta-fetcher/src/network"
	"ta-fetcher/src/storage"
	"ta-fetcher/src/utils"
)

// -----------------------------------------------------------------------------

// setupStore opens the database selected by storage.db_type and creates the
// shared tables.
func setupStore(cfg *models.MConfig, loc *time.Location, appLogger *logger.Logger) (interfaces.IStore, error) {
	var store interfaces.IStore
	var err error

	switch cfg.Storage.DBType {
	case "postgres":
		store, err = storage.NewPostgresDB(cfg, loc, logger.NewLogger(cfg, "PostgresStore"))
	default:
		store, err = storage.NewAsyncSQLiteDB(cfg, loc, logger.NewLogger(cfg, "SQLiteStore"))
	}
	if err != nil {
		appLogger.Error("Failed to init db: %v", err)
		return nil, err
	}
	if err := store.Initialize(); err != nil {
		appLogger.Error("Failed to migrate db: %v", err)
		return nil, err
	}
	return store, nil
}

// -----------------------------------------------------------------------------

func setupNetwork(cfg *models.MConfig) interfaces.INetworkManager {
	return network.NewAsyncNetworkManager(cfg, logger.NewLogger(cfg, "NetworkManager"))
}

// -----------------------------------------------------------------------------

func setupCatalog(cfg *models.MConfig, store interfaces.IStore, net interfaces.INetworkManager, appLogger *logger.Logger) (interfaces.ISymbolCatalog, error) {
	c, err := catalog.New(cfg, store, net, logger.NewLogger(cfg, "SymbolCatalog"))
	if err != nil {
		return nil, err
	}
	appLogger.Info("Symbol catalog: %s", c.Name())
	return c, nil
}

// -----------------------------------------------------------------------------

// setupConnector builds the vendor connector selected by vendor.type.
func setupConnector(cfg *models.MConfig, net interfaces.INetworkManager, cal *utils.TradingCalendar, loc *time.Location) (interfaces.IVendorConnector, error) {
	switch cfg.Vendor.Type {
	case "gateway":
		return gateway.NewConnector(cfg, net, loc, logger.NewLogger(cfg, "GatewayConnector")), nil
	case "simulated":
		return simulated.NewConnector(loc, cal, logger.NewLogger(cfg, "SimulatedConnector")), nil
	}
	return nil, fmt.Errorf("unsupported vendor type %q", cfg.Vendor.Type)
}
