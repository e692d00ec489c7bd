package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"loyalty-rewards-system/internal/catalog"
	"loyalty-rewards-system/internal/config"
	"loyalty-rewards-system/internal/handler"
	"loyalty-rewards-system/internal/ledger"
	"loyalty-rewards-system/internal/metrics"
	"loyalty-rewards-system/internal/models"
	"loyalty-rewards-system/internal/notify"
	"loyalty-rewards-system/internal/purchase"
	"loyalty-rewards-system/internal/repository"
	"loyalty-rewards-system/internal/scheduler"
	"loyalty-rewards-system/internal/stellar"
	"loyalty-rewards-system/internal/wallet"
	"loyalty-rewards-system/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	txRepo := repository.NewTransactionRepository(db)

	connector := wallet.NewConnector(&cfg.Wallet, walletProbes(cfg)...)
	stellarSvc := stellar.NewHorizonService(&cfg.Stellar, connector, cfg.Businesses[0].WalletAddress)
	session := wallet.NewSession(connector, stellarSvc, cfg.Stellar.Network)

	ledgerSvc := ledger.NewService(cfg.Businesses)
	cat := catalog.NewCatalog()
	center := notify.NewCenter(&cfg.Notifications)
	defer center.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	purchaseSvc := purchase.NewService(
		&cfg.Purchase, cfg.Stellar.HistoryLimit,
		stellarSvc, session, connector, ledgerSvc, cat, txRepo, center, m,
	)
	session.OnConnect(purchaseSvc.ExecutePending)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go checkBusinessWallets(ctx, stellarSvc)

	refreshScheduler := scheduler.NewRefreshScheduler(purchaseSvc, session, &cfg.Scheduler)
	if err := refreshScheduler.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer refreshScheduler.Stop()

	router := setupHTTPRouter(cfg, txRepo, ledgerSvc, cat, session, purchaseSvc, stellarSvc, center, registry)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&models.Transaction{}); err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}

// walletProbes builds the extension probe list. Without a real browser
// extension the only binding is the local development one, enabled by
// setting WALLET_PUBLIC_KEY.
func walletProbes(cfg *config.Config) []wallet.Probe {
	publicKey := os.Getenv("WALLET_PUBLIC_KEY")
	if publicKey == "" {
		return nil
	}
	ext := wallet.NewLocalExtension(publicKey, cfg.Stellar.Network)
	return []wallet.Probe{func() wallet.Extension { return ext }}
}

// checkBusinessWallets verifies the configured business accounts exist
// on startup and funds the primary one from friendbot when missing.
func checkBusinessWallets(ctx context.Context, svc stellar.Service) {
	status, err := svc.TestBusinessWallet(ctx)
	if err != nil {
		logger.WithError(err).Warn("Business wallet check failed")
		return
	}
	if status.Exists {
		logger.WithFields(map[string]interface{}{
			"address": status.Address,
			"balance": status.Balance,
		}).Info("Business wallet ready")
		return
	}

	outcome, err := svc.FundBusinessWalletIfNeeded(ctx)
	if err != nil {
		logger.WithError(err).Warn("Business wallet funding failed")
		return
	}
	logger.Info("Business wallet funding:", outcome.Message)
}

func setupHTTPRouter(
	cfg *config.Config,
	txRepo *repository.TransactionRepository,
	ledgerSvc *ledger.Service,
	cat *catalog.Catalog,
	session *wallet.Session,
	purchaseSvc *purchase.Service,
	stellarSvc stellar.Service,
	center *notify.Center,
	registry *prometheus.Registry,
) http.Handler {
	router := http.NewServeMux()

	walletHandler := handler.NewWalletHandler(session)
	shopHandler := handler.NewShopHandler(cat, purchaseSvc)
	rewardsHandler := handler.NewRewardsHandler(cat, purchaseSvc)
	historyHandler := handler.NewHistoryHandler(txRepo, ledgerSvc, purchaseSvc, session)
	overviewHandler := handler.NewOverviewHandler(txRepo, ledgerSvc, cat, session)
	tokensHandler := handler.NewTokensHandler(txRepo, ledgerSvc, purchaseSvc, session)
	accountHandler := handler.NewAccountHandler(stellarSvc)
	businessHandler := handler.NewBusinessHandler(stellarSvc)
	notificationHandler := handler.NewNotificationHandler(center)

	router.HandleFunc("/api/overview", overviewHandler.GetOverview)
	router.HandleFunc("/api/wallet/status", walletHandler.GetStatus)
	router.HandleFunc("/api/wallet/connect", walletHandler.Connect)
	router.HandleFunc("/api/wallet/disconnect", walletHandler.Disconnect)
	router.HandleFunc("/api/wallet/balance/refresh", walletHandler.RefreshBalance)
	router.HandleFunc("/api/shop/items", shopHandler.ListItems)
	router.HandleFunc("/api/shop/buy/", shopHandler.BuyItem)
	router.HandleFunc("/api/tokens", tokensHandler.GetTokens)
	router.HandleFunc("/api/tokens/earn/", tokensHandler.Earn)
	router.HandleFunc("/api/tokens/scan", tokensHandler.Scan)
	router.HandleFunc("/api/account/status/", accountHandler.GetStatus)
	router.HandleFunc("/api/account/fund/", accountHandler.Fund)
	router.HandleFunc("/api/rewards", rewardsHandler.ListRewards)
	router.HandleFunc("/api/rewards/redeem/", rewardsHandler.Redeem)
	router.HandleFunc("/api/history", historyHandler.GetHistory)
	router.HandleFunc("/api/history/refresh", historyHandler.Refresh)
	router.HandleFunc("/api/business/status", businessHandler.GetStatus)
	router.HandleFunc("/api/business/fund", businessHandler.Fund)
	router.HandleFunc("/api/notifications", notificationHandler.List)
	router.HandleFunc("/api/notifications/dismiss/", notificationHandler.Dismiss)
	router.HandleFunc("/health", handler.HandleHealth)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return router
}
