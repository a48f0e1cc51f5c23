package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/config"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/db"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/gateway"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/repository"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/domain/valueobject"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/goroutine"
	httpRouter "github.com/Omoefe-bazunu/mountescrow-sub000/internal/http/router"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/identity"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/journal"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/ledger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/memory"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/notify"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/infrastructure/persistence"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/interface/http/handler"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/logger"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/service"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/storage"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/countdown"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/deal"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/dispute"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/milestone"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/proposal"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/usecase/webhook"
	"github.com/Omoefe-bazunu/mountescrow-sub000/internal/ws"
)

const (
	journalRetention     = 7 * 24 * time.Hour
	journalPruneInterval = time.Hour
)

type repositories struct {
	proposals    repository.ProposalRepository
	deals        repository.DealRepository
	disputes     repository.DisputeRepository
	transactions repository.WalletTransactionRepository
}

func main() {
	// Готовим контекст для graceful shutdown.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("main: ошибка загрузки конфигурации: %v", err)
	}

	logger.Init(cfg.LogLevel, cfg.Env)

	// Хранилище: postgres или память процесса.
	var (
		dbConn *sqlx.DB
		repos  repositories
	)
	switch cfg.StorageDriver {
	case config.StorageDriverPostgres:
		dbConn, err = db.NewPostgres(ctx, db.DefaultPoolConfig(cfg.DatabaseURL))
		if err != nil {
			log.Fatalf("main: ошибка подключения к базе: %v", err)
		}
		defer safeClose(dbConn)

		if err := db.RunMigrations(ctx, dbConn, cfg.MigrationsPath); err != nil {
			log.Fatalf("main: ошибка миграций: %v", err)
		}
		repos = repositories{
			proposals:    persistence.NewProposalRepositoryAdapter(dbConn),
			deals:        persistence.NewDealRepositoryAdapter(dbConn),
			disputes:     persistence.NewDisputeRepositoryAdapter(dbConn),
			transactions: persistence.NewTransactionRepositoryAdapter(dbConn),
		}
	default:
		logger.Log.Warn("main: данные хранятся в памяти и пропадут при перезапуске")
		store := memory.NewStore()
		repos = repositories{
			proposals:    store.Proposals(),
			deals:        store.Deals(),
			disputes:     store.Disputes(),
			transactions: store.Transactions(),
		}
	}

	// Внешние сервисы.
	var walletLedger gateway.Ledger
	if cfg.LedgerBaseURL != "" {
		walletLedger = ledger.NewClient(cfg.LedgerBaseURL, cfg.LedgerSecretKey, cfg.PublicBaseURL+"/deals", cfg.LedgerTimeout)
	} else {
		logger.Log.Warn("main: LEDGER_BASE_URL не задан, используется sandbox кошелёк")
		walletLedger = ledger.NewSandbox()
	}

	var kyc gateway.IdentityVerifier
	if cfg.KYCDriver == config.KYCDriverHTTP {
		cached := identity.NewCachingVerifier(identity.NewHTTPVerifier(cfg.KYCBaseURL, cfg.KYCAPIKey, cfg.ExternalCallTimeout), cfg.KYCCacheTTL)
		cached.StartCleanup(ctx, cfg.KYCCacheTTL)
		kyc = cached
	} else {
		kyc = identity.NewStaticVerifier(valueobject.KYCStatusApproved)
	}

	fileStore, err := newFileStore(ctx, cfg)
	if err != nil {
		log.Fatalf("main: не удалось подготовить файловое хранилище: %v", err)
	}

	eventJournal, err := journal.Open(cfg.WebhookJournalPath)
	if err != nil {
		log.Fatalf("main: не удалось открыть журнал вебхуков: %v", err)
	}
	defer func() {
		if err := eventJournal.Close(); err != nil {
			logger.Log.WithError(err).Warn("main: ошибка закрытия журнала вебхуков")
		}
	}()
	goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
		pruneJournal(ctx, eventJournal)
	})

	// Вебсокеты.
	hub := ws.NewHub()
	goroutine.SafeGoWithContext(ctx, hub.Run)

	mailNotifier, err := newMailNotifier(cfg)
	if err != nil {
		log.Fatalf("main: ошибка настройки уведомлений: %v", err)
	}
	notifier := notify.NewAsync(notify.Fanout{mailNotifier, ws.NewNotifier(hub)}, cfg.ExternalCallTimeout)

	tokenManager := service.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL, "mountescrow")

	// Сценарии.
	factory := deal.NewFactory(repos.deals, notifier)
	funding := deal.NewFundDealUseCase(repos.deals, repos.transactions, walletLedger, kyc, cfg.ExternalCallTimeout)
	machine := milestone.NewMachine(repos.deals, repos.transactions, walletLedger, notifier,
		milestone.WithCountdownTTL(cfg.CountdownTTL),
		milestone.WithLedgerTimeout(cfg.LedgerTimeout),
	)
	scheduler := countdown.NewScheduler(repos.deals, machine, cfg.CountdownPollInterval)
	manager := dispute.NewManager(repos.deals, repos.disputes, repos.transactions, walletLedger, kyc, machine, notifier, cfg.LedgerTimeout)
	reconciler := webhook.NewReconciler(ledger.NewSignatureVerifier(cfg.WebhookSecret), eventJournal, walletLedger,
		repos.deals, repos.transactions, machine, cfg.LedgerTimeout)

	scheduler.Start(ctx)

	// HTTP хэндлеры.
	handlers := httpRouter.Handlers{
		Proposal: handler.NewProposalHandler(
			proposal.NewCreateProposalUseCase(repos.proposals, notifier),
			proposal.NewUpdateProposalStatusUseCase(repos.proposals, factory, funding, kyc, notifier, cfg.ExternalCallTimeout),
			proposal.NewGetProposalUseCase(repos.proposals),
			proposal.NewListMyProposalsUseCase(repos.proposals),
		),
		Deal:      handler.NewDealHandler(deal.NewGetDealUseCase(repos.deals, repos.transactions), deal.NewListMyDealsUseCase(repos.deals), funding),
		Milestone: handler.NewMilestoneHandler(machine, scheduler),
		Dispute:   handler.NewDisputeHandler(manager),
		Wallet:    handler.NewWalletHandler(walletLedger, repos.transactions, cfg.LedgerTimeout),
		File:      handler.NewFileHandler(fileStore, cfg.MaxUploadSizeMB),
		Webhook:   handler.NewWebhookHandler(reconciler),
		WS:        handler.NewWSHandler(hub, tokenManager, cfg.AllowedOrigins),
		Health:    handler.NewHealthHandler(dbConn, cfg.StorageDriver),
	}

	engine := httpRouter.SetupRouter(cfg, handlers, tokenManager)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Завершаем сервер при получении сигнала.
	goroutine.SafeGo(func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("main: ошибка остановки http сервера")
		}
	})

	logger.Log.WithFields(logrus.Fields{
		"port":    cfg.HTTPPort,
		"env":     cfg.Env,
		"storage": cfg.StorageDriver,
	}).Info("main: HTTP сервер запущен")

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("main: сервер завершился с ошибкой: %v", err)
	}
}

func newFileStore(ctx context.Context, cfg *config.Config) (gateway.FileStore, error) {
	if cfg.FileStoreDriver == config.FileStoreMinio {
		store, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			PublicURL: cfg.MinioPublicURL,
		})
		if err != nil {
			return nil, err
		}
		if err := store.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	return storage.NewLocalStore(cfg.MediaStoragePath, cfg.PublicBaseURL+"/media", cfg.MaxUploadSizeMB)
}

func newMailNotifier(cfg *config.Config) (gateway.Notifier, error) {
	renderer, err := notify.NewRenderer(cfg.PublicBaseURL)
	if err != nil {
		return nil, err
	}

	switch cfg.MailDriver {
	case config.MailDriverSMTP:
		return notify.NewEmailNotifier(notify.NewSMTPMailer(notify.SMTPConfig{
			Host:        cfg.SMTPHost,
			Port:        cfg.SMTPPort,
			Username:    cfg.SMTPUser,
			Password:    cfg.SMTPPassword,
			From:        cfg.MailFrom,
			InsecureTLS: cfg.SMTPInsecure,
		}), renderer), nil
	case config.MailDriverMailgun:
		return notify.NewEmailNotifier(notify.NewMailgunMailer(notify.MailgunConfig{
			Domain:  cfg.MailgunDomain,
			APIKey:  cfg.MailgunAPIKey,
			APIBase: cfg.MailgunAPIBase,
			From:    cfg.MailFrom,
		}), renderer), nil
	default:
		return notify.LogNotifier{}, nil
	}
}

func pruneJournal(ctx context.Context, j *journal.BoltJournal) {
	ticker := time.NewTicker(journalPruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.Prune(journalRetention)
			if err != nil {
				logger.Log.WithError(err).Warn("main: не удалось очистить журнал вебхуков")
				continue
			}
			if removed > 0 {
				logger.Log.WithField("removed", removed).Debug("main: журнал вебхуков очищен")
			}
		}
	}
}

// safeClose закрывает соединение с базой.
func safeClose(db *sqlx.DB) {
	if err := db.Close(); err != nil {
		log.Printf("main: ошибка закрытия базы: %v", err)
	}
}
