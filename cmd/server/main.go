// Package main - точка входа финансового сервиса академии.
//
// Сервис ведёт расходы и долги партнёров, погашения, кассовый журнал,
// закрытие дня и ведомость преподавателей. Идентичность пользователя
// приходит от внешнего шлюза аутентификации в заголовках запроса.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/shopspring/decimal"

	"github.com/alem-hub/academy-finance/config"

	// Application layer
	"github.com/alem-hub/academy-finance/internal/application/command"
	"github.com/alem-hub/academy-finance/internal/application/eventhandler"
	"github.com/alem-hub/academy-finance/internal/application/query"

	// Domain
	"github.com/alem-hub/academy-finance/internal/domain/enrollment"
	"github.com/alem-hub/academy-finance/internal/domain/expense"
	"github.com/alem-hub/academy-finance/internal/domain/ledger"
	"github.com/alem-hub/academy-finance/internal/domain/partner"
	"github.com/alem-hub/academy-finance/internal/domain/payroll"
	"github.com/alem-hub/academy-finance/internal/domain/settings"
	"github.com/alem-hub/academy-finance/internal/domain/settlement"
	"github.com/alem-hub/academy-finance/internal/domain/shared"

	// Infrastructure layer
	"github.com/alem-hub/academy-finance/internal/infrastructure/messaging"
	"github.com/alem-hub/academy-finance/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/academy-finance/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/academy-finance/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/academy-finance/internal/infrastructure/service"

	// Interface layer
	httpserver "github.com/alem-hub/academy-finance/internal/interface/http"
	"github.com/alem-hub/academy-finance/internal/interface/http/handlers"

	// Packages
	"github.com/alem-hub/academy-finance/pkg/logger"
	"github.com/alem-hub/academy-finance/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. ЗАГРУЗКА КОНФИГУРАЦИИ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. НАСТРОЙКА ЛОГИРОВАНИЯ
	// ─────────────────────────────────────────────────────────────────────────
	log := logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     logger.ParseLevel(cfg.Observability.LogLevel),
		Format:    cfg.Observability.LogFormat,
		AddSource: cfg.App.Debug,
	})
	log.Info("starting academy finance service",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	timeutil.SetLocation(cfg.App.Location)

	if len(cfg.Auth.GatewayKeyHashes) == 0 {
		log.Warn("no gateway key hashes configured, gateway authentication disabled")
	}

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ХРАНИЛИЩЕ (PostgreSQL или память)
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()
	if st.pinger != nil {
		health.AddCheck("postgres", handlers.NewPingCheck(st.pinger))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. REDIS: РАСПРЕДЕЛЁННЫЕ БЛОКИРОВКИ И ШИНА СОБЫТИЙ
	// ─────────────────────────────────────────────────────────────────────────
	var (
		locker command.Locker = service.NewKeyedLocker()
		bus    closableBus
	)

	localBus := messaging.DefaultInMemoryEventBusConfig()
	localBus.WorkerPoolSize = cfg.EventBus.Workers
	localBus.Logger = log

	if cfg.Redis.Enabled {
		log.Info("connecting to Redis...", logger.String("host", cfg.Redis.Host), logger.Int("port", cfg.Redis.Port))

		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MinIdleConns = cfg.Redis.MinIdleConns
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
		redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

		redisClient, err := redis.NewClient(redisCfg)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		health.AddCheck("redis", handlers.NewPingCheck(redisClient))

		locker = redis.NewLocker(redisClient, redis.WithLockTTL(cfg.Redis.LockTTL), redis.WithLockLogger(log))

		redisBus, err := messaging.NewRedisEventBus(messaging.RedisEventBusConfig{
			Client:         redisClient,
			ChannelName:    cfg.EventBus.Channel,
			LocalBusConfig: localBus,
			Logger:         log,
		})
		if err != nil {
			_ = redisClient.Close()
			return fmt.Errorf("failed to start redis event bus: %w", err)
		}
		// Клиент Redis закрывается вместе с шиной
		bus = redisBus
		log.Info("Redis connection established")
	} else {
		bus = messaging.NewInMemoryEventBus(localBus)
	}
	defer func() {
		log.Info("closing event bus...")
		_ = bus.Close()
	}()

	if err := eventhandler.Register(bus, service.NewLogNotifier(log), log); err != nil {
		return fmt.Errorf("failed to register event handlers: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. APPLICATION LAYER
	// ─────────────────────────────────────────────────────────────────────────
	settingsSvc := settings.NewService(st.settings, timeutil.Now,
		settings.WithDefaultSalary(salaryDefaults(cfg.Finance.DefaultTeacherShare)))

	deps := command.Deps{
		UoW:         st.uow,
		Locker:      locker,
		IDs:         service.NewIDGenerator(),
		Publisher:   bus,
		Settings:    settingsSvc,
		Partners:    st.partners,
		Expenses:    st.expenses,
		Settlements: st.settlements,
		Ledger:      st.ledger,
		Teachers:    st.teachers,
		Payments:    st.payments,
		Logger:      log,
		Clock:       timeutil.Now,
		MaxAttempts: cfg.Finance.SettlementRetryAttempts,
	}

	payrollQuery := query.NewGetTeacherPayrollHandler(st.teachers, st.payments, st.roster, settingsSvc, timeutil.Now)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	httpConfig := httpserver.DefaultConfig()
	httpConfig.Host = cfg.HTTP.Host
	httpConfig.Port = cfg.HTTP.Port
	httpConfig.ReadTimeout = cfg.HTTP.ReadTimeout
	httpConfig.WriteTimeout = cfg.HTTP.WriteTimeout
	httpConfig.IdleTimeout = cfg.HTTP.IdleTimeout
	httpConfig.MaxBodyBytes = cfg.HTTP.MaxBodyBytes
	httpConfig.GatewayKeyHashes = cfg.Auth.GatewayKeyHashes
	httpConfig.Version = cfg.App.Version

	httpServer := httpserver.NewServer(httpConfig, httpserver.Dependencies{
		CreateExpense:        command.NewCreateExpenseHandler(deps),
		DeleteExpense:        command.NewDeleteExpenseHandler(deps),
		MarkExpensePaid:      command.NewMarkExpensePaidHandler(deps),
		RecordSettlement:     command.NewRecordSettlementHandler(deps),
		CloseDay:             command.NewCloseDayHandler(deps),
		RecordIncome:         command.NewRecordIncomeHandler(deps),
		RecordTeacherPayment: command.NewRecordTeacherPaymentHandler(deps),
		SyncPartner:          command.NewSyncPartnerHandler(deps),
		UpdateSettings:       command.NewUpdateSettingsHandler(deps),
		Expenses:             query.NewExpensesHandler(st.expenses),
		PartnerBalances:      query.NewListPartnerBalancesHandler(st.partners, st.expenses, st.settlements),
		FinanceOverview:      query.NewGetFinanceOverviewHandler(payrollQuery, st.roster, st.expenses, st.partners, st.ledger),
		TeacherPayroll:       payrollQuery,
		ListTransactions:     query.NewListTransactionsHandler(st.ledger),
		GetSettings:          query.NewGetSettingsHandler(settingsSvc),
		HealthChecker:        health,
		Logger:               log,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. ЗАПУСК
	// ─────────────────────────────────────────────────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server", logger.String("address", httpConfig.Address()))
		if err := httpServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// ─────────────────────────────────────────────────────────────────────────
	// 8. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("service error", logger.Err(err))
		return err
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown...", logger.Duration("timeout", cfg.App.ShutdownTimeout))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to stop HTTP server gracefully", logger.Err(err))
		return err
	}

	// Шина событий, Redis и база закрываются через defer
	log.Info("shutdown completed successfully")
	return nil
}

// closableBus - шина событий, которую нужно закрыть при остановке.
type closableBus interface {
	shared.EventBus
	Close() error
}

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// store собирает репозитории одного бэкенда.
type store struct {
	uow         command.UnitOfWork
	partners    partner.Repository
	expenses    expense.Repository
	settlements settlement.Repository
	ledger      ledger.Repository
	teachers    payroll.TeacherRepository
	payments    payroll.PaymentRepository
	settings    settings.Repository
	roster      enrollment.Reader

	pinger handlers.Pinger
	close  func()
}

// openStore подключает PostgreSQL, если он настроен, иначе хранилище в памяти.
func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (*store, error) {
	if !cfg.UsesPostgres() {
		log.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		db := memory.New()
		return &store{
			uow:         memory.NewUnitOfWork(db),
			partners:    memory.NewPartnerRepository(db),
			expenses:    memory.NewExpenseRepository(db),
			settlements: memory.NewSettlementRepository(db),
			ledger:      memory.NewLedgerRepository(db),
			teachers:    memory.NewTeacherRepository(db),
			payments:    memory.NewPaymentRepository(db),
			settings:    memory.NewSettingsRepository(db),
			roster:      memory.NewEnrollmentReader(db),
			close:       func() {},
		}, nil
	}

	log.Info("connecting to database...")
	conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL, postgres.WithPoolLimits(
		int32(cfg.Database.MaxConns),
		int32(cfg.Database.MinConns),
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")

	if cfg.Database.MigrateOnStart {
		log.Info("running database migrations...")
		migrator := postgres.NewMigrator(conn)
		if err := migrator.Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		status, err := migrator.Status(ctx)
		if err != nil {
			log.Warn("failed to get migration status", logger.Err(err))
		} else {
			applied := 0
			for _, m := range status {
				if m.Applied {
					applied++
				}
			}
			log.Info("migrations completed", logger.Int("applied", applied), logger.Int("total", len(status)))
		}
	}

	return &store{
		uow:         postgres.NewUnitOfWork(conn),
		partners:    postgres.NewPartnerRepository(conn),
		expenses:    postgres.NewExpenseRepository(conn),
		settlements: postgres.NewSettlementRepository(conn),
		ledger:      postgres.NewLedgerRepository(conn),
		teachers:    postgres.NewTeacherRepository(conn),
		payments:    postgres.NewPaymentRepository(conn),
		settings:    postgres.NewSettingsRepository(conn),
		roster:      postgres.NewEnrollmentReader(conn),
		pinger:      conn,
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

// salaryDefaults выводит долю академии из доли преподавателя.
func salaryDefaults(teacherShare decimal.Decimal) settings.SalaryConfig {
	return settings.SalaryConfig{
		TeacherSharePct: teacherShare,
		AcademySharePct: shared.Hundred.Sub(teacherShare),
	}
}
