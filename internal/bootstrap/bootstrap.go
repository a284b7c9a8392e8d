package bootstrap

import (
	"context"
	"fmt"

	"github.com/gestiloc/document-pipeline/internal/config"
	"github.com/gestiloc/document-pipeline/internal/core/catalog"
	"github.com/gestiloc/document-pipeline/internal/core/classify"
	"github.com/gestiloc/document-pipeline/internal/core/dedup"
	"github.com/gestiloc/document-pipeline/internal/core/linking"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
	"github.com/gestiloc/document-pipeline/internal/core/usecase"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/catalogseed"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/extractor"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/extractor/pdffile"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/extractor/plaintext"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/extractor/spreadsheet"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/queue/nats"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/repository/postgres"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/resilience"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/storage/localfs"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/storage/resilient"
)

type App struct {
	Config config.Config

	Queue       ports.MessageQueue
	Coordinator *usecase.IngestionCoordinator
	Stager      ports.DocumentStager
	Lifecycle   ports.DocumentLifecycle
	Reader      ports.DocumentReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewDocumentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	linkRepo := postgres.NewLinkRepository(db)
	authorizer := postgres.NewEntityAuthorizer(db)

	typeSource := postgres.NewTypeDefinitionSource(db)
	defaults, err := catalogseed.Defaults()
	if err != nil {
		return nil, fmt.Errorf("load catalog defaults: %w", err)
	}
	if err := typeSource.Seed(ctx, defaults); err != nil {
		return nil, fmt.Errorf("seed catalog: %w", err)
	}
	catalogProvider := catalog.NewProvider(typeSource)

	files, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executorCfg := resilience.DefaultConfig()
	if cfg.RetryMaxAttempts > 0 {
		executorCfg.RetryMaxAttempts = cfg.RetryMaxAttempts
	}
	executor := resilience.NewExecutor(executorCfg)
	storage := resilient.Wrap(files, executor)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSStagedSubject, cfg.NATSFinalizedSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	textRouter := extractor.NewRouter(plaintext.NewExtractor(storage))
	textRouter.Register(pdffile.NewExtractor(storage), "application/pdf")
	textRouter.Register(spreadsheet.NewExtractor(storage),
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel",
	)

	engine := classify.NewEngine(classify.Config{
		CalibrationConstant: cfg.ClassifyCalibrationConstant,
		ContextBonus:        cfg.ClassifyContextBonus,
	})
	analyzer := dedup.NewAnalyzer(dedup.Config{
		TextWeight:         cfg.DedupTextWeight,
		TypeWeight:         cfg.DedupTypeWeight,
		PeriodWeight:       cfg.DedupPeriodWeight,
		SimilarThreshold:   cfg.DedupSimilarThreshold,
		NearDuplicateScore: cfg.DedupNearDuplicateScore,
	})
	resolver := linking.NewResolver(authorizer, linkRepo)

	coordinator := usecase.NewIngestionCoordinator(
		repo, linkRepo, storage, textRouter, catalogProvider, engine, analyzer, resolver, queue,
	)

	return &App{
		Config:      cfg,
		Queue:       queue,
		Coordinator: coordinator,
		Stager:      usecase.NewStageDocumentUseCase(repo, storage, queue),
		Lifecycle:   usecase.NewLifecycleManager(repo, linkRepo),
		Reader:      usecase.NewDocumentReadModel(repo, linkRepo),

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
