package main

import (
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davicafu/scoreregistry/internal/config"
	"github.com/davicafu/scoreregistry/internal/score/application"
	"github.com/davicafu/scoreregistry/internal/score/infra/outbound/filesystem"
	sharedCache "github.com/davicafu/scoreregistry/internal/shared/infra/platform/cache"
	"github.com/davicafu/scoreregistry/pkg/logger"
)

func newSeedCmd() *cobra.Command {
	var (
		file string
		writeSample bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load communities and scores from a JSON fixture file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if err := logger.Init(cfg.LogLevel); err != nil {
				return err
			}
			defer logger.Sync()
			log := logger.Logger()
			ctx := cmd.Context()

			if file == "" {
				file = cfg.SeedFile
			}
			storage := filesystem.NewJSONFixtureStorage(file)
			if writeSample {
				log.Info("📝 Escribiendo fixture de ejemplo", zap.String("file", file))
				return storage.Save(ctx, filesystem.SampleFixture(time.Now()))
			}

			fixture, err := storage.Load(ctx)
			if err != nil {
				return err
			}

			st, err := openStores(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.close()

			for _, c := range fixture.Communities {
				if err := st.communities.Save(ctx, c); err != nil {
					return err
				}
			}

			cache := sharedCache.NewInMemoryCache(cfg.CacheTTL, 0)
			defer cache.Stop()
			svc := application.NewScoreService(st.scores, st.events, st.communities, cache, nil, nil, log)

			for _, u := range fixture.Updates() {
				if _, err := svc.RecordScore(ctx, u); err != nil {
					return err
				}
			}

			log.Info("✅ Seed completado",
				zap.String("file", file),
				zap.Int("communities", len(fixture.Communities)),
				zap.Int("scores", len(fixture.Scores)),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "fixture file (default SEED_FILE)")
	cmd.Flags().BoolVar(&writeSample, "init", false, "write a sample fixture file instead of loading it")
	return cmd
}
