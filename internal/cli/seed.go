package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"quizmusic-service/internal/config"
	"quizmusic-service/internal/fixtures"
	"quizmusic-service/internal/infra/postgres"
	"quizmusic-service/internal/logger"
)

// NewSeedCmd loads a theme fixture into Postgres.
func NewSeedCmd(configPath *string) *cobra.Command {
	var fixturePath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert themes and questions from a YAML fixture",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Env)
			if err != nil {
				return err
			}
			defer log.Sync()

			catalog, err := loadFixture(fixturePath)
			if err != nil {
				return err
			}

			db, err := openBun(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewSeeder(db).Seed(cmd.Context(), catalog)
			if err != nil {
				return err
			}
			log.Info("catalog seeded", zap.Int("themes", len(catalog.Themes)), zap.Int("questions", n))
			return nil
		},
	}
	cmd.Flags().StringVar(&fixturePath, "fixture", "", "YAML fixture path (bundled catalog when empty)")
	return cmd
}

func loadFixture(path string) (fixtures.Catalog, error) {
	if path == "" {
		return fixtures.Bundled()
	}
	return fixtures.Load(path)
}
