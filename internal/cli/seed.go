package cli

import (
	"errors"
	"fmt"
	"os"

	"teamflow/backend/internal/seed"

	"github.com/spf13/cobra"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo users, teams, projects and tasks",
	Long: `Seed creates a demo workspace through the service layer, so the data
passes the same validation and produces the same activity as API calls.

Without --file the built-in demo fixtures are used. Seeding a database
that already holds the fixture users is a no-op.`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML fixtures to load instead of the built-in demo")
}

func runSeed(cmd *cobra.Command, args []string) error {
	fixtures, err := loadFixtures()
	if err != nil {
		return err
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := seed.NewSeeder(a.seedServices(), log).Apply(cmd.Context(), fixtures)
	if errors.Is(err, seed.ErrAlreadySeeded) {
		log.Info("database already seeded, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d teams, %d projects, %d tasks, %d links, %d goals\n",
		res.Users, res.Teams, res.Projects, res.Tasks, res.Links, res.Goals)
	return nil
}

func loadFixtures() (*seed.Fixtures, error) {
	if seedFile == "" {
		return seed.Demo()
	}
	f, err := os.Open(seedFile)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer f.Close()
	return seed.Load(f)
}
