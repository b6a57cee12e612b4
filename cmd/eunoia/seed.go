package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Try3D/Eunoia/ai/core/retrieval"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the schema and load demo users, achievements and the project corpus",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}
		storeInstance, err := openStore(ctx, instanceProfile)
		if err != nil {
			return err
		}
		defer storeInstance.Close()

		source := &retrieval.FileSource{Path: instanceProfile.CorpusPath}
		records, err := source.Load(ctx)
		if err != nil {
			if !errors.Is(err, retrieval.ErrCorpusUnavailable) {
				return err
			}
			slog.Warn("corpus not loaded, seeding without project records", "path", instanceProfile.CorpusPath, "error", err)
		}

		result, err := storeInstance.Seed(ctx, records)
		if err != nil {
			return err
		}
		if result.Skipped {
			fmt.Println("Database already seeded, nothing to do.")
			return nil
		}
		fmt.Printf("Seeded %d achievements, %d users, %d user achievements and %d project records into %s.\n",
			result.Achievements, result.Users, result.UserAchievements, result.ProjectRecords, instanceProfile.Driver)
		return nil
	},
}
