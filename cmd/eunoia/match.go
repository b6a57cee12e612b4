package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/Try3D/Eunoia/ai"
	"github.com/Try3D/Eunoia/ai/core/embedding"
	"github.com/Try3D/Eunoia/ai/core/retrieval"
	"github.com/Try3D/Eunoia/internal/profile"
	"github.com/Try3D/Eunoia/store"
)

var matchCmd = &cobra.Command{
	Use:   "match MATERIAL...",
	Short: "Print the corpus projects most similar to a list of materials",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		instanceProfile, err := loadProfile()
		if err != nil {
			return err
		}

		var storeInstance *store.Store
		if instanceProfile.CorpusSource != profile.CorpusSourceFile {
			storeInstance, err = openStore(ctx, instanceProfile)
			if err != nil {
				return err
			}
			defer storeInstance.Close()
		}

		aiConfig := ai.NewConfigFromProfile(instanceProfile)
		provider, err := embedding.NewProvider(&aiConfig.Embedding)
		if err != nil {
			return errors.Wrap(err, "failed to create embedding provider")
		}
		retriever, err := retrieval.NewRetriever(ctx, instanceProfile, storeInstance, provider, nil)
		if err != nil {
			return err
		}

		suggestions, err := retriever.Suggest(ctx, args, retriever.DefaultTopN())
		if err != nil {
			return err
		}
		printSuggestions(os.Stdout, suggestions)
		return nil
	},
}

func printSuggestions(w io.Writer, suggestions []retrieval.Suggestion) {
	if len(suggestions) == 0 {
		fmt.Fprintln(w, "No similar projects found.")
		return
	}
	for i, s := range suggestions {
		fmt.Fprintf(w, "%d. %s (similarity %.3f)\n", i+1, s.Title, s.Similarity)
		fmt.Fprintf(w, "   Difficulty: %s, time: %s\n", s.Difficulty, s.TimeRequired)
		if len(s.Materials) > 0 {
			fmt.Fprintf(w, "   Materials: %s\n", strings.Join(s.Materials, retrieval.MaterialsSeparator))
		}
	}
}
