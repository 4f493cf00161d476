package embedkit

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soundprediction/embedkit/pkg/utils"
)

var similarityCmd = &cobra.Command{
	Use:   "similarity <text> <text>",
	Short: "Print the cosine similarity of two texts",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		rt, err := newRuntime(cfg)
		if err != nil {
			return fmt.Errorf("failed to initialize embedding client: %w", err)
		}
		defer rt.Close()

		ctx, stop := signalContext(cmd.Context())
		defer stop()

		vectors, err := rt.client.EmbedMany(ctx, args)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%.6f\n", utils.CosineSimilarity(vectors[0], vectors[1]))
		return err
	},
}

func init() {
	rootCmd.AddCommand(similarityCmd)
}
