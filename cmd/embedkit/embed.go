package embedkit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/parquet-go/parquet-go"
	"github.com/spf13/cobra"

	"github.com/soundprediction/embedkit/pkg/types"
)

// Output formats of the embed command.
const (
	formatJSON    = "json"
	formatJSONL   = "jsonl"
	formatParquet = "parquet"
)

var embedCmd = &cobra.Command{
	Use:   "embed [text...]",
	Short: "Embed texts and print their vectors",
	Long: `Embed the given texts, the lines of --file, or the lines of standard input.

Vectors are written in input order as a JSON array, JSON lines, or a Parquet
file (--format parquet requires --out).`,
	RunE: runEmbed,
}

var (
	embedFile   string
	embedOut    string
	embedFormat string
	embedDirect bool
)

func init() {
	rootCmd.AddCommand(embedCmd)

	embedCmd.Flags().StringVarP(&embedFile, "file", "f", "", "read texts from file, one per line")
	embedCmd.Flags().StringVarP(&embedOut, "out", "o", "", "write output to file instead of stdout")
	embedCmd.Flags().StringVar(&embedFormat, "format", formatJSON, "output format (json, jsonl, parquet)")
	embedCmd.Flags().BoolVar(&embedDirect, "direct", false, "send all texts in one request without batching or retries")
}

// EmbeddingRow is one embedded text as written to JSON lines and Parquet.
type EmbeddingRow struct {
	Index     int       `json:"index" parquet:"index"`
	Text      string    `json:"text" parquet:"text"`
	Embedding []float32 `json:"embedding" parquet:"embedding,list"`
}

func runEmbed(cmd *cobra.Command, args []string) error {
	switch embedFormat {
	case formatJSON, formatJSONL:
	case formatParquet:
		if embedOut == "" {
			return errors.New("--format parquet requires --out")
		}
	default:
		return fmt.Errorf("unknown output format %q", embedFormat)
	}

	texts, err := readInputs(args, embedFile, cmd.InOrStdin())
	if err != nil {
		return err
	}
	if len(texts) == 0 {
		return errors.New("no input texts")
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	rt, err := newRuntime(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding client: %w", err)
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.logger.Warn("Failed to close embedding client", "error", err)
		}
	}()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var vectors [][]float32
	if embedDirect {
		vectors, err = rt.client.EmbedManyDirect(ctx, texts)
	} else {
		vectors, err = rt.client.EmbedMany(ctx, texts)
	}
	if err != nil {
		return err
	}
	rt.logger.Info("Embedded texts", "count", len(vectors), "model", rt.client.Model(), "dimensions", rt.client.Dimensions())

	rows := toRows(texts, vectors)
	if embedFormat == formatParquet {
		return parquet.WriteFile(embedOut, rows)
	}

	w := cmd.OutOrStdout()
	if embedOut != "" {
		f, err := os.Create(embedOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}
	return writeRows(w, embedFormat, rows)
}

// readInputs collects texts from args, or else from file, or else from
// stdin. Blank lines are skipped.
func readInputs(args []string, file string, stdin io.Reader) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}

	r := stdin
	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var texts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		texts = append(texts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return texts, nil
}

func toRows(texts []string, vectors [][]float32) []EmbeddingRow {
	rows := make([]EmbeddingRow, len(vectors))
	for i, v := range vectors {
		rows[i] = EmbeddingRow{Index: i, Text: texts[i], Embedding: v}
	}
	return rows
}

// writeRows encodes rows as a JSON array or JSON lines.
func writeRows(w io.Writer, format string, rows []EmbeddingRow) error {
	switch format {
	case formatJSON:
		vectors := make([][]float32, len(rows))
		for i, r := range rows {
			vectors[i] = r.Embedding
		}
		enc := json.NewEncoder(w)
		return enc.Encode(vectors)
	case formatJSONL:
		enc := json.NewEncoder(w)
		for _, r := range rows {
			if err := enc.Encode(r); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// signalContext tags calls as coming from the CLI and is cancelled on
// SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	parent = context.WithValue(parent, types.ContextKeyRequestSource, "cli")
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
