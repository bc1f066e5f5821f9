package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/planmerge/internal/consolidate"
	"github.com/felixgeelhaar/planmerge/internal/errors"
	"github.com/felixgeelhaar/planmerge/internal/phase"
	"github.com/felixgeelhaar/planmerge/internal/report"
	"github.com/felixgeelhaar/planmerge/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <batch-file>",
	Short: "Consolidate a recommendation batch into the store",
	Long: `Ingest reads a YAML batch of raw recommendations, classifies each one
into phases, and merges or inserts it into the canonical store. Re-running
the same batch is a no-op.

The batch file looks like:

  batch_id: book1
  recommendations:
    - title: Add model versioning
      description: Track every trained model with a version and lineage.
      priority: important`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var (
	ingestBatchID string
	ingestCost    float64
	ingestSource  string
	ingestApprove bool
)

func init() {
	ingestCmd.Flags().StringVar(&ingestBatchID, "batch-id", "", "override the batch ID from the file")
	ingestCmd.Flags().Float64Var(&ingestCost, "cost", 0, "analysis cost in USD to record against the batch's phases")
	ingestCmd.Flags().StringVar(&ingestSource, "source", "analysis", "cost source label for the ledger")
	ingestCmd.Flags().BoolVar(&ingestApprove, "approve", false, "approve spend above the budget approval threshold")

	rootCmd.AddCommand(ingestCmd)
}

// batchFile is the on-disk batch format.
type batchFile struct {
	BatchID         string `yaml:"batch_id"`
	Recommendations []struct {
		Title       string            `yaml:"title"`
		Description string            `yaml:"description"`
		Priority    string            `yaml:"priority"`
		Metadata    map[string]string `yaml:"metadata"`
	} `yaml:"recommendations"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	format, err := parseOutput()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	batch, batchID, err := readBatch(args[0])
	if err != nil {
		return err
	}
	if ingestBatchID != "" {
		batchID = ingestBatchID
		for i := range batch {
			batch[i].BatchID = batchID
		}
	}
	if batchID == "" {
		return errors.New(errors.ErrCodeMergeBatchInvalid, "batch file has no batch_id").
			WithSuggestion("Set batch_id in the file or pass --batch-id")
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	table, err := openTable(cfg)
	if err != nil {
		return err
	}

	// The budget gate runs before the cost-incurring work it protects.
	guard, err := openGuard(cfg)
	if err != nil {
		return err
	}
	if ingestCost > 0 {
		if err := guard.Authorize(phaseForCost(table, batch), ingestCost, ingestApprove); err != nil {
			return err
		}
	}

	engine := consolidate.New(s, table, consolidate.Options{MergeThreshold: cfg.MergeThreshold}, nil)
	rep, err := engine.Ingest(batch)
	if err != nil {
		return err
	}
	if err := s.Save(cfg.Paths.StorePath); err != nil {
		return err
	}

	if ingestCost > 0 {
		if _, err := guard.RecordCost(phaseForCost(table, batch), ingestCost, ingestSource); err != nil {
			return err
		}
	}

	out, err := report.Ingest(batchID, &rep, format)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

func readBatch(path string) ([]store.Recommendation, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", errors.NewFileNotFoundError(path)
		}
		return nil, "", fmt.Errorf("read batch file: %w", err)
	}

	var file batchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, "", errors.NewFileUnmarshalError(path, "YAML", err)
	}

	batch := make([]store.Recommendation, 0, len(file.Recommendations))
	for i, raw := range file.Recommendations {
		priority, err := store.ParsePriority(raw.Priority)
		if err != nil {
			return nil, "", errors.New(errors.ErrCodeMergeBatchInvalid,
				fmt.Sprintf("recommendation %d in %s: %v", i, path, err))
		}
		batch = append(batch, store.Recommendation{
			Title:       raw.Title,
			Description: raw.Description,
			Priority:    priority,
			BatchID:     file.BatchID,
			Metadata:    raw.Metadata,
		})
	}
	return batch, file.BatchID, nil
}

// phaseForCost attributes batch-level analysis cost to the phase the batch
// matches most strongly, or the unphased bucket when nothing classifies.
func phaseForCost(table *phase.Table, batch []store.Recommendation) int {
	bestPhase := store.UnphasedBucket
	bestScore := 0.0
	for _, rec := range batch {
		text := rec.Text()
		for _, id := range table.Classify(text) {
			if score := table.MatchScore(id, text); score > bestScore {
				bestPhase, bestScore = id, score
			}
		}
	}
	return bestPhase
}
