package commands

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"call-screener/internal/models"
	"call-screener/internal/phone"
	"call-screener/internal/reputation"
	"call-screener/internal/services"
)

var seedDryRun bool

// NewSeedCmd creates the seed command group
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Manage the curated seed snapshot",
	}
	cmd.AddCommand(newSeedImportCmd())
	return cmd
}

func newSeedImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Replace the seed snapshot from a CSV file",
		Long: `Replace the whole seed snapshot with the rows of a CSV file.

Each row is: number_or_hash,confidence_score,category
A first column that is not already a hash is normalized and hashed with
the installation salt. A header row is skipped. The snapshot is replaced
only when every row is valid.

Examples:
  screenctl seed import spam.csv
  screenctl seed import --dry-run spam.csv`,
		Args: cobra.ExactArgs(1),
		RunE: runSeedImport,
	}

	cmd.Flags().BoolVar(&seedDryRun, "dry-run", false, "Validate the file without storing it")

	return cmd
}

func runSeedImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger()
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening seed file: %w", err)
	}
	defer f.Close()

	entries, err := parseSeedCSV(f, phone.NewHasher(&cfg.Phone))
	if err != nil {
		return err
	}
	if err := reputation.ValidateSeedEntries(entries); err != nil {
		return err
	}

	if seedDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "%d entries valid\n", len(entries))
		return nil
	}

	backends, err := services.NewBackends(cfg, nil, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := backends.Close(); err != nil {
			logger.Warn("failed to close backends", zap.Error(err))
		}
	}()

	snapshot := reputation.NewSeedSnapshot(backends.Seed, nil, logger)
	if err := snapshot.Replace(cmd.Context(), entries); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d entries\n", len(entries))
	return nil
}

// seedHasher hashes raw numbers found in a seed file
type seedHasher interface {
	Hash(raw string) (string, bool)
}

func parseSeedCSV(r io.Reader, hasher seedHasher) ([]models.SeedEntry, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.Comment = '#'

	var entries []models.SeedEntry
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading seed file: %w", err)
		}
		if len(record) < 2 || len(record) > 3 {
			return nil, fmt.Errorf("line %d: expected 2 or 3 columns, got %d", line, len(record))
		}

		score, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid confidence score %q", line, record[1])
		}

		key := strings.TrimSpace(record[0])
		hash := strings.ToLower(key)
		if !phone.ValidHash(hash) {
			var ok bool
			if hash, ok = hasher.Hash(key); !ok {
				return nil, fmt.Errorf("line %d: %q is neither a number nor a hash", line, key)
			}
		}

		entry := models.SeedEntry{NumberHash: hash, ConfidenceScore: score}
		if len(record) == 3 {
			entry.Category = strings.TrimSpace(record[2])
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
