package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/contaflux/asientos/internal/intake"
	"github.com/contaflux/asientos/internal/processor"
	"github.com/contaflux/asientos/internal/rules"
	"github.com/contaflux/asientos/internal/sheet"
)

var (
	pollDrive     bool
	driveFolderID string
	statePath     string
	pollInterval  time.Duration
	watchDebounce time.Duration
	csvOut        string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Watch an inbox for new invoice documents",
	Long: `Watch a local inbox directory, or poll a Google Drive folder, and run
every new document through the pipeline.

Generated entries go to the configured sinks: the output spreadsheet
when --sheet-id is set, a local CSV when --csv-out is set. Processed
documents are recorded in a JSON state file so restarts do not
reprocess them; processing failures are retried on the next pass.

The rule table is kept fresh while running: a CSV rule file is
reloaded on edit, a spreadsheet rule source is re-checked on the poll
interval.

Examples:
  # Watch a local inbox and append entries to a sheet
  asientos watch ./inbox --rules reglas.csv --sheet-id <spreadsheet-id>

  # Mirror entries to a local CSV instead
  asientos watch ./inbox --rules reglas.csv --csv-out asientos.csv

  # Poll a Drive folder every five minutes
  asientos watch --poll-drive --folder-id <folder-id> --sheet-id <id>`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVar(&pollDrive, "poll-drive", false, "Poll a Google Drive folder instead of a local directory")
	watchCmd.Flags().StringVar(&driveFolderID, "folder-id", "", "Drive folder ID to poll (requires --poll-drive)")
	watchCmd.Flags().StringVar(&statePath, "state", "", "JSON state file recording processed documents")
	watchCmd.Flags().DurationVar(&pollInterval, "interval", 0, "Drive poll interval (env: POLL_INTERVAL_SECONDS, default 300s)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", intake.DefaultDebounce, "Settle delay before processing a changed file")
	watchCmd.Flags().StringVar(&csvOut, "csv-out", "", "Append generated rows to a local CSV file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	if pollDrive && driveFolderID == "" {
		return fmt.Errorf("--poll-drive requires --folder-id")
	}
	if !pollDrive && len(args) != 1 {
		return fmt.Errorf("watch needs a directory argument (or --poll-drive with --folder-id)")
	}

	log := newLogger()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newRuleStore(ctx, log)
	if err != nil {
		return err
	}
	pipeline := processor.NewPipeline(pipelineOptions(store, log)...)

	sinks, err := buildSinks(ctx, log)
	if err != nil {
		return err
	}
	if len(sinks) == 0 {
		log.Warn().Msg("no sinks configured, generated entries are only logged")
	}

	state, err := intake.LoadState(resolveStatePath(args))
	if err != nil {
		return err
	}

	if rulesPath != "" {
		go func() {
			if err := store.Watch(ctx); err != nil {
				log.Warn().Err(err).Msg("rule file watch unavailable")
			}
		}()
	} else {
		go refreshRules(ctx, store, log)
	}

	if pollDrive {
		driveSvc, err := sheet.NewDriveService(ctx, credentialsFile)
		if err != nil {
			return fmt.Errorf("creating drive client: %w", err)
		}
		poller := intake.NewDrivePoller(driveSvc, driveFolderID, pipeline,
			intake.WithPollerSinks(sinks...),
			intake.WithPollerState(state),
			intake.WithPollInterval(resolvePollInterval()),
			intake.WithPollerLogger(log),
		)
		return ignoreCanceled(poller.Run(ctx))
	}

	watcher := intake.NewWatcher(args[0], pipeline,
		intake.WithSinks(sinks...),
		intake.WithState(state),
		intake.WithDebounce(watchDebounce),
		intake.WithWatcherLogger(log),
	)
	return ignoreCanceled(watcher.Run(ctx))
}

func buildSinks(ctx context.Context, log zerolog.Logger) ([]sheet.Sink, error) {
	var sinks []sheet.Sink
	if sheetID != "" {
		svc, err := sheet.NewSheetsService(ctx, credentialsFile)
		if err != nil {
			return nil, fmt.Errorf("creating sheets client: %w", err)
		}
		sinks = append(sinks, sheet.NewSheetsSink(svc, sheetID, sheet.WithSinkLogger(log)))
	}
	if csvOut != "" {
		sinks = append(sinks, sheet.NewCSVSink(csvOut, log))
	}
	return sinks, nil
}

// resolveStatePath defaults the state file to a dotfile inside the
// watched directory; the watcher only picks up invoice extensions, so
// the state never feeds back into the inbox.
func resolveStatePath(args []string) string {
	if statePath != "" {
		return statePath
	}
	if pollDrive {
		return "asientos-drive-state.json"
	}
	return filepath.Join(args[0], ".asientos-state.json")
}

func resolvePollInterval() time.Duration {
	if pollInterval > 0 {
		return pollInterval
	}
	if raw := os.Getenv("POLL_INTERVAL_SECONDS"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return intake.DefaultPollInterval
}

// refreshRules re-checks a non file backed rule source on the poll
// interval. Refresh itself skips the reload when the source version is
// unchanged.
func refreshRules(ctx context.Context, store *rules.Store, log zerolog.Logger) {
	ticker := time.NewTicker(resolvePollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Refresh(ctx, false); err != nil {
				log.Warn().Err(err).Msg("rule refresh failed")
			}
		}
	}
}

// ignoreCanceled maps the context cancellation of a clean shutdown to a
// zero exit.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
