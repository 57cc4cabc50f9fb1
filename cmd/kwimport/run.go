package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/kwimport/internal/core"
	"github.com/JonMunkholm/kwimport/internal/store"
)

type runOptions struct {
	dbPath      string
	optionsFile string
	createList  string

	projectID string
	listID    string
	tool      string
	strategy  string
	region    string
	mapping   map[string]string

	allowRegionMismatch bool
	autoResolve         bool
	preserveExisting    bool
}

// pollInterval is how often run checks the job it started.
var pollInterval = 100 * time.Millisecond

func newRunCmd(root *rootOptions) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Import a keyword export and print the import report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			importOpts, err := loadOptions(opts.optionsFile)
			if err != nil {
				return err
			}
			applyFlags(cmd, &opts, &importOpts)

			log := newLogger(root, cmd.ErrOrStderr())
			return runImport(cmd.Context(), log, cmd.OutOrStdout(), args[0], opts, importOpts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.dbPath, "db", "kwimport.db", "SQLite database path")
	f.StringVar(&opts.optionsFile, "options", "", "YAML file with import options")
	f.StringVar(&opts.createList, "create-list", "", "Create a keyword list with this name and import into it")
	f.StringVar(&opts.projectID, "project", "", "Project id")
	f.StringVar(&opts.listID, "list", "", "Keyword list id")
	f.StringVar(&opts.tool, "tool", "", "Skip detection and treat the file as this tool's export")
	f.StringVar(&opts.strategy, "strategy", "", "Conflict strategy: keep_existing, use_imported, prefer_newer, manual")
	f.StringVar(&opts.region, "region", "", "Project region; rows from other regions are rejected")
	f.StringToStringVar(&opts.mapping, "map", nil, "Manual column mapping, e.g. --map Term=keyword")
	f.BoolVar(&opts.allowRegionMismatch, "allow-region-mismatch", false, "Import rows whose region differs from --region")
	f.BoolVar(&opts.autoResolve, "auto-resolve", false, "Resolve conflicts with the strategy")
	f.BoolVar(&opts.preserveExisting, "preserve-existing", false, "Never overwrite existing extra data")
	return cmd
}

// applyFlags lets explicitly set flags override the options file.
func applyFlags(cmd *cobra.Command, opts *runOptions, dst *core.ImportOptions) {
	changed := cmd.Flags().Changed
	if changed("project") {
		dst.ProjectID = opts.projectID
	}
	if changed("list") {
		dst.ListID = opts.listID
	}
	if changed("tool") {
		dst.Tool = core.ToolSource(opts.tool)
	}
	if changed("strategy") {
		dst.Strategy = core.ConflictStrategy(opts.strategy)
	}
	if changed("region") {
		dst.ProjectRegion = opts.region
	}
	if changed("map") {
		dst.ColumnMapping = opts.mapping
	}
	if changed("allow-region-mismatch") {
		dst.AllowRegionMismatch = opts.allowRegionMismatch
	}
	if changed("auto-resolve") {
		dst.AutoResolveConflicts = opts.autoResolve
	}
	if changed("preserve-existing") {
		dst.PreserveExistingData = opts.preserveExisting
	}
}

func runImport(ctx context.Context, log *slog.Logger, out io.Writer, path string, opts runOptions, importOpts core.ImportOptions) error {
	in, err := readInput(path)
	if err != nil {
		return err
	}

	db, err := store.OpenSQLite(ctx, opts.dbPath)
	if err != nil {
		return withCode(exitFailure, err)
	}
	defer db.Close()

	if opts.createList != "" {
		if importOpts.ProjectID == "" {
			return withCode(exitUsage, errors.New("--create-list needs a project id"))
		}
		id, err := db.CreateList(ctx, importOpts.ProjectID, opts.createList)
		if err != nil {
			return withCode(exitFailure, err)
		}
		importOpts.ListID = id
		log.Info("keyword list created", "list_id", id, "name", opts.createList)
	}

	svc := newService(db)
	origin := core.WithImportOrigin(ctx, core.ImportOrigin{UserAgent: "kwimport-cli"})
	jobID, err := svc.StartImport(origin, core.ImportRequest{
		FileName: in.name,
		MimeType: in.mime,
		Data:     in.data,
		Options:  importOpts,
	})
	if err != nil {
		if errors.Is(err, core.ErrInvalidOptions) {
			return withCode(exitUsage, err)
		}
		return withCode(exitFailure, err)
	}
	log.Info("import started", "job_id", jobID, "file", in.name)

	job, err := waitForJob(ctx, svc, jobID)
	if err != nil {
		return withCode(exitFailure, err)
	}
	if job.Status == core.JobFailed {
		log.Error("import failed", "job_id", jobID, "error", job.Error)
		return withCode(exitFailure, fmt.Errorf("import failed: %s", job.ErrorMessage))
	}

	log.Info("import completed",
		"matched", job.Result.Summary.TotalMatched,
		"new", job.Result.Summary.TotalNew,
		"conflicts", job.Result.Summary.TotalConflicts,
	)
	return printJSON(out, job.Result)
}

// waitForJob polls until the job finishes. Interrupting the command
// cancels the import and waits for it to stop.
func waitForJob(ctx context.Context, svc *core.Service, jobID string) (core.ImportJob, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	done := ctx.Done()
	for {
		job, err := svc.GetJob(jobID)
		if err != nil {
			return core.ImportJob{}, err
		}
		if job.Status.Terminal() {
			return job, nil
		}

		select {
		case <-done:
			_ = svc.CancelImport(jobID)
			done = nil
		case <-ticker.C:
		}
	}
}
