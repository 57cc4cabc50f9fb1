package core

// service.go drives the import pipeline.
//
// StartImport validates options, takes an import slot and returns a job id
// at once; the pipeline then runs in its own goroutine:
//
//	parse (5-35) -> detect (40) -> map (55) -> load existing (65)
//	-> reconcile (75) -> save (85) -> completed (100)
//
// Stages are strictly sequential. Cancellation and the import timeout are
// checked between stages and between ingestion chunks, never inside a
// merge. Only rejected files, an unparseable file, a store failure or a
// cancellation fail the job; everything else is reported inside a
// completed job's ImportReport.

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultImportTimeout bounds one background import.
const DefaultImportTimeout = 10 * time.Minute

// Progress milestones reported to the job tracker.
const (
	progressParsing   = 5
	progressParsed    = 35
	progressDetecting = 40
	progressMapping   = 55
	progressLoading   = 65
	progressMerging   = 75
	progressSaving    = 85
)

// ServiceConfig holds the pipeline limits. Zero values select defaults.
type ServiceConfig struct {
	MaxFileSize   int64
	ChunkRows     int
	MaxConcurrent int
	MaxWait       time.Duration
	Timeout       time.Duration
}

// Observer receives pipeline events. internal/metrics implements it.
type Observer interface {
	JobFinished(status JobStatus, d time.Duration)
	RowsIngested(n int)
	RowsDropped(n int)
	FormatDetected(tool ToolSource)
	MergeFinished(res MergeResult)
}

type nopObserver struct{}

func (nopObserver) JobFinished(JobStatus, time.Duration) {}
func (nopObserver) RowsIngested(int)                     {}
func (nopObserver) RowsDropped(int)                      {}
func (nopObserver) FormatDetected(ToolSource)            {}
func (nopObserver) MergeFinished(MergeResult)            {}

// Option customises a Service.
type Option func(*Service)

// WithObserver installs a pipeline observer.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithClock replaces the clock used for provenance stamps and audit trails.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
			s.reconciler.Now = now
		}
	}
}

// Service runs keyword imports against a KeywordStore.
type Service struct {
	store      KeywordStore
	catalog    *Catalog
	detector   *Detector
	ingestor   *Ingestor
	reconciler *Reconciler
	jobs       *JobTracker
	limiter    *ImportLimiter
	observer   Observer
	timeout    time.Duration
	now        func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewService wires a pipeline around store and catalog.
func NewService(store KeywordStore, catalog *Catalog, cfg ServiceConfig, opts ...Option) *Service {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultImportTimeout
	}

	s := &Service{
		store:      store,
		catalog:    catalog,
		detector:   NewDetector(catalog),
		ingestor:   NewIngestor(cfg.MaxFileSize, cfg.ChunkRows),
		reconciler: NewReconciler(),
		jobs:       NewJobTracker(),
		limiter:    NewImportLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		observer:   nopObserver{},
		timeout:    cfg.Timeout,
		now:        time.Now,
		cancels:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportRequest is one uploaded file plus its options.
type ImportRequest struct {
	FileName string
	MimeType string
	Data     []byte
	Options  ImportOptions
}

// ImportStage names the pipeline stage an ImportError came from.
type ImportStage string

const (
	StageParse   ImportStage = "parse"
	StageMapping ImportStage = "mapping"
	StageMerge   ImportStage = "merge"
)

// ImportError is a non-fatal problem from any stage, in one shape so a
// report can be rendered without knowing the stage types.
type ImportError struct {
	Stage       ImportStage `json:"stage"`
	Type        string      `json:"type"`
	Row         int         `json:"row,omitempty"`
	Column      string      `json:"column,omitempty"`
	KeywordText string      `json:"keywordText,omitempty"`
	Message     string      `json:"message"`
}

// ImportReport is the result of a completed import.
type ImportReport struct {
	Summary      MergeSummary    `json:"summary"`
	Conflicts    []MergeConflict `json:"conflicts"`
	Errors       []ImportError   `json:"errors"`
	AuditTrail   AuditTrail      `json:"auditTrail"`
	DetectedTool ToolSource      `json:"detectedTool"`
	Confidence   float64         `json:"confidence"`
	RowsDropped  int             `json:"rowsDropped"`
	File         FileMeta        `json:"file"`
}

// Tools returns the registered tool schemas.
func (s *Service) Tools() []ToolSchema {
	return s.catalog.All()
}

// Limiter exposes the import limiter for status reporting.
func (s *Service) Limiter() *ImportLimiter {
	return s.limiter
}

// StartImport validates req and starts the pipeline in the background.
// It returns ErrInvalidOptions, ErrFileTooLarge or ErrInvalidFileType
// without creating a job, and ErrTooManyImports when no slot frees up.
func (s *Service) StartImport(ctx context.Context, req ImportRequest) (string, error) {
	opts := req.Options
	if err := opts.Validate(); err != nil {
		return "", err
	}
	if err := s.ingestor.CheckFile(req.FileName, req.MimeType, int64(len(req.Data))); err != nil {
		return "", err
	}

	if !s.limiter.TryAcquire() {
		if err := s.limiter.Acquire(ctx); err != nil {
			return "", err
		}
	}

	jobID := s.jobs.Start()
	importCtx, cancel := context.WithTimeout(context.Background(), s.timeout)

	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()

	slog.Info("import started",
		"job_id", jobID,
		"file", req.FileName,
		"size", len(req.Data),
		"project_id", opts.ProjectID,
		"list_id", opts.ListID,
		"origin", ImportOriginFrom(ctx),
	)

	go func() {
		defer s.limiter.Release()
		defer s.forgetCancel(jobID)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in import",
					"job_id", jobID,
					"file", req.FileName,
					"panic", r,
				)
				_ = s.jobs.Update(jobID, JobUpdate{Status: JobFailed, Error: "internal error"})
				s.observer.JobFinished(JobFailed, 0)
			}
		}()
		s.runImport(importCtx, jobID, req, opts)
	}()

	return jobID, nil
}

func (s *Service) forgetCancel(jobID string) {
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	delete(s.cancels, jobID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// runImport executes every stage for one job.
func (s *Service) runImport(ctx context.Context, jobID string, req ImportRequest, opts ImportOptions) {
	start := s.now()
	log := slog.With("job_id", jobID, "file", req.FileName)

	fail := func(stage string, err error) {
		if errors.Is(err, context.Canceled) {
			err = fmt.Errorf("import cancelled: %w", err)
		}
		// Catalogued failures are the importer's to fix.
		if IsUserFacing(err) {
			log.Warn("import failed", "stage", stage, "error", err)
		} else {
			log.Error("import failed", "stage", stage, "error", err)
		}
		_ = s.jobs.Update(jobID, JobUpdate{
			Status:       JobFailed,
			Error:        err.Error(),
			ErrorMessage: FormatUserError(err),
		})
		s.observer.JobFinished(JobFailed, s.now().Sub(start))
	}
	progress := func(p int, msg string) {
		_ = s.jobs.Update(jobID, JobUpdate{Progress: p, Message: msg})
	}

	progress(progressParsing, "Parsing file")
	parsed, err := s.ingestor.Parse(ctx, req.Data, req.FileName, req.MimeType, func(f float64) {
		progress(progressParsing+int(f*float64(progressParsed-progressParsing)), "Parsing file")
	})
	if err != nil {
		fail("parse", err)
		return
	}
	if len(parsed.Headers) == 0 && len(parsed.Rows) == 0 {
		fail("parse", errors.New("no headers found in file"))
		return
	}
	s.observer.RowsIngested(len(parsed.Rows))
	log.Info("file parsed",
		"rows", len(parsed.Rows),
		"parse_errors", len(parsed.Errors),
		"encoding", parsed.Meta.Encoding,
	)

	if err := ctx.Err(); err != nil {
		fail("detect", err)
		return
	}
	progress(progressDetecting, "Detecting format")
	mapping, err := s.resolveMapping(parsed.Headers, opts)
	if err != nil {
		fail("detect", err)
		return
	}
	s.observer.FormatDetected(mapping.DetectedTool)
	log.Info("format resolved", "tool", mapping.DetectedTool, "confidence", mapping.Confidence)

	report := &ImportReport{
		DetectedTool: mapping.DetectedTool,
		Confidence:   mapping.Confidence,
		File:         parsed.Meta,
		Errors:       parseImportErrors(parsed.Errors),
	}
	report.Errors = append(report.Errors, mappingImportErrors(mapping.Errors)...)

	tool := mapping.DetectedTool
	if tool == ToolUnknown && opts.Tool != ToolUnknown {
		tool = opts.Tool
	}

	if !mapping.Usable() {
		log.Warn("no usable column mapping", "errors", len(mapping.Errors))
		s.complete(jobID, report, s.reconciler.Merge(nil, nil, tool, opts.MergeOptions), tool, start)
		return
	}

	if err := ctx.Err(); err != nil {
		fail("map", err)
		return
	}
	progress(progressMapping, "Mapping rows")
	mapped, dropped := NewRowMapper(mapping.Validators).MapRows(parsed.Rows, mapping.Mappings, tool)
	report.RowsDropped = dropped
	s.observer.RowsDropped(dropped)

	if err := ctx.Err(); err != nil {
		fail("load", err)
		return
	}
	progress(progressLoading, "Loading existing keywords")
	existing, err := s.store.ListExistingKeywords(ctx, opts.ProjectID)
	if err != nil {
		fail("load", fmt.Errorf("load existing keywords: %w", err))
		return
	}

	if err := ctx.Err(); err != nil {
		fail("merge", err)
		return
	}
	progress(progressMerging, "Reconciling keywords")
	result := s.reconciler.Merge(existing, mapped, tool, opts.MergeOptions)
	log.Info("keywords reconciled",
		"matched", result.Summary.TotalMatched,
		"new", result.Summary.TotalNew,
		"conflicts", result.Summary.TotalConflicts,
		"errors", result.Summary.TotalErrors,
	)

	if err := ctx.Err(); err != nil {
		fail("save", err)
		return
	}
	progress(progressSaving, "Saving keywords")
	if err := s.persist(ctx, opts.ListID, result); err != nil {
		fail("save", err)
		return
	}

	s.complete(jobID, report, result, tool, start)
	log.Info("import completed", "duration_ms", s.now().Sub(start).Milliseconds())
}

func (s *Service) complete(jobID string, report *ImportReport, result MergeResult, tool ToolSource, start time.Time) {
	report.Summary = result.Summary
	report.Conflicts = result.Conflicts
	report.Errors = append(report.Errors, mergeImportErrors(result.Errors)...)
	report.AuditTrail = GenerateAuditTrail(result, tool, s.now())

	s.observer.MergeFinished(result)
	_ = s.jobs.Update(jobID, JobUpdate{Status: JobCompleted, Message: "Import completed", Result: report})
	s.observer.JobFinished(JobCompleted, s.now().Sub(start))
}

// persist applies a merge result: matched updates first, then one bulk
// insert for new keywords.
func (s *Service) persist(ctx context.Context, listID string, result MergeResult) error {
	if len(result.Matched) > 0 {
		if bu, ok := s.store.(BatchUpdater); ok {
			if err := bu.UpdateKeywords(ctx, result.Matched); err != nil {
				return fmt.Errorf("update keywords: %w", err)
			}
		} else {
			for _, m := range result.Matched {
				if err := s.store.UpdateKeyword(ctx, m.ID, UpdateFromMerged(m)); err != nil {
					return fmt.Errorf("update keyword %s: %w", m.ID, err)
				}
			}
		}
	}
	if len(result.NewKeywords) > 0 {
		if err := s.store.InsertKeywords(ctx, listID, result.NewKeywords); err != nil {
			return fmt.Errorf("insert keywords: %w", err)
		}
	}
	return nil
}

// resolveMapping picks manual mapping, a declared tool, or detection, in
// that order.
func (s *Service) resolveMapping(headers []string, opts ImportOptions) (MappingResult, error) {
	switch {
	case len(opts.ColumnMapping) > 0:
		return s.detector.CreateManualMapping(headers, opts.ColumnMapping), nil
	case opts.Tool != ToolUnknown:
		return s.detector.MappingFor(opts.Tool, headers)
	default:
		return s.detector.Detect(headers), nil
	}
}

// GetJob returns a snapshot of a job.
func (s *Service) GetJob(jobID string) (ImportJob, error) {
	job, ok := s.jobs.Get(jobID)
	if !ok {
		return ImportJob{}, ErrJobNotFound
	}
	return job, nil
}

// ClearJob removes a finished job.
func (s *Service) ClearJob(jobID string) error {
	return s.jobs.Clear(jobID)
}

// CancelImport asks a running import to stop at its next stage boundary.
func (s *Service) CancelImport(jobID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[jobID]
	s.mu.Unlock()

	if ok {
		cancel()
		return nil
	}
	if _, exists := s.jobs.Get(jobID); exists {
		return ErrJobTerminal
	}
	return ErrJobNotFound
}

// WaitForImports blocks until every running import has finished.
func (s *Service) WaitForImports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// ActiveImports returns the number of running imports.
func (s *Service) ActiveImports() int {
	return s.limiter.ActiveCount()
}

// DetectRequest asks for a format preview of a file.
type DetectRequest struct {
	FileName      string
	MimeType      string
	Data          []byte
	Tool          ToolSource
	ColumnMapping map[string]string
}

// FormatPreview is the result of DetectFormat.
type FormatPreview struct {
	Mapping     MappingResult   `json:"mapping"`
	Headers     []string        `json:"headers"`
	File        FileMeta        `json:"file"`
	ParseErrors []ParseError    `json:"parseErrors"`
	Sample      []MappedKeyword `json:"sample"`
}

// previewRows is the number of mapped rows returned by DetectFormat.
const previewRows = 5

// DetectFormat parses a file and resolves its mapping without touching
// the store or creating a job.
func (s *Service) DetectFormat(ctx context.Context, req DetectRequest) (*FormatPreview, error) {
	tool, err := ParseToolSource(string(req.Tool))
	if err != nil {
		return nil, err
	}

	parsed, err := s.ingestor.Parse(ctx, req.Data, req.FileName, req.MimeType, nil)
	if err != nil {
		return nil, err
	}

	mapping, err := s.resolveMapping(parsed.Headers, ImportOptions{Tool: tool, ColumnMapping: req.ColumnMapping})
	if err != nil {
		return nil, err
	}

	preview := &FormatPreview{
		Mapping:     mapping,
		Headers:     parsed.Headers,
		File:        parsed.Meta,
		ParseErrors: parsed.Errors,
		Sample:      []MappedKeyword{},
	}
	if mapping.Usable() {
		rows := parsed.Rows
		if len(rows) > previewRows {
			rows = rows[:previewRows]
		}
		sampleTool := mapping.DetectedTool
		if sampleTool == ToolUnknown {
			sampleTool = tool
		}
		preview.Sample, _ = NewRowMapper(mapping.Validators).MapRows(rows, mapping.Mappings, sampleTool)
	}
	return preview, nil
}

// ResolveConflicts overlays reviewer decisions on a conflict list.
func (s *Service) ResolveConflicts(conflicts []MergeConflict, resolutions map[string]ConflictResolution) []MergeConflict {
	return ApplyConflictResolutions(conflicts, resolutions)
}

// ResolveJobConflicts applies resolutions to the conflicts of a completed
// job. The stored report is not changed.
func (s *Service) ResolveJobConflicts(jobID string, resolutions map[string]ConflictResolution) ([]MergeConflict, error) {
	job, err := s.GetJob(jobID)
	if err != nil {
		return nil, err
	}
	if !job.Status.Terminal() {
		return nil, ErrJobInProgress
	}
	if job.Result == nil {
		return []MergeConflict{}, nil
	}
	return ApplyConflictResolutions(job.Result.Conflicts, resolutions), nil
}

func parseImportErrors(errs []ParseError) []ImportError {
	out := make([]ImportError, 0, len(errs))
	for _, e := range errs {
		out = append(out, ImportError{
			Stage:   StageParse,
			Type:    string(e.Type),
			Row:     e.Row,
			Column:  e.Column,
			Message: e.Message,
		})
	}
	return out
}

func mappingImportErrors(errs []MappingError) []ImportError {
	out := make([]ImportError, 0, len(errs))
	for _, e := range errs {
		out = append(out, ImportError{
			Stage:   StageMapping,
			Type:    string(e.Type),
			Column:  e.Column,
			Message: e.Message,
		})
	}
	return out
}

func mergeImportErrors(errs []MergeError) []ImportError {
	out := make([]ImportError, 0, len(errs))
	for _, e := range errs {
		out = append(out, ImportError{
			Stage:       StageMerge,
			Type:        string(e.Type),
			KeywordText: e.KeywordText,
			Message:     e.Message,
		})
	}
	return out
}
