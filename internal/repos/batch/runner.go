package batch

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	repoerrors "github.com/tyemirov/gitstat/internal/repos/errors"
	"github.com/tyemirov/gitstat/internal/repos/status"
	"github.com/tyemirov/gitstat/pkg/taskrunner"
)

const (
	classifierNotConfiguredMessageConstant = "batch classifier not configured"
	syncNotConfiguredMessageConstant       = "batch sync probe not configured"
	batchStartedLogMessageConstant         = "batch_started"
	batchCompletedLogMessageConstant       = "batch_completed"
	runIdentifierLogFieldConstant          = "run_id"
	repositoryCountLogFieldConstant        = "repository_count"
	workerCountLogFieldConstant            = "worker_count"
	modeLogFieldConstant                   = "mode"
	summaryLogFieldConstant                = "summary"
	changesFoundLogFieldConstant           = "changes_found"
	repositoryPathLogFieldConstant         = "repository_path"
	quietProbeFailureLogMessageConstant    = "quiet_check_probe_failed"
)

// Mode names a batch execution mode in logs.
type Mode string

const (
	// ModeCollect classifies every repository and collects reported statuses.
	ModeCollect Mode = "collect"
	// ModeQuiet stops at the first repository with changes.
	ModeQuiet Mode = "quiet"
	// ModeFetch fetches every repository.
	ModeFetch Mode = "fetch"
	// ModePull pulls repositories that only need a pull.
	ModePull Mode = "pull"
)

var (
	// ErrClassifierNotConfigured indicates the Runner was constructed without a classifier.
	ErrClassifierNotConfigured = errors.New(classifierNotConfiguredMessageConstant)
	// ErrSyncNotConfigured indicates a fetch or pull was requested without a sync probe.
	ErrSyncNotConfigured = errors.New(syncNotConfiguredMessageConstant)
)

// Classifier classifies a single repository.
type Classifier interface {
	Classify(executionContext context.Context, repositoryPath string, options status.Options) (status.ClassificationResult, error)
}

// SyncProbe runs the remote sync operations.
type SyncProbe interface {
	Fetch(executionContext context.Context, repositoryPath string) (string, error)
	Pull(executionContext context.Context, repositoryPath string) (string, error)
}

// ErrorReporter receives per-repository failures.
type ErrorReporter interface {
	ReportError(failure error)
}

// ProgressTracker renders batch progress.
type ProgressTracker interface {
	Start(total int)
	Advance(completed int, total int)
	Finish()
}

// Config wires a Runner. Sync, Errors, Progress and Logger are optional.
type Config struct {
	Classifier Classifier
	Sync       SyncProbe
	Errors     ErrorReporter
	Progress   ProgressTracker
	Logger     *zap.Logger
	Workers    int
}

// CheckOptions tunes classification batches.
type CheckOptions struct {
	IncludeUpToDate  bool
	FetchBeforeCheck bool
	ShowProgress     bool
}

// SyncResult is the outcome of fetching or pulling one repository.
type SyncResult struct {
	Path string
	Err  error
}

// Runner executes classification and sync operations across repositories.
type Runner struct {
	classifier Classifier
	sync       SyncProbe
	errors     ErrorReporter
	progress   ProgressTracker
	logger     *zap.Logger
	workers    int
}

// NewRunner constructs a Runner.
func NewRunner(config Config) (*Runner, error) {
	if config.Classifier == nil {
		return nil, ErrClassifierNotConfigured
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		classifier: config.Classifier,
		sync:       config.Sync,
		errors:     config.Errors,
		progress:   config.Progress,
		logger:     logger,
		workers:    config.Workers,
	}, nil
}

// Collect classifies every repository and returns the reported statuses sorted by path.
// Per-repository failures go to the error reporter and the repository is omitted.
func (runner *Runner) Collect(executionContext context.Context, repositoryPaths []string, options CheckOptions) []status.RepositoryStatus {
	paths := lo.Uniq(repositoryPaths)
	run := runner.begin(ModeCollect, len(paths), options.ShowProgress)

	outcomes := taskrunner.Run(executionContext, paths, runner.poolOptions(options.ShowProgress), func(workContext context.Context, repositoryPath string) (status.ClassificationResult, error) {
		return runner.classifier.Classify(workContext, repositoryPath, status.Options{
			IncludeUpToDate:  options.IncludeUpToDate,
			FetchBeforeCheck: options.FetchBeforeCheck,
		})
	})
	run.complete(taskrunner.Summarize(outcomes, run.elapsed()))

	statuses := make([]status.RepositoryStatus, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome.Skipped {
			continue
		}
		if outcome.Err != nil {
			runner.reportError(outcome.Err)
			continue
		}
		if outcome.Value.Reported {
			statuses = append(statuses, outcome.Value.Status)
		}
	}
	sort.Slice(statuses, func(left, right int) bool {
		return statuses[left].Path < statuses[right].Path
	})
	return statuses
}

// AnyChanges reports whether any repository has changes, stopping at the first one found.
// Repositories that fail to classify are logged and count as unchanged.
func (runner *Runner) AnyChanges(executionContext context.Context, repositoryPaths []string, options CheckOptions) bool {
	paths := lo.Uniq(repositoryPaths)
	run := runner.begin(ModeQuiet, len(paths), options.ShowProgress)

	classification := func(workContext context.Context, repositoryPath string) (status.ClassificationResult, error) {
		result, classifyError := runner.classifier.Classify(workContext, repositoryPath, status.Options{FetchBeforeCheck: options.FetchBeforeCheck})
		if classifyError != nil && workContext.Err() == nil {
			runner.logger.Warn(quietProbeFailureLogMessageConstant,
				zap.String(repositoryPathLogFieldConstant, repositoryPath),
				zap.Error(classifyError),
			)
		}
		return result, classifyError
	}
	hasChanges := func(outcome taskrunner.Outcome[status.ClassificationResult]) bool {
		return outcome.Err == nil && outcome.Value.Reported && outcome.Value.Status.HasChanges()
	}

	_, found := taskrunner.FirstMatch(executionContext, paths, runner.poolOptions(options.ShowProgress), classification, hasChanges)
	run.complete(taskrunner.Summary{Total: len(paths), Duration: run.elapsed()}, zap.Bool(changesFoundLogFieldConstant, found))
	return found
}

// FetchAll fetches every repository. Failures are reported individually.
func (runner *Runner) FetchAll(executionContext context.Context, repositoryPaths []string, showProgress bool) ([]SyncResult, error) {
	if runner.sync == nil {
		return nil, ErrSyncNotConfigured
	}
	return runner.syncAll(executionContext, ModeFetch, lo.Uniq(repositoryPaths), showProgress, nil), nil
}

// PullSelected classifies repositories and pulls the ones whose only change is pull-required.
// announce, when provided, is called before each pull.
func (runner *Runner) PullSelected(executionContext context.Context, repositoryPaths []string, showProgress bool, announce func(repositoryPath string)) ([]SyncResult, error) {
	if runner.sync == nil {
		return nil, ErrSyncNotConfigured
	}
	statuses := runner.Collect(executionContext, repositoryPaths, CheckOptions{ShowProgress: showProgress})
	candidates := SelectPullCandidates(statuses)
	return runner.syncAll(executionContext, ModePull, candidates, showProgress, announce), nil
}

// SelectPullCandidates returns the paths whose change set is exactly pull-required.
func SelectPullCandidates(statuses []status.RepositoryStatus) []string {
	return lo.FilterMap(statuses, func(repositoryStatus status.RepositoryStatus, _ int) (string, bool) {
		return repositoryStatus.Path, repositoryStatus.IsExactly(status.ChangePullRequired)
	})
}

func (runner *Runner) syncAll(executionContext context.Context, mode Mode, paths []string, showProgress bool, announce func(string)) []SyncResult {
	operation, sentinel := repoerrors.OperationFetch, repoerrors.ErrFetchFailed
	syncOperation := runner.sync.Fetch
	if mode == ModePull {
		operation, sentinel = repoerrors.OperationPull, repoerrors.ErrPullFailed
		syncOperation = runner.sync.Pull
	}

	run := runner.begin(mode, len(paths), showProgress)
	outcomes := taskrunner.Run(executionContext, paths, runner.poolOptions(showProgress), func(workContext context.Context, repositoryPath string) (string, error) {
		if announce != nil {
			announce(repositoryPath)
		}
		return syncOperation(workContext, repositoryPath)
	})
	run.complete(taskrunner.Summarize(outcomes, run.elapsed()))

	results := make([]SyncResult, 0, len(outcomes))
	for index, outcome := range outcomes {
		if outcome.Skipped {
			continue
		}
		result := SyncResult{Path: paths[index]}
		if outcome.Err != nil {
			result.Err = repoerrors.Wrap(operation, paths[index], sentinel, outcome.Err)
			runner.reportError(result.Err)
		}
		results = append(results, result)
	}
	return results
}

func (runner *Runner) poolOptions(showProgress bool) taskrunner.Options {
	options := taskrunner.Options{Workers: runner.workers}
	if showProgress && runner.progress != nil {
		options.OnComplete = runner.progress.Advance
	}
	return options
}

type batchRun struct {
	runner        *Runner
	identifier    string
	mode          Mode
	startedAt     time.Time
	trackProgress bool
}

// begin logs the batch start and starts progress rendering when requested.
func (runner *Runner) begin(mode Mode, repositoryCount int, showProgress bool) batchRun {
	run := batchRun{
		runner:        runner,
		identifier:    uuid.NewString(),
		mode:          mode,
		startedAt:     time.Now(),
		trackProgress: showProgress && runner.progress != nil,
	}

	runner.logger.Info(batchStartedLogMessageConstant,
		zap.String(runIdentifierLogFieldConstant, run.identifier),
		zap.Int(repositoryCountLogFieldConstant, repositoryCount),
		zap.Int(workerCountLogFieldConstant, taskrunner.ResolveWorkers(runner.workers, repositoryCount)),
		zap.String(modeLogFieldConstant, string(mode)),
	)
	if run.trackProgress {
		runner.progress.Start(repositoryCount)
	}
	return run
}

func (run batchRun) elapsed() time.Duration {
	return time.Since(run.startedAt)
}

func (run batchRun) complete(summary taskrunner.Summary, fields ...zap.Field) {
	if run.trackProgress {
		run.runner.progress.Finish()
	}
	completionFields := append([]zap.Field{
		zap.String(runIdentifierLogFieldConstant, run.identifier),
		zap.String(modeLogFieldConstant, string(run.mode)),
		zap.Stringer(summaryLogFieldConstant, summary),
	}, fields...)
	run.runner.logger.Info(batchCompletedLogMessageConstant, completionFields...)
}

func (runner *Runner) reportError(failure error) {
	if runner.errors == nil {
		return
	}
	runner.errors.ReportError(failure)
}
