package status

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/tyemirov/gitstat/internal/gitrepo"
	repoerrors "github.com/tyemirov/gitstat/internal/repos/errors"
)

const (
	probeNotConfiguredMessageConstant = "repository probe not configured"
	urlMismatchMessageTemplate        = "URL mismatch: recorded %s, origin %s"
	fetchSkippedMismatchMessage       = "fetch skipped: origin does not match the recorded URL"
	classificationLogMessageConstant  = "repository_classified"
	classificationAbortedLogConstant  = "repository_classification_failed"
	repositoryPathLogFieldConstant    = "repository_path"
	changesLogFieldConstant           = "changes"
)

// ErrProbeNotConfigured indicates a Classifier was constructed without a probe.
var ErrProbeNotConfigured = errors.New(probeNotConfiguredMessageConstant)

// RepositoryProbe is the set of git queries the classifier runs.
type RepositoryProbe interface {
	OriginURL(executionContext context.Context, repositoryPath string) (string, bool)
	LocalRevision(executionContext context.Context, repositoryPath string) (string, error)
	RemoteRevision(executionContext context.Context, repositoryPath string) (gitrepo.RemoteRevision, error)
	MergeBase(executionContext context.Context, repositoryPath string) (string, error)
	RefreshIndex(executionContext context.Context, repositoryPath string) error
	HasUnstagedChanges(executionContext context.Context, repositoryPath string) bool
	HasStagedChanges(executionContext context.Context, repositoryPath string) bool
	HasUntrackedFiles(executionContext context.Context, repositoryPath string) bool
	HasUnpushedDiff(executionContext context.Context, repositoryPath string) bool
	Fetch(executionContext context.Context, repositoryPath string) (string, error)
}

// URLLookup returns the origin URL recorded for a tracked repository.
type URLLookup interface {
	RecordedURL(repositoryPath string) (string, bool)
}

// DiagnosticReporter receives non-fatal problems discovered while classifying.
type DiagnosticReporter interface {
	ReportDiagnostic(diagnostic error)
}

// Options tunes a single classification.
type Options struct {
	IncludeUpToDate  bool
	FetchBeforeCheck bool
}

// Classifier derives a RepositoryStatus from a fixed sequence of git queries.
type Classifier struct {
	probe       RepositoryProbe
	urls        URLLookup
	diagnostics DiagnosticReporter
	logger      *zap.Logger
}

// NewClassifier constructs a Classifier. urls, diagnostics and logger are optional.
func NewClassifier(probe RepositoryProbe, urls URLLookup, diagnostics DiagnosticReporter, logger *zap.Logger) (*Classifier, error) {
	if probe == nil {
		return nil, ErrProbeNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{probe: probe, urls: urls, diagnostics: diagnostics, logger: logger}, nil
}

// Classify runs the status pipeline for one repository. A returned error matches
// repoerrors.ErrProbeFailed and means the repository could not be classified at all.
func (classifier *Classifier) Classify(executionContext context.Context, repositoryPath string, options Options) (ClassificationResult, error) {
	changes := make([]ChangeKind, 0, 4)

	originURL, originPresent := classifier.probe.OriginURL(executionContext, repositoryPath)
	originTrusted := originPresent
	if !originPresent {
		changes = append(changes, ChangeOriginURLError)
	} else if classifier.urls != nil {
		if recordedURL, tracked := classifier.urls.RecordedURL(repositoryPath); tracked && recordedURL != originURL {
			changes = append(changes, ChangeURLMismatch)
			originTrusted = false
			classifier.report(repoerrors.WrapMessage(repoerrors.OperationStatusCheck, repositoryPath, repoerrors.ErrConfigInconsistent, fmt.Sprintf(urlMismatchMessageTemplate, recordedURL, originURL)))
		}
	}

	if options.FetchBeforeCheck {
		classifier.fetch(executionContext, repositoryPath, originPresent, originTrusted)
	}

	localRevision, localError := classifier.probe.LocalRevision(executionContext, repositoryPath)
	if localError != nil {
		return classifier.abort(repositoryPath, localError)
	}

	remoteRevision, remoteError := classifier.probe.RemoteRevision(executionContext, repositoryPath)
	if remoteError != nil {
		return classifier.abort(repositoryPath, remoteError)
	}

	pullRequired := false
	if !remoteRevision.Configured {
		changes = append(changes, ChangeNoUpstreamBranch)
	} else {
		mergeBase, mergeBaseError := classifier.probe.MergeBase(executionContext, repositoryPath)
		if mergeBaseError != nil {
			return classifier.abort(repositoryPath, mergeBaseError)
		}
		switch {
		case localRevision == remoteRevision.Revision:
		case localRevision == mergeBase:
			changes = append(changes, ChangePullRequired)
			pullRequired = true
		case remoteRevision.Revision == mergeBase:
			// ahead of upstream; reported by the unpushed diff below
		default:
			changes = append(changes, ChangeDiverged)
		}
	}

	if refreshError := classifier.probe.RefreshIndex(executionContext, repositoryPath); refreshError != nil {
		return classifier.abort(repositoryPath, refreshError)
	}

	if classifier.probe.HasUnstagedChanges(executionContext, repositoryPath) {
		changes = append(changes, ChangeUnstaged)
	}
	if classifier.probe.HasStagedChanges(executionContext, repositoryPath) {
		changes = append(changes, ChangeUncommitted)
	}
	if classifier.probe.HasUntrackedFiles(executionContext, repositoryPath) {
		changes = append(changes, ChangeUntracked)
	}
	if remoteRevision.Configured && !pullRequired && classifier.probe.HasUnpushedDiff(executionContext, repositoryPath) {
		changes = append(changes, ChangeUnpushed)
	}

	if len(changes) == 0 && options.IncludeUpToDate {
		changes = append(changes, ChangeUpToDate)
	}

	classifier.logger.Debug(classificationLogMessageConstant,
		zap.String(repositoryPathLogFieldConstant, repositoryPath),
		zap.Stringers(changesLogFieldConstant, changes),
	)

	if len(changes) == 0 {
		return ClassificationResult{Status: RepositoryStatus{Path: repositoryPath}}, nil
	}
	return ClassificationResult{Status: RepositoryStatus{Path: repositoryPath, Changes: changes}, Reported: true}, nil
}

func (classifier *Classifier) fetch(executionContext context.Context, repositoryPath string, originPresent bool, originTrusted bool) {
	if !originPresent {
		return
	}
	if !originTrusted {
		classifier.report(repoerrors.WrapMessage(repoerrors.OperationFetch, repositoryPath, repoerrors.ErrConfigInconsistent, fetchSkippedMismatchMessage))
		return
	}
	if _, fetchError := classifier.probe.Fetch(executionContext, repositoryPath); fetchError != nil {
		classifier.report(repoerrors.Wrap(repoerrors.OperationFetch, repositoryPath, repoerrors.ErrFetchFailed, fetchError))
	}
}

func (classifier *Classifier) abort(repositoryPath string, cause error) (ClassificationResult, error) {
	classifier.logger.Warn(classificationAbortedLogConstant,
		zap.String(repositoryPathLogFieldConstant, repositoryPath),
		zap.Error(cause),
	)
	return ClassificationResult{}, repoerrors.Wrap(repoerrors.OperationStatusCheck, repositoryPath, repoerrors.ErrProbeFailed, cause)
}

func (classifier *Classifier) report(diagnostic error) {
	if classifier.diagnostics == nil {
		return
	}
	classifier.diagnostics.ReportDiagnostic(diagnostic)
}
