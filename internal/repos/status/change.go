package status

import (
	"slices"
)

// ChangeKind names one reportable aspect of a repository's sync state.
type ChangeKind string

const (
	// ChangeUnstaged marks tracked files that differ from the index.
	ChangeUnstaged ChangeKind = "unstaged"
	// ChangeUncommitted marks staged changes not yet committed.
	ChangeUncommitted ChangeKind = "uncommitted"
	// ChangeUntracked marks files that are neither tracked nor ignored.
	ChangeUntracked ChangeKind = "untracked"
	// ChangeUnpushed marks local commits missing from the upstream.
	ChangeUnpushed ChangeKind = "unpushed"
	// ChangePullRequired marks a local branch that is strictly behind its upstream.
	ChangePullRequired ChangeKind = "pull-required"
	// ChangeDiverged marks local and upstream histories that have both moved past their merge base.
	ChangeDiverged ChangeKind = "diverged"
	// ChangeURLMismatch marks an origin URL that differs from the recorded one.
	ChangeURLMismatch ChangeKind = "url-mismatch"
	// ChangeOriginURLError marks a repository whose origin URL cannot be read.
	ChangeOriginURLError ChangeKind = "origin-url-error"
	// ChangeNoUpstreamBranch marks a branch without a configured upstream.
	ChangeNoUpstreamBranch ChangeKind = "no-upstream-branch"
	// ChangeUpToDate is the exclusive marker for a repository with nothing to report.
	ChangeUpToDate ChangeKind = "up-to-date"
)

var changeLabels = map[ChangeKind]string{
	ChangeUnstaged:         "unstaged changes",
	ChangeUncommitted:      "uncommitted changes",
	ChangeUntracked:        "untracked files",
	ChangeUnpushed:         "unpushed commits",
	ChangePullRequired:     "pull required",
	ChangeDiverged:         "DIVERGED",
	ChangeURLMismatch:      "URL mismatch",
	ChangeOriginURLError:   "error in origin URL",
	ChangeNoUpstreamBranch: "no matching upstream branch",
	ChangeUpToDate:         "up to date",
}

// allChangeKinds lists every kind in evaluation order.
func allChangeKinds() []ChangeKind {
	return []ChangeKind{
		ChangeOriginURLError,
		ChangeURLMismatch,
		ChangeNoUpstreamBranch,
		ChangePullRequired,
		ChangeDiverged,
		ChangeUnstaged,
		ChangeUncommitted,
		ChangeUntracked,
		ChangeUnpushed,
		ChangeUpToDate,
	}
}

// Label returns the human-readable description shown in reports.
func (kind ChangeKind) Label() string {
	if label, found := changeLabels[kind]; found {
		return label
	}
	return string(kind)
}

// String returns the wire name.
func (kind ChangeKind) String() string {
	return string(kind)
}

// RepositoryStatus holds the ordered change kinds found for one repository.
type RepositoryStatus struct {
	Path    string
	Changes []ChangeKind
}

// Has reports whether kind is among the changes.
func (repositoryStatus RepositoryStatus) Has(kind ChangeKind) bool {
	return slices.Contains(repositoryStatus.Changes, kind)
}

// IsExactly reports whether the changes consist of exactly the given kinds in order.
func (repositoryStatus RepositoryStatus) IsExactly(kinds ...ChangeKind) bool {
	return slices.Equal(repositoryStatus.Changes, kinds)
}

// HasChanges reports whether any kind other than up-to-date was found.
func (repositoryStatus RepositoryStatus) HasChanges() bool {
	for _, kind := range repositoryStatus.Changes {
		if kind != ChangeUpToDate {
			return true
		}
	}
	return false
}

// Labels returns the display labels of the changes.
func (repositoryStatus RepositoryStatus) Labels() []string {
	labels := make([]string, 0, len(repositoryStatus.Changes))
	for _, kind := range repositoryStatus.Changes {
		labels = append(labels, kind.Label())
	}
	return labels
}

// ClassificationResult is the outcome of classifying one repository. Reported is false when
// there was nothing to report.
type ClassificationResult struct {
	Status   RepositoryStatus
	Reported bool
}
