package status_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/tyemirov/gitstat/internal/gitrepo"
	repoerrors "github.com/tyemirov/gitstat/internal/repos/errors"
	"github.com/tyemirov/gitstat/internal/repos/status"
)

const (
	testRepositoryPathConstant = "/work/repository"
	testOriginURLConstant      = "git@github.com:example/repository.git"
	testOtherURLConstant       = "git@github.com:fork/repository.git"
)

type stubProbe struct {
	originURL      string
	originMissing  bool
	local          string
	localError     error
	remote         gitrepo.RemoteRevision
	remoteError    error
	mergeBase      string
	mergeBaseError error
	refreshError   error
	unstaged       bool
	staged         bool
	untracked      bool
	unpushed       bool
	fetchError     error
	calls          []string
}

func (probe *stubProbe) record(name string) {
	probe.calls = append(probe.calls, name)
}

func (probe *stubProbe) OriginURL(context.Context, string) (string, bool) {
	probe.record("origin_url")
	if probe.originMissing {
		return "", false
	}
	return probe.originURL, true
}

func (probe *stubProbe) LocalRevision(context.Context, string) (string, error) {
	probe.record("local_revision")
	return probe.local, probe.localError
}

func (probe *stubProbe) RemoteRevision(context.Context, string) (gitrepo.RemoteRevision, error) {
	probe.record("remote_revision")
	return probe.remote, probe.remoteError
}

func (probe *stubProbe) MergeBase(context.Context, string) (string, error) {
	probe.record("merge_base")
	return probe.mergeBase, probe.mergeBaseError
}

func (probe *stubProbe) RefreshIndex(context.Context, string) error {
	probe.record("refresh_index")
	return probe.refreshError
}

func (probe *stubProbe) HasUnstagedChanges(context.Context, string) bool {
	probe.record("unstaged")
	return probe.unstaged
}

func (probe *stubProbe) HasStagedChanges(context.Context, string) bool {
	probe.record("staged")
	return probe.staged
}

func (probe *stubProbe) HasUntrackedFiles(context.Context, string) bool {
	probe.record("untracked")
	return probe.untracked
}

func (probe *stubProbe) HasUnpushedDiff(context.Context, string) bool {
	probe.record("unpushed")
	return probe.unpushed
}

func (probe *stubProbe) Fetch(_ context.Context, repositoryPath string) (string, error) {
	probe.record("fetch")
	return repositoryPath, probe.fetchError
}

type staticURLs map[string]string

func (urls staticURLs) RecordedURL(repositoryPath string) (string, bool) {
	recordedURL, found := urls[repositoryPath]
	return recordedURL, found
}

type collectingDiagnostics struct {
	diagnostics []error
}

func (collector *collectingDiagnostics) ReportDiagnostic(diagnostic error) {
	collector.diagnostics = append(collector.diagnostics, diagnostic)
}

func inSyncProbe() *stubProbe {
	return &stubProbe{
		originURL: testOriginURLConstant,
		local:     "aaa",
		remote:    gitrepo.RemoteRevision{Revision: "aaa", Configured: true},
		mergeBase: "aaa",
	}
}

func TestNewClassifierRequiresProbe(testInstance *testing.T) {
	classifier, creationError := status.NewClassifier(nil, nil, nil, nil)
	require.Nil(testInstance, classifier)
	require.ErrorIs(testInstance, creationError, status.ErrProbeNotConfigured)
}

func TestClassifyScenarios(testInstance *testing.T) {
	testCases := []struct {
		name            string
		configure       func(probe *stubProbe)
		urls            staticURLs
		includeUpToDate bool
		expectReported  bool
		expectedChanges []status.ChangeKind
	}{
		{
			name:           "in_sync_not_reported",
			configure:      func(*stubProbe) {},
			urls:           staticURLs{testRepositoryPathConstant: testOriginURLConstant},
			expectReported: false,
		},
		{
			name:            "in_sync_up_to_date",
			configure:       func(*stubProbe) {},
			urls:            staticURLs{testRepositoryPathConstant: testOriginURLConstant},
			includeUpToDate: true,
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeUpToDate},
		},
		{
			name:            "untracked_only",
			configure:       func(probe *stubProbe) { probe.untracked = true },
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeUntracked},
		},
		{
			name: "no_upstream",
			configure: func(probe *stubProbe) {
				probe.remote = gitrepo.RemoteRevision{Configured: false}
			},
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeNoUpstreamBranch},
		},
		{
			name: "pull_required_suppresses_unpushed",
			configure: func(probe *stubProbe) {
				probe.remote = gitrepo.RemoteRevision{Revision: "bbb", Configured: true}
				probe.unpushed = true
			},
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangePullRequired},
		},
		{
			name: "ahead_reports_unpushed",
			configure: func(probe *stubProbe) {
				probe.local = "ccc"
				probe.unpushed = true
			},
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeUnpushed},
		},
		{
			name: "diverged",
			configure: func(probe *stubProbe) {
				probe.local = "ccc"
				probe.remote = gitrepo.RemoteRevision{Revision: "bbb", Configured: true}
				probe.unpushed = true
			},
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeDiverged, status.ChangeUnpushed},
		},
		{
			name:            "origin_missing_continues",
			configure:       func(probe *stubProbe) { probe.originMissing = true; probe.unstaged = true },
			includeUpToDate: true,
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeOriginURLError, status.ChangeUnstaged},
		},
		{
			name:            "url_mismatch_continues",
			configure:       func(probe *stubProbe) { probe.staged = true },
			urls:            staticURLs{testRepositoryPathConstant: testOtherURLConstant},
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeURLMismatch, status.ChangeUncommitted},
		},
		{
			name:            "untracked_repository_skips_url_comparison",
			configure:       func(*stubProbe) {},
			urls:            staticURLs{"/elsewhere": testOtherURLConstant},
			includeUpToDate: true,
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeUpToDate},
		},
		{
			name: "all_working_tree_kinds",
			configure: func(probe *stubProbe) {
				probe.unstaged = true
				probe.staged = true
				probe.untracked = true
			},
			expectReported:  true,
			expectedChanges: []status.ChangeKind{status.ChangeUnstaged, status.ChangeUncommitted, status.ChangeUntracked},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			probe := inSyncProbe()
			testCase.configure(probe)

			var urls status.URLLookup
			if testCase.urls != nil {
				urls = testCase.urls
			}
			classifier, creationError := status.NewClassifier(probe, urls, nil, zap.NewNop())
			require.NoError(testInstance, creationError)

			result, classifyError := classifier.Classify(context.Background(), testRepositoryPathConstant, status.Options{IncludeUpToDate: testCase.includeUpToDate})
			require.NoError(testInstance, classifyError)
			require.Equal(testInstance, testCase.expectReported, result.Reported)
			require.Equal(testInstance, testRepositoryPathConstant, result.Status.Path)
			if testCase.expectReported {
				require.Equal(testInstance, testCase.expectedChanges, result.Status.Changes)
			} else {
				require.Empty(testInstance, result.Status.Changes)
			}
		})
	}
}

func TestClassifyNoUpstreamSkipsTriangleAndUnpushed(testInstance *testing.T) {
	probe := inSyncProbe()
	probe.remote = gitrepo.RemoteRevision{Configured: false}
	probe.unpushed = true

	classifier, creationError := status.NewClassifier(probe, nil, nil, nil)
	require.NoError(testInstance, creationError)

	result, classifyError := classifier.Classify(context.Background(), testRepositoryPathConstant, status.Options{})
	require.NoError(testInstance, classifyError)
	require.NotContains(testInstance, probe.calls, "merge_base")
	require.False(testInstance, result.Status.Has(status.ChangePullRequired))
	require.False(testInstance, result.Status.Has(status.ChangeDiverged))
	require.Equal(testInstance, []status.ChangeKind{status.ChangeNoUpstreamBranch}, result.Status.Changes)
	require.Equal(testInstance,
		[]string{"origin_url", "local_revision", "remote_revision", "refresh_index", "unstaged", "staged", "untracked"},
		probe.calls)
}

func TestClassifyAbortsOnHardFailures(testInstance *testing.T) {
	probeFailure := gitrepo.ProbeError{Operation: gitrepo.ProbeLocalRevision, RepositoryPath: testRepositoryPathConstant, Cause: errors.New("exit 128")}

	testCases := []struct {
		name      string
		configure func(probe *stubProbe)
		lastCall  string
	}{
		{name: "local_revision", configure: func(probe *stubProbe) { probe.localError = probeFailure }, lastCall: "local_revision"},
		{name: "remote_revision", configure: func(probe *stubProbe) { probe.remoteError = probeFailure }, lastCall: "remote_revision"},
		{name: "merge_base", configure: func(probe *stubProbe) { probe.mergeBaseError = probeFailure }, lastCall: "merge_base"},
		{name: "refresh_index", configure: func(probe *stubProbe) { probe.refreshError = probeFailure }, lastCall: "refresh_index"},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			probe := inSyncProbe()
			testCase.configure(probe)
			observerCore, observedLogs := observer.New(zap.WarnLevel)

			classifier, creationError := status.NewClassifier(probe, nil, nil, zap.New(observerCore))
			require.NoError(testInstance, creationError)

			result, classifyError := classifier.Classify(context.Background(), testRepositoryPathConstant, status.Options{IncludeUpToDate: true})
			require.ErrorIs(testInstance, classifyError, repoerrors.ErrProbeFailed)
			require.False(testInstance, result.Reported)
			require.Equal(testInstance, testCase.lastCall, probe.calls[len(probe.calls)-1])

			var operationError repoerrors.OperationError
			require.True(testInstance, errors.As(classifyError, &operationError))
			require.Equal(testInstance, testRepositoryPathConstant, operationError.Subject())

			require.Equal(testInstance, 1, observedLogs.FilterMessage("repository_classification_failed").Len())
		})
	}
}

func TestClassifyReportsURLMismatchDiagnostic(testInstance *testing.T) {
	probe := inSyncProbe()
	diagnostics := &collectingDiagnostics{}

	classifier, creationError := status.NewClassifier(probe, staticURLs{testRepositoryPathConstant: testOtherURLConstant}, diagnostics, nil)
	require.NoError(testInstance, creationError)

	_, classifyError := classifier.Classify(context.Background(), testRepositoryPathConstant, status.Options{})
	require.NoError(testInstance, classifyError)
	require.Len(testInstance, diagnostics.diagnostics, 1)
	require.ErrorIs(testInstance, diagnostics.diagnostics[0], repoerrors.ErrConfigInconsistent)
	require.Contains(testInstance, diagnostics.diagnostics[0].Error(), testOtherURLConstant)
	require.Contains(testInstance, diagnostics.diagnostics[0].Error(), testOriginURLConstant)
}

func TestClassifyFetchBeforeCheck(testInstance *testing.T) {
	testCases := []struct {
		name               string
		configure          func(probe *stubProbe)
		urls               staticURLs
		expectFetch        bool
		expectedDiagnostic error
	}{
		{
			name:        "fetches_matching_origin",
			configure:   func(*stubProbe) {},
			urls:        staticURLs{testRepositoryPathConstant: testOriginURLConstant},
			expectFetch: true,
		},
		{
			name:               "skips_mismatched_origin",
			configure:          func(*stubProbe) {},
			urls:               staticURLs{testRepositoryPathConstant: testOtherURLConstant},
			expectedDiagnostic: repoerrors.ErrConfigInconsistent,
		},
		{
			name:      "skips_missing_origin",
			configure: func(probe *stubProbe) { probe.originMissing = true },
		},
		{
			name:               "fetch_failure_is_diagnostic",
			configure:          func(probe *stubProbe) { probe.fetchError = errors.New("network down") },
			expectFetch:        true,
			expectedDiagnostic: repoerrors.ErrFetchFailed,
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			probe := inSyncProbe()
			testCase.configure(probe)
			diagnostics := &collectingDiagnostics{}

			var urls status.URLLookup
			if testCase.urls != nil {
				urls = testCase.urls
			}
			classifier, creationError := status.NewClassifier(probe, urls, diagnostics, nil)
			require.NoError(testInstance, creationError)

			_, classifyError := classifier.Classify(context.Background(), testRepositoryPathConstant, status.Options{FetchBeforeCheck: true})
			require.NoError(testInstance, classifyError)
			require.Contains(testInstance, probe.calls, "refresh_index")

			if testCase.expectFetch {
				require.Contains(testInstance, probe.calls, "fetch")
				require.Less(testInstance, indexOf(probe.calls, "fetch"), indexOf(probe.calls, "local_revision"))
			} else {
				require.NotContains(testInstance, probe.calls, "fetch")
			}

			if testCase.expectedDiagnostic != nil {
				require.NotEmpty(testInstance, diagnostics.diagnostics)
				require.ErrorIs(testInstance, diagnostics.diagnostics[len(diagnostics.diagnostics)-1], testCase.expectedDiagnostic)
			}
		})
	}
}

func TestClassificationProperties(testInstance *testing.T) {
	revisions := []string{"aaa", "bbb", "ccc"}

	rapid.Check(testInstance, func(propertyTest *rapid.T) {
		probe := &stubProbe{
			originURL:     testOriginURLConstant,
			originMissing: rapid.Bool().Draw(propertyTest, "origin_missing"),
			local:         rapid.SampledFrom(revisions).Draw(propertyTest, "local"),
			remote: gitrepo.RemoteRevision{
				Revision:   rapid.SampledFrom(revisions).Draw(propertyTest, "remote"),
				Configured: rapid.Bool().Draw(propertyTest, "configured"),
			},
			mergeBase: rapid.SampledFrom(revisions).Draw(propertyTest, "merge_base"),
			unstaged:  rapid.Bool().Draw(propertyTest, "unstaged"),
			staged:    rapid.Bool().Draw(propertyTest, "staged"),
			untracked: rapid.Bool().Draw(propertyTest, "untracked"),
			unpushed:  rapid.Bool().Draw(propertyTest, "unpushed"),
		}
		includeUpToDate := rapid.Bool().Draw(propertyTest, "include_up_to_date")
		recordedURL := rapid.SampledFrom([]string{testOriginURLConstant, testOtherURLConstant}).Draw(propertyTest, "recorded_url")

		classifier, creationError := status.NewClassifier(probe, staticURLs{testRepositoryPathConstant: recordedURL}, nil, nil)
		if creationError != nil {
			propertyTest.Fatalf("classifier creation: %v", creationError)
		}

		options := status.Options{IncludeUpToDate: includeUpToDate}
		first, firstError := classifier.Classify(context.Background(), testRepositoryPathConstant, options)
		second, secondError := classifier.Classify(context.Background(), testRepositoryPathConstant, options)
		if firstError != nil || secondError != nil {
			propertyTest.Fatalf("unexpected errors: %v %v", firstError, secondError)
		}

		if !slicesEqual(first.Status.Changes, second.Status.Changes) || first.Reported != second.Reported {
			propertyTest.Fatalf("classification not idempotent: %v vs %v", first.Status.Changes, second.Status.Changes)
		}

		if first.Status.Has(status.ChangePullRequired) && first.Status.Has(status.ChangeUnpushed) {
			propertyTest.Fatalf("pull-required and unpushed reported together: %v", first.Status.Changes)
		}

		if probe.remote.Configured && probe.local == probe.remote.Revision {
			if first.Status.Has(status.ChangePullRequired) || first.Status.Has(status.ChangeDiverged) {
				propertyTest.Fatalf("in-sync revisions reported triangle changes: %v", first.Status.Changes)
			}
		}

		if !probe.remote.Configured {
			if first.Status.Has(status.ChangePullRequired) || first.Status.Has(status.ChangeDiverged) || first.Status.Has(status.ChangeUnpushed) {
				propertyTest.Fatalf("missing upstream reported upstream-relative changes: %v", first.Status.Changes)
			}
		}

		upToDate := first.Status.Has(status.ChangeUpToDate)
		otherKinds := first.Status.HasChanges()
		if upToDate != (includeUpToDate && !otherKinds) {
			propertyTest.Fatalf("up-to-date marker mismatch: include=%t changes=%v", includeUpToDate, first.Status.Changes)
		}
		if upToDate && len(first.Status.Changes) != 1 {
			propertyTest.Fatalf("up-to-date is not exclusive: %v", first.Status.Changes)
		}
		if first.Reported != (len(first.Status.Changes) > 0) {
			propertyTest.Fatalf("reported flag disagrees with changes: %v", first.Status.Changes)
		}
	})
}

func TestChangeKindLabels(testInstance *testing.T) {
	for _, kind := range status.AllChangeKinds() {
		require.NotEqual(testInstance, string(kind), kind.Label(), "label for %s", kind)
	}
	require.Equal(testInstance, "DIVERGED", status.ChangeDiverged.Label())
	require.Equal(testInstance, "pull required", status.ChangePullRequired.Label())
	require.Equal(testInstance, "custom", status.ChangeKind("custom").Label())
}

func TestRepositoryStatusHelpers(testInstance *testing.T) {
	repositoryStatus := status.RepositoryStatus{Path: testRepositoryPathConstant, Changes: []status.ChangeKind{status.ChangePullRequired}}
	require.True(testInstance, repositoryStatus.IsExactly(status.ChangePullRequired))
	require.False(testInstance, repositoryStatus.IsExactly(status.ChangePullRequired, status.ChangeUnstaged))
	require.True(testInstance, repositoryStatus.HasChanges())
	require.Equal(testInstance, []string{"pull required"}, repositoryStatus.Labels())

	upToDate := status.RepositoryStatus{Changes: []status.ChangeKind{status.ChangeUpToDate}}
	require.False(testInstance, upToDate.HasChanges())
}

func indexOf(values []string, target string) int {
	for index, value := range values {
		if value == target {
			return index
		}
	}
	return -1
}

func slicesEqual(left []status.ChangeKind, right []status.ChangeKind) bool {
	if len(left) != len(right) {
		return false
	}
	for index := range left {
		if left[index] != right[index] {
			return false
		}
	}
	return true
}
