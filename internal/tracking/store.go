package tracking

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	repoerrors "github.com/tyemirov/gitstat/internal/repos/errors"
)

const (
	storeFilePermissionsConstant      = 0o644
	storeDirectoryPermissionsConstant = 0o755
	temporaryFilePatternConstant      = ".gitstat-*.yaml"
)

var (
	// ErrAlreadyTracked indicates the repository is already in the store.
	ErrAlreadyTracked = errors.New("already tracked")
	// ErrNotTracked indicates the repository is not in the store.
	ErrNotTracked = errors.New("not tracked")
	// ErrAlreadyIgnored indicates the repository is already ignored.
	ErrAlreadyIgnored = errors.New("already ignored")
	// ErrAlreadyUnignored indicates the repository is not ignored.
	ErrAlreadyUnignored = errors.New("already unignored")
)

// Repository is a tracked working copy.
type Repository struct {
	Path    string
	URL     string
	Ignored bool
}

// Defaults holds the values new records inherit.
type Defaults struct {
	Ignore bool `yaml:"ignore"`
}

type record struct {
	URL    string `yaml:"url"`
	Ignore bool   `yaml:"ignore"`
}

type document struct {
	Defaults     Defaults          `yaml:"defaults"`
	Repositories map[string]record `yaml:"repositories"`
}

// Store maps canonical repository paths to their recorded origin URL and ignore flag.
// Mutations stay in memory until Save.
type Store struct {
	mutex    sync.RWMutex
	filePath string
	defaults Defaults
	records  map[string]record
	modified bool
}

// NewStore returns an empty store bound to filePath.
func NewStore(filePath string) *Store {
	return &Store{filePath: filePath, records: make(map[string]record)}
}

// Load reads the store at filePath. A missing file yields an empty store.
func Load(filePath string) (*Store, error) {
	store := NewStore(filePath)

	contents, readError := os.ReadFile(filePath)
	if readError != nil {
		if errors.Is(readError, fs.ErrNotExist) {
			return store, nil
		}
		return nil, repoerrors.Wrap(repoerrors.OperationStoreLoad, filePath, repoerrors.ErrStoreUnavailable, readError)
	}

	var decoded document
	if decodeError := yaml.Unmarshal(contents, &decoded); decodeError != nil {
		return nil, repoerrors.Wrap(repoerrors.OperationStoreLoad, filePath, repoerrors.ErrStoreUnavailable, decodeError)
	}

	store.defaults = decoded.Defaults
	for repositoryPath, entry := range decoded.Repositories {
		store.records[repositoryPath] = entry
	}
	return store, nil
}

// FilePath returns the backing file location.
func (store *Store) FilePath() string {
	return store.filePath
}

// Modified reports whether the store changed since it was loaded or saved.
func (store *Store) Modified() bool {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return store.modified
}

// Lookup returns the tracked repository at repositoryPath.
func (store *Store) Lookup(repositoryPath string) (Repository, bool) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	entry, found := store.records[repositoryPath]
	if !found {
		return Repository{}, false
	}
	return Repository{Path: repositoryPath, URL: entry.URL, Ignored: entry.Ignore}, true
}

// RecordedURL returns the origin URL recorded for repositoryPath.
func (store *Store) RecordedURL(repositoryPath string) (string, bool) {
	repository, found := store.Lookup(repositoryPath)
	return repository.URL, found
}

// IsTracked reports whether repositoryPath is in the store.
func (store *Store) IsTracked(repositoryPath string) bool {
	_, found := store.Lookup(repositoryPath)
	return found
}

// Len returns the number of tracked repositories, ignored ones included.
func (store *Store) Len() int {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	return len(store.records)
}

// Repositories lists tracked repositories sorted by path.
func (store *Store) Repositories(includeIgnored bool) []Repository {
	store.mutex.RLock()
	defer store.mutex.RUnlock()

	repositories := make([]Repository, 0, len(store.records))
	for repositoryPath, entry := range store.records {
		if entry.Ignore && !includeIgnored {
			continue
		}
		repositories = append(repositories, Repository{Path: repositoryPath, URL: entry.URL, Ignored: entry.Ignore})
	}
	sort.Slice(repositories, func(left, right int) bool {
		return repositories[left].Path < repositories[right].Path
	})
	return repositories
}

// Track records a new repository with the default ignore flag.
func (store *Store) Track(repositoryPath string, originURL string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, found := store.records[repositoryPath]; found {
		return repoerrors.Wrap(repoerrors.OperationTrack, repositoryPath, repoerrors.ErrUserInput, ErrAlreadyTracked)
	}
	store.records[repositoryPath] = record{URL: originURL, Ignore: store.defaults.Ignore}
	store.modified = true
	return nil
}

// Untrack removes a repository.
func (store *Store) Untrack(repositoryPath string) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, found := store.records[repositoryPath]; !found {
		return repoerrors.Wrap(repoerrors.OperationUntrack, repositoryPath, repoerrors.ErrUserInput, ErrNotTracked)
	}
	delete(store.records, repositoryPath)
	store.modified = true
	return nil
}

// Ignore excludes a tracked repository from default listings.
func (store *Store) Ignore(repositoryPath string) error {
	return store.setIgnore(repoerrors.OperationIgnore, repositoryPath, true, ErrAlreadyIgnored)
}

// Unignore restores an ignored repository to default listings.
func (store *Store) Unignore(repositoryPath string) error {
	return store.setIgnore(repoerrors.OperationUnignore, repositoryPath, false, ErrAlreadyUnignored)
}

func (store *Store) setIgnore(operation repoerrors.Operation, repositoryPath string, ignore bool, unchangedError error) error {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entry, found := store.records[repositoryPath]
	if !found {
		return repoerrors.Wrap(operation, repositoryPath, repoerrors.ErrUserInput, ErrNotTracked)
	}
	if entry.Ignore == ignore {
		return repoerrors.Wrap(operation, repositoryPath, repoerrors.ErrUserInput, unchangedError)
	}
	entry.Ignore = ignore
	store.records[repositoryPath] = entry
	store.modified = true
	return nil
}

// UpdateURL replaces the recorded origin URL. It returns the previous URL and whether it changed.
func (store *Store) UpdateURL(repositoryPath string, originURL string) (string, bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	entry, found := store.records[repositoryPath]
	if !found {
		return "", false, repoerrors.Wrap(repoerrors.OperationUpdate, repositoryPath, repoerrors.ErrUserInput, ErrNotTracked)
	}
	previousURL := entry.URL
	if previousURL == originURL {
		return previousURL, false, nil
	}
	entry.URL = originURL
	store.records[repositoryPath] = entry
	store.modified = true
	return previousURL, true, nil
}

// Save rewrites the whole store file. The new contents are written to a temporary file in
// the same directory and renamed over the original.
func (store *Store) Save() error {
	store.mutex.Lock()
	defer store.mutex.Unlock()

	encoded, encodeError := yaml.Marshal(document{Defaults: store.defaults, Repositories: store.records})
	if encodeError != nil {
		return repoerrors.Wrap(repoerrors.OperationStoreSave, store.filePath, repoerrors.ErrStoreUnavailable, encodeError)
	}

	directory := filepath.Dir(store.filePath)
	if mkdirError := os.MkdirAll(directory, storeDirectoryPermissionsConstant); mkdirError != nil {
		return repoerrors.Wrap(repoerrors.OperationStoreSave, store.filePath, repoerrors.ErrStoreUnavailable, mkdirError)
	}

	if writeError := writeFileAtomically(directory, store.filePath, encoded); writeError != nil {
		return repoerrors.Wrap(repoerrors.OperationStoreSave, store.filePath, repoerrors.ErrStoreUnavailable, writeError)
	}
	store.modified = false
	return nil
}

func writeFileAtomically(directory string, targetPath string, contents []byte) error {
	temporaryFile, createError := os.CreateTemp(directory, temporaryFilePatternConstant)
	if createError != nil {
		return createError
	}
	temporaryPath := temporaryFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(temporaryPath)
		}
	}()

	if _, writeError := temporaryFile.Write(contents); writeError != nil {
		_ = temporaryFile.Close()
		return writeError
	}
	if syncError := temporaryFile.Sync(); syncError != nil {
		_ = temporaryFile.Close()
		return syncError
	}
	if closeError := temporaryFile.Close(); closeError != nil {
		return closeError
	}
	if chmodError := os.Chmod(temporaryPath, storeFilePermissionsConstant); chmodError != nil {
		return chmodError
	}
	if renameError := os.Rename(temporaryPath, targetPath); renameError != nil {
		return renameError
	}
	committed = true
	return nil
}
