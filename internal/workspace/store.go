// Package workspace persists imported datasets and their analysis payloads.
// Each dataset lives in its own directory under the store root:
//
//	<root>/<id>/source.<ext>    copy of the imported file
//	<root>/<id>/dataset.json    metadata
//	<root>/<id>/analysis.json   latest analysis payload
package workspace

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
	"github.com/KaramelBytes/instadash-cli/internal/utils"
)

const (
	metaFileName     = "dataset.json"
	analysisFileName = "analysis.json"
	sourceBaseName   = "source"
)

// Store is a directory of datasets. It is safe for concurrent use.
type Store struct {
	root string
	mu   sync.Mutex
}

// Open returns a store rooted at dir, creating it if needed. A leading "~"
// is expanded.
func Open(dir string) (*Store, error) {
	root, err := utils.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(root); err != nil {
		return nil, fmt.Errorf("ensure workspace dir: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store directory.
func (s *Store) Root() string { return s.root }

// Import copies the file at path into the store and loads it. The copy is
// removed again if the file cannot be parsed.
func (s *Store) Import(path string, opt dataset.LoadOptions) (*Dataset, *dataset.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()
	return s.ImportReader(filepath.Base(path), f, opt)
}

// ImportReader stores r under a new id using name for display and for the
// file extension.
func (s *Store) ImportReader(name string, r io.Reader, opt dataset.LoadOptions) (*Dataset, *dataset.Table, error) {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return nil, nil, apperr.Inputf("file %q has no extension (expected csv, tsv or xlsx)", name)
	}
	id := uuid.NewString()
	dir := s.dir(id)
	if err := utils.EnsureDir(dir); err != nil {
		return nil, nil, fmt.Errorf("ensure dataset dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	src := sourceBaseName + ext
	out, err := os.Create(filepath.Join(dir, src))
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create source copy: %w", err)
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		cleanup()
		return nil, nil, fmt.Errorf("copy source: %w", err)
	}
	if err := out.Close(); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("close source copy: %w", err)
	}

	t, err := dataset.Load(filepath.Join(dir, src), opt)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	now := time.Now().UTC()
	d := &Dataset{
		ID:         id,
		Name:       filepath.Base(name),
		SourceFile: src,
		Rows:       t.Len(),
		Cols:       t.Width(),
		Columns:    t.Columns(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	d.setLoadOptions(opt)
	if err := s.save(d); err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Debug().Str("id", id).Str("name", d.Name).Int("rows", d.Rows).Msg("dataset imported")
	return d, t, nil
}

// Get returns the metadata of dataset id.
func (s *Store) Get(id string) (*Dataset, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	var d Dataset
	if err := utils.ReadJSON(filepath.Join(s.dir(id), metaFileName), &d); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("dataset " + id)
		}
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	return &d, nil
}

// List returns all datasets, newest first. Directories without readable
// metadata are skipped.
func (s *Store) List() ([]*Dataset, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read workspace: %w", err)
	}
	out := []*Dataset{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		d, err := s.Get(e.Name())
		if err != nil {
			log.Debug().Err(err).Str("dir", e.Name()).Msg("skipping workspace entry")
			continue
		}
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Delete removes dataset id and everything stored with it.
func (s *Store) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.RemoveAll(s.dir(id)); err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	return nil
}

// Table reloads the stored source file with the options used at import.
func (s *Store) Table(id string) (*dataset.Table, error) {
	d, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return dataset.Load(s.DataPath(d), d.LoadOptions())
}

// DataPath returns the path of d's stored source file.
func (s *Store) DataPath(d *Dataset) string { return filepath.Join(s.dir(d.ID), d.SourceFile) }

// SaveAnalysis stores a as the latest analysis of dataset id.
func (s *Store) SaveAnalysis(id string, a *analysis.Analysis) error {
	d, err := s.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := utils.WriteJSON(filepath.Join(s.dir(id), analysisFileName), a); err != nil {
		return fmt.Errorf("write analysis: %w", err)
	}
	at := a.GeneratedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	d.AnalyzedAt = &at
	d.RunID = a.RunID
	return s.saveLocked(d)
}

// LoadAnalysis returns the stored analysis of dataset id.
func (s *Store) LoadAnalysis(id string) (*analysis.Analysis, error) {
	if _, err := s.Get(id); err != nil {
		return nil, err
	}
	var a analysis.Analysis
	if err := utils.ReadJSON(filepath.Join(s.dir(id), analysisFileName), &a); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, apperr.NotFound("analysis for dataset " + id)
		}
		return nil, fmt.Errorf("read analysis: %w", err)
	}
	return &a, nil
}

func (s *Store) save(d *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(d)
}

func (s *Store) saveLocked(d *Dataset) error {
	d.UpdatedAt = time.Now().UTC()
	if err := utils.WriteJSON(filepath.Join(s.dir(d.ID), metaFileName), d); err != nil {
		return fmt.Errorf("write dataset metadata: %w", err)
	}
	return nil
}

func (s *Store) dir(id string) string { return filepath.Join(s.root, id) }

// checkID rejects anything that is not a uuid so ids cannot escape the root.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("dataset " + id)
	}
	return nil
}
