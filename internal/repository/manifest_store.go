package repository

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"

	"gopkg.in/yaml.v3"
)

// ManifestStore reads and writes YAML manifests beside the candle files.
type ManifestStore struct {
	root string
}

func NewManifestStore(root string) *ManifestStore {
	return &ManifestStore{root: root}
}

func (s *ManifestStore) SymbolPath(base string, tf drepo.Timeframe) string {
	return filepath.Join(s.root, strings.ToUpper(base), fmt.Sprintf("manifest_%s.yaml", tf))
}

func (s *ManifestStore) MonthPath(base string, tf drepo.Timeframe, month time.Time) string {
	return filepath.Join(s.root, strings.ToUpper(base), string(tf), month.Format("2006"), month.Format("01"),
		fmt.Sprintf("manifest_%s_%s.yaml", tf, month.Format("2006-01")))
}

func (s *ManifestStore) YearPath(base string, tf drepo.Timeframe, year int) string {
	return filepath.Join(s.root, strings.ToUpper(base), string(tf), fmt.Sprintf("manifest_year_%d.yaml", year))
}

// ReadSymbol returns drepo.ErrNoData when no manifest exists.
func (s *ManifestStore) ReadSymbol(base string, tf drepo.Timeframe) (*models.SymbolManifest, error) {
	var m models.SymbolManifest
	if err := readYAML(s.SymbolPath(base, tf), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *ManifestStore) WriteSymbol(base string, tf drepo.Timeframe, m *models.SymbolManifest) error {
	return writeYAML(s.SymbolPath(base, tf), m)
}

func (s *ManifestStore) ReadMonth(base string, tf drepo.Timeframe, month time.Time) (*models.SymbolManifest, error) {
	var m models.SymbolManifest
	if err := readYAML(s.MonthPath(base, tf, month), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *ManifestStore) WriteMonth(base string, tf drepo.Timeframe, month time.Time, m *models.SymbolManifest) error {
	return writeYAML(s.MonthPath(base, tf, month), m)
}

func (s *ManifestStore) ReadYear(base string, tf drepo.Timeframe, year int) (*models.YearManifest, error) {
	var m models.YearManifest
	if err := readYAML(s.YearPath(base, tf, year), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *ManifestStore) WriteYear(base string, tf drepo.Timeframe, m *models.YearManifest) error {
	return writeYAML(s.YearPath(base, tf, m.Year), m)
}

// WriteFetch stores a run manifest under root, e.g. fetch_manifest_1h_20240101_120000.yaml.
func (s *ManifestStore) WriteFetch(m *models.FetchManifest) (string, error) {
	path := filepath.Join(s.root, fmt.Sprintf("fetch_manifest_%s_%s.yaml", m.Timeframe, m.FetchTimestamp))
	return path, writeYAML(path, m)
}

func readYAML(path string, dest interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, drepo.ErrNoData)
		}
		return err
	}
	if err := yaml.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeYAML(path string, v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return writeFileAtomic(path, b)
}

var _ drepo.ManifestStore = (*ManifestStore)(nil)
