// Package snapshot persists the service's live state (bed layout, samples,
// devices, waste) as JSON documents on a blob store, and restores it on
// startup.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roadmap-automation/lh-manager-sub000/internal/blob"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/devices"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/samples"
	"github.com/roadmap-automation/lh-manager-sub000/pkg/waste"
)

// Document keys on the blob store.
const (
	KeyLayout  = "layout.json"
	KeySamples = "samples.json"
	KeyDevices = "devices.json"
	KeyWaste   = "waste.json"
)

// Manager reads and writes the state documents.
type Manager struct {
	store  blob.Store
	logger *slog.Logger
}

// NewManager wraps a blob store. A nil logger means slog.Default().
func NewManager(store blob.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, logger: logger}
}

func (m *Manager) save(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if _, err := m.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

// load decodes the document at key into v. Reports found=false when no
// snapshot exists yet.
func (m *Manager) load(ctx context.Context, key string, v any) (bool, error) {
	data, _, err := m.store.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

// SaveLayout writes the bed layout document.
func (m *Manager) SaveLayout(ctx context.Context, layout *bedlayout.LHBedLayout) error {
	return m.save(ctx, KeyLayout, layout)
}

// LoadLayout restores the bed layout, or returns the default production bed
// when no snapshot exists.
func (m *Manager) LoadLayout(ctx context.Context) (*bedlayout.LHBedLayout, error) {
	layout := &bedlayout.LHBedLayout{}
	found, err := m.load(ctx, KeyLayout, layout)
	if err != nil {
		return nil, err
	}
	if !found {
		m.logger.Info("no layout snapshot, starting from default bed")
		return bedlayout.DefaultLayout(), nil
	}
	return layout, nil
}

// SaveSamples writes the sample container document.
func (m *Manager) SaveSamples(ctx context.Context, container *samples.SampleContainer) error {
	return m.save(ctx, KeySamples, container)
}

// LoadSamples restores the sample container, or returns an empty one when no
// snapshot exists.
func (m *Manager) LoadSamples(ctx context.Context) (*samples.SampleContainer, error) {
	container := samples.NewSampleContainer()
	found, err := m.load(ctx, KeySamples, container)
	if err != nil {
		return nil, err
	}
	if !found {
		m.logger.Info("no samples snapshot, starting empty")
	}
	return container, nil
}

// SaveDevices writes the device catalog document.
func (m *Manager) SaveDevices(ctx context.Context, catalog *devices.Manager) error {
	return m.save(ctx, KeyDevices, catalog.List())
}

// LoadDevices restores the device catalog, or returns the default catalog
// when no snapshot exists.
func (m *Manager) LoadDevices(ctx context.Context) (*devices.Manager, error) {
	var list []devices.Device
	found, err := m.load(ctx, KeyDevices, &list)
	if err != nil {
		return nil, err
	}
	if !found || len(list) == 0 {
		m.logger.Info("no devices snapshot, using the default catalog")
		return devices.NewDefaultManager(), nil
	}
	catalog := devices.NewManager()
	for _, d := range list {
		catalog.Register(d)
	}
	return catalog, nil
}

// SaveWaste writes the waste layout document. Satisfies waste.Saver.
func (m *Manager) SaveWaste(ctx context.Context, layout *waste.WasteLayout) error {
	return m.save(ctx, KeyWaste, layout)
}

// LoadWaste restores the waste layout, or returns a fresh carboy when no
// snapshot exists.
func (m *Manager) LoadWaste(ctx context.Context) (*waste.WasteLayout, error) {
	layout := &waste.WasteLayout{}
	found, err := m.load(ctx, KeyWaste, layout)
	if err != nil {
		return nil, err
	}
	if !found {
		m.logger.Info("no waste snapshot, starting with a fresh carboy")
		return waste.NewWasteLayout(), nil
	}
	return layout, nil
}

var _ waste.Saver = (*Manager)(nil)
