package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// PresetService reads presets and switches the live session between them.
type PresetService struct {
	presets   domain.PresetStore
	hidden    domain.HiddenItemStore
	dashboard *Dashboard
	logger    *slog.Logger
}

// NewPresetService creates a PresetService.
func NewPresetService(presets domain.PresetStore, hidden domain.HiddenItemStore, dashboard *Dashboard, logger *slog.Logger) *PresetService {
	return &PresetService{
		presets:   presets,
		hidden:    hidden,
		dashboard: dashboard,
		logger:    logger.With(slog.String("component", "preset_service")),
	}
}

// List returns presets, optionally only the active ones.
func (s *PresetService) List(ctx context.Context, activeOnly bool) ([]domain.Preset, error) {
	presets, err := s.presets.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("service: list presets: %w", err)
	}
	return presets, nil
}

// Get returns one preset.
func (s *PresetService) Get(ctx context.Context, id int64) (domain.Preset, error) {
	p, err := s.presets.Get(ctx, id)
	if err != nil {
		return domain.Preset{}, fmt.Errorf("service: get preset %d: %w", id, err)
	}
	return p, nil
}

// HiddenItems returns the unexpired hide journal of a preset.
func (s *PresetService) HiddenItems(ctx context.Context, id int64) ([]domain.HiddenItem, error) {
	items, err := s.hidden.ListActive(ctx, id, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("service: hidden items for preset %d: %w", id, err)
	}
	return items, nil
}

// Select loads a preset and makes it the live session.
func (s *PresetService) Select(ctx context.Context, id int64) (domain.Preset, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return domain.Preset{}, err
	}
	if err := s.dashboard.Select(p); err != nil {
		return domain.Preset{}, err
	}
	s.logger.InfoContext(ctx, "preset selected",
		slog.Int64("preset_id", p.ID),
		slog.String("name", p.Name),
		slog.String("after_trade", string(p.AfterTrade)),
	)
	return p, nil
}

// Clear stops the live session.
func (s *PresetService) Clear(ctx context.Context) {
	s.dashboard.Clear()
	s.logger.InfoContext(ctx, "preset cleared")
}
