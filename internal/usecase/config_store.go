package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"FinScreen/internal/domain/models"
	"FinScreen/pkg/logger"
	"FinScreen/pkg/storage"
)

const configKeyPrefix = "screener_"

// ConfigAPI is the backend surface the config store needs.
type ConfigAPI interface {
	Config(ctx context.Context) (*models.ServerConfig, error)
	SaveConfig(ctx context.Context, cfg models.ScreenerConfig) error
}

// ConfigStore holds the screener form. Every field is mirrored to the
// key/value store under its own key the moment it changes, so the form
// survives restarts field by field.
type ConfigStore struct {
	mu        sync.RWMutex
	cfg       models.ScreenerConfig
	persisted map[models.ConfigField]bool
	kv        storage.Store
	api       ConfigAPI
	log       *logger.Logger
}

func NewConfigStore(kv storage.Store, api ConfigAPI, l *logger.Logger) *ConfigStore {
	if l == nil {
		l = logger.Nop()
	}
	return &ConfigStore{
		cfg:       models.DefaultScreenerConfig(),
		persisted: make(map[models.ConfigField]bool),
		kv:        kv,
		api:       api,
		log:       l.With(logger.String("component", "config")),
	}
}

func configKey(f models.ConfigField) string {
	return configKeyPrefix + string(f)
}

// Load seeds the form from persisted values over the offline defaults.
// Values that no longer decode are skipped.
func (s *ConfigStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, f := range models.ConfigFields {
		raw, err := s.kv.Get(ctx, configKey(f))
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
		next := s.cfg.Clone()
		if err := decodeField(&next, f, []byte(raw)); err != nil {
			s.log.Warn("skip undecodable config value", logger.String("field", string(f)), logger.Error(err))
			continue
		}
		s.cfg = next
		s.persisted[f] = true
	}
	s.cfg.Features = prune(s.cfg.Features, s.cfg.AvailableFeatures)
	return nil
}

// LoadAvailableFeatures fetches the feature catalog and server defaults.
// Server defaults only fill fields the user never set. When the backend is
// unreachable the built-in catalog is used and the error is only logged.
// Selected features are always pruned to the catalog.
func (s *ConfigStore) LoadAvailableFeatures(ctx context.Context) error {
	sc, err := s.api.Config(ctx)
	if err != nil {
		s.log.Warn("fetch server config, using built-in feature catalog", logger.Error(err))
		sc = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	catalog := models.DefaultFeatureCatalog
	if sc != nil && len(sc.AvailableFeatures) > 0 {
		catalog = sc.AvailableFeatures
	}
	next := s.cfg.Clone()
	next.AvailableFeatures = append([]string(nil), catalog...)
	if sc != nil {
		s.applyServerDefaults(&next, sc)
	}
	next.Features = prune(next.Features, next.AvailableFeatures)

	if err := s.persistLocked(ctx, next, models.FieldAvailableFeatures); err != nil {
		return err
	}
	if s.persisted[models.FieldFeatures] && len(next.Features) != len(s.cfg.Features) {
		if err := s.persistLocked(ctx, next, models.FieldFeatures); err != nil {
			return err
		}
	}
	s.cfg = next
	return nil
}

func (s *ConfigStore) applyServerDefaults(cfg *models.ScreenerConfig, sc *models.ServerConfig) {
	unset := func(f models.ConfigField) bool { return !s.persisted[f] }

	if unset(models.FieldFeatures) && len(sc.DefaultFeatures) > 0 {
		cfg.Features = append([]string(nil), sc.DefaultFeatures...)
	}
	p := sc.DefaultParams
	if p.Period != nil && unset(models.FieldPeriod) {
		cfg.Period = *p.Period
	}
	if p.Interval != nil && unset(models.FieldInterval) {
		cfg.Interval = *p.Interval
	}
	if p.WindowSize != nil && unset(models.FieldWindowSize) {
		cfg.WindowSize = *p.WindowSize
	}
	if p.MaxStates != nil && unset(models.FieldMaxStates) {
		cfg.MaxStates = *p.MaxStates
	}
	if p.TrainWindow != nil && unset(models.FieldTrainWindow) {
		cfg.TrainWindow = *p.TrainWindow
	}
	if p.UseRollingWindow != nil && unset(models.FieldUseRollingWindow) {
		cfg.UseRollingWindow = *p.UseRollingWindow
	}
	if p.Slippage != nil && unset(models.FieldSlippage) {
		cfg.Slippage = *p.Slippage
	}
}

// SetField updates one field and persists it before returning. value may
// be the typed field value or anything that JSON-encodes to it. Values are
// not range-checked here; that happens when a run is frozen.
func (s *ConfigStore) SetField(ctx context.Context, f models.ConfigField, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return ErrInvalidValue.Derivef("%s: %v", f, err).WithError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Clone()
	if err := decodeField(&next, f, raw); err != nil {
		return err
	}

	changed := []models.ConfigField{f}
	before := len(next.Features)
	next.Features = prune(next.Features, next.AvailableFeatures)
	if f == models.FieldAvailableFeatures && len(next.Features) != before {
		changed = append(changed, models.FieldFeatures)
	}

	for _, cf := range changed {
		if err := s.persistLocked(ctx, next, cf); err != nil {
			return err
		}
		s.persisted[cf] = true
	}
	s.cfg = next
	return nil
}

// Snapshot returns a copy of the current form.
func (s *ConfigStore) Snapshot() models.ScreenerConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// SaveToServer pushes the current form to the backend.
func (s *ConfigStore) SaveToServer(ctx context.Context) error {
	return s.api.SaveConfig(ctx, s.Snapshot())
}

func (s *ConfigStore) persistLocked(ctx context.Context, cfg models.ScreenerConfig, f models.ConfigField) error {
	v, _ := fieldPointer(&cfg, f)
	if err := storage.SetJSON(ctx, s.kv, configKey(f), v); err != nil {
		return fmt.Errorf("persist %s: %w", f, err)
	}
	return nil
}

func fieldPointer(cfg *models.ScreenerConfig, f models.ConfigField) (interface{}, bool) {
	switch f {
	case models.FieldInputMethod:
		return &cfg.InputMethod, true
	case models.FieldSelectedIndex:
		return &cfg.SelectedIndex, true
	case models.FieldSymbolsText:
		return &cfg.SymbolsText, true
	case models.FieldExchangeSuffix:
		return &cfg.ExchangeSuffix, true
	case models.FieldPeriod:
		return &cfg.Period, true
	case models.FieldInterval:
		return &cfg.Interval, true
	case models.FieldFeatures:
		return &cfg.Features, true
	case models.FieldWindowSize:
		return &cfg.WindowSize, true
	case models.FieldMaxStates:
		return &cfg.MaxStates, true
	case models.FieldTrainWindow:
		return &cfg.TrainWindow, true
	case models.FieldUseRollingWindow:
		return &cfg.UseRollingWindow, true
	case models.FieldSlippage:
		return &cfg.Slippage, true
	case models.FieldAvailableFeatures:
		return &cfg.AvailableFeatures, true
	}
	return nil, false
}

func decodeField(cfg *models.ScreenerConfig, f models.ConfigField, raw []byte) error {
	ptr, ok := fieldPointer(cfg, f)
	if !ok {
		return ErrUnknownField.Derivef("unknown configuration field %q", f)
	}
	if err := json.Unmarshal(raw, ptr); err != nil {
		return ErrInvalidValue.Derivef("%s: %v", f, err).WithError(err)
	}
	return nil
}

// prune keeps the selected features present in catalog, in selection order.
func prune(selected, catalog []string) []string {
	known := make(map[string]struct{}, len(catalog))
	for _, c := range catalog {
		known[c] = struct{}{}
	}
	out := make([]string, 0, len(selected))
	for _, f := range selected {
		if _, ok := known[f]; ok {
			out = append(out, f)
		}
	}
	return out
}
