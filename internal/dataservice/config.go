package dataservice

import (
	"context"
	"errors"
	"strings"

	"github.com/relaydb/jobcore/internal/codec"
	"github.com/relaydb/jobcore/internal/domain"
	"github.com/relaydb/jobcore/internal/store"
)

// SaveConfig is grounded on original_source/data_service.py's
// DataServiceConfig.save_config (SPEC_FULL.md §4.4 restores the Config
// entity the Python source's `db = self._db[Job]` line hints was meant to
// be `self._db[Config]` — fixed here rather than reproduced).
func (ds *DataService) SaveConfig(ctx context.Context, cfg domain.Config) (domain.Config, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return domain.Config{}, domain.Invalid("Config", errs)
	}
	configs, err := ds.ListConfigs(ctx)
	if err != nil {
		return domain.Config{}, err
	}
	for _, other := range configs {
		if other.ID != cfg.ID && other.SystemID == cfg.SystemID &&
			strings.TrimSpace(other.Name) == strings.TrimSpace(cfg.Name) {
			return domain.Config{}, domain.Invalid("Config", []error{errors.New("name: another config with this name already exists")})
		}
	}
	row, err := codec.Encode(cfg, nil)
	if err != nil {
		return domain.Config{}, err
	}
	saved, err := upsertRow(ctx, ds.configs, cfg.ID, cfg.Ver, row)
	if err != nil {
		return domain.Config{}, err
	}
	out, err := codec.Decode[domain.Config](ds.codec, saved)
	if err != nil {
		return domain.Config{}, err
	}
	out.ID, out.Ver = saved.ID, saved.Ver
	return out, nil
}

// DeleteConfig is grounded on DataServiceConfig.delete_config.
func (ds *DataService) DeleteConfig(ctx context.Context, id string, ver int64) error {
	noop, err := ds.deleteCheckNotExist(ctx, ds.configs, "Config", id)
	if err != nil || noop {
		return err
	}
	return ds.configs.Delete(ctx, nil, []store.IDVer{{ID: id, Ver: ver}})
}

// ListConfigs is grounded on DataServiceConfig.get_configs.
func (ds *DataService) ListConfigs(ctx context.Context) ([]domain.Config, error) {
	rows, err := ds.configs.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Config, 0, len(rows))
	for _, r := range rows {
		c, err := codec.Decode[domain.Config](ds.codec, r)
		if err != nil {
			return nil, err
		}
		c.ID, c.Ver = r.ID, r.Ver
		out = append(out, c)
	}
	return out, nil
}

// GetSystem returns the lone System row, or store.KindNotFound if bootstrap
// has not yet run.
func (ds *DataService) GetSystem(ctx context.Context) (domain.System, error) {
	rows, err := ds.systems.SelectAll(ctx, nil, store.ColAll)
	if err != nil {
		return domain.System{}, err
	}
	if len(rows) == 0 {
		return domain.System{}, &store.Error{Kind: store.KindNotFound, Table: "systems", ID: "*"}
	}
	s, err := codec.Decode[domain.System](ds.codec, rows[0])
	if err != nil {
		return domain.System{}, err
	}
	s.ID, s.Ver = rows[0].ID, rows[0].Ver
	return s, nil
}

// SaveSystem persists the System row (used once, by bootstrap).
func (ds *DataService) SaveSystem(ctx context.Context, sys domain.System) (domain.System, error) {
	if errs := sys.Validate(); len(errs) > 0 {
		return domain.System{}, domain.Invalid("System", errs)
	}
	row, err := codec.Encode(sys, nil)
	if err != nil {
		return domain.System{}, err
	}
	saved, err := upsertRow(ctx, ds.systems, sys.ID, sys.Ver, row)
	if err != nil {
		return domain.System{}, err
	}
	out, err := codec.Decode[domain.System](ds.codec, saved)
	if err != nil {
		return domain.System{}, err
	}
	out.ID, out.Ver = saved.ID, saved.Ver
	return out, nil
}
