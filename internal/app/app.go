// Package app builds the long-lived components shared by the server and the CLI from a
// configuration.
package app

import (
	"fmt"

	"github.com/a3tai/mcp-pdf-automap/internal/automap"
	"github.com/a3tai/mcp-pdf-automap/internal/config"
	"github.com/a3tai/mcp-pdf-automap/internal/store"
)

// NewMapper returns the mapper selected by cfg.Mapper
func NewMapper(cfg *config.Config) (automap.Mapper, error) {
	switch cfg.Mapper {
	case config.MapperRules:
		return automap.NewRuleMapper(cfg.IsDebug()), nil
	case config.MapperRemote:
		if err := cfg.ValidateMapper(); err != nil {
			return nil, err
		}
		return automap.NewRemoteMapper(cfg.APIKey,
			automap.WithModel(cfg.Model),
			automap.WithMaxTokens(cfg.MaxTokens),
			automap.WithEndpoint(cfg.APIURL),
			automap.WithDebug(cfg.IsDebug()),
		), nil
	default:
		return nil, fmt.Errorf("unknown mapper %q", cfg.Mapper)
	}
}

// OpenTemplates opens the template store, or returns nil when templates are disabled
func OpenTemplates(cfg *config.Config) (*store.Store, error) {
	if !cfg.TemplatesEnabled() {
		return nil, nil
	}
	s, err := store.Open(cfg.DBPath, cfg.IsDebug())
	if err != nil {
		return nil, err
	}
	return s, nil
}
