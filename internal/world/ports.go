package world

import (
	"mke2e/internal/adapters/rest"
	"mke2e/internal/adapters/web"
	"mke2e/internal/config"
	"mke2e/internal/session"
	"mke2e/pkg/logging"
)

// NewAPIClient builds the HTTP client for the configured API.
func NewAPIClient(cfg config.Config, logger *logging.Logger) *rest.Client {
	return rest.NewClient(rest.Options{
		BaseURL:           cfg.Target.APIBaseURL,
		RequestsPerSecond: cfg.Target.RequestsPerSecond,
		Retries:           cfg.Target.HTTPRetries,
		Logger:            logger,
	})
}

// DefaultPorts wires the playwright page objects for each session and one
// API client shared by every scenario.
func DefaultPorts(cfg config.Config, api *rest.Client, logger *logging.Logger) PortsFactory {
	opts := web.Options{
		BaseURL:       cfg.Target.BaseURL,
		ActionTimeout: cfg.Browser.ActionTimeout,
		Logger:        logger,
	}
	return func(s *session.Session) Ports {
		p := Ports{
			AccountAPI:  api.Accounts(),
			CategoryAPI: api.Categories(),
		}
		if s != nil && s.Page != nil {
			p.AccountUI = web.NewAccountPage(s.Page, opts)
			p.CategoryUI = web.NewCategoryPage(s.Page, opts)
		}
		return p
	}
}
