// Package api — configuration inspection endpoint.
package api

import (
	"net/http"

	"github.com/quantfray/buywrite/internal/backtest"
	"github.com/quantfray/buywrite/internal/config"
)

// ConfigResponse is the JSON envelope returned by GET /api/v1/config.
// DefaultParams shows the backtest section as the engine will actually run
// it, after clamping.
type ConfigResponse struct {
	Config        *config.Config  `json:"config"`
	DefaultParams backtest.Params `json:"default_params"`
}

// handleGetConfig returns the running configuration. The server config is
// deployment-owned; there is no update endpoint.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ConfigResponse{
			Config:        s.cfg,
			DefaultParams: s.cfg.Backtest.Params().Normalized(),
		},
	})
}
