package handlers

import (
	"net/http"

	"github.com/heliosquant/helios/internal/policyconfig"
	"github.com/heliosquant/helios/pkg/logger"
)

// PolicyHandler serves the active investor policy
type PolicyHandler struct {
	config *policyconfig.Config
	hash   string
	logger *logger.Logger
}

// NewPolicyHandler creates a new policy handler
func NewPolicyHandler(cfg *policyconfig.Config, hash string, log *logger.Logger) *PolicyHandler {
	return &PolicyHandler{
		config: cfg,
		hash:   hash,
		logger: log,
	}
}

// GetPolicy returns the loaded policy and its content hash
// GET /api/policy
func (h *PolicyHandler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"policy_id":   h.config.Meta.PolicyID,
		"description": h.config.Meta.Description,
		"hash":        h.hash,
		"policy":      h.config.Policy,
		"run":         h.config.Run,
	})
}
