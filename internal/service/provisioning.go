package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/teresa-solution/agency-hub-service/internal/functions"
	"github.com/teresa-solution/agency-hub-service/internal/model"
	"github.com/teresa-solution/agency-hub-service/internal/monitoring"
)

// FunctionInvoker calls a remote business function by name with a JSON-like body
type FunctionInvoker interface {
	Invoke(ctx context.Context, name string, body map[string]any) (map[string]any, error)
}

// AdminAccount is the admin to create alongside a new agency
type AdminAccount struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required,max=120"`
}

// ProvisionResult reports the outcome of provisioning an agency admin
type ProvisionResult struct {
	Provisioned bool   `json:"provisioned"`
	ResetLink   string `json:"reset_link,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Provisioner creates the admin account of a newly created agency through
// the create-agency-admin function, logging each step
type Provisioner struct {
	functions FunctionInvoker
}

func NewProvisioner(fn FunctionInvoker) *Provisioner {
	return &Provisioner{functions: fn}
}

// Provision never fails the agency creation: a failure is reported in the
// result, logged, alerted and counted, and can be retried with ProvisionAdmin.
func (p *Provisioner) Provision(ctx context.Context, agency *model.Agency, admin AdminAccount) ProvisionResult {
	start := time.Now()
	logger := log.With().Str("agency_id", agency.ID.String()).Str("step", "admin_account").Logger()
	logger.Info().Str("status", "pending").Msg("Starting agency provisioning")

	resp, err := p.functions.Invoke(ctx, functions.CreateAgencyAdmin, map[string]any{
		"agency_id":   agency.ID.String(),
		"agency_name": agency.Name,
		"admin_email": admin.Email,
		"admin_name":  admin.Name,
	})
	if err == nil {
		if ok, _ := resp["success"].(bool); !ok {
			err = fmt.Errorf("create-agency-admin: %v", resp["error"])
		}
	}
	monitoring.ProvisioningDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		logger.Error().Err(err).Str("status", "failed").Msg("Agency provisioning failed")
		monitoring.AgenciesProvisioned.WithLabelValues("failed").Inc()
		monitoring.Alert("agency admin provisioning failed", map[string]string{
			"agency_id": agency.ID.String(),
			"error":     err.Error(),
		})
		return ProvisionResult{Error: err.Error()}
	}

	link, _ := resp["reset_link"].(string)
	logger.Info().Str("status", "success").Msg("Agency provisioning finished")
	monitoring.AgenciesProvisioned.WithLabelValues("success").Inc()
	return ProvisionResult{Provisioned: true, ResetLink: link}
}

// StartCheckout asks the create-checkout-session function for a payment URL
func (p *Provisioner) StartCheckout(ctx context.Context, agencyID uuid.UUID, planKey string) (string, error) {
	resp, err := p.functions.Invoke(ctx, functions.CreateCheckoutSession, map[string]any{
		"agency_id": agencyID.String(),
		"plan_key":  planKey,
	})
	if err != nil {
		log.Error().Err(err).Str("agency_id", agencyID.String()).Str("plan_key", planKey).Msg("Failed to create checkout session")
		return "", err
	}
	url, _ := resp["url"].(string)
	if url == "" {
		return "", fmt.Errorf("create-checkout-session returned no url")
	}
	return url, nil
}
