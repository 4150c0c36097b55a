package frameworkd

import (
	"context"
	"log/slog"

	"wellbeing/internal/binder"
	"wellbeing/internal/logging"
)

// Service implements the framework protocol on top of a Store.
type Service struct {
	store   *Store
	enabled bool
	version int
	logger  *slog.Logger
}

// NewService builds the provider served over the framework socket.
func NewService(store *Store, enabled bool, version int, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		enabled: enabled,
		version: version,
		logger:  logging.NewComponentLogger(logger, "frameworkd"),
	}
}

// Bind accepts a client unless the framework is disabled, and records it.
func (s *Service) Bind(ctx context.Context, req binder.BindRequest) (binder.BindResponse, error) {
	if !s.enabled {
		s.logger.Info("bind declined; framework disabled", logging.String("client_id", req.ClientID))
		return binder.BindResponse{Available: false, Reason: "framework disabled"}, nil
	}
	if err := s.store.RecordClient(ctx, req.ClientID, req.IncludeCapabilities); err != nil {
		logging.WarnWithContext(s.logger, "failed to record client", "frameworkd_client_record_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "client history incomplete"),
			logging.String(logging.FieldErrorHint, "check the settings database"))
	}
	s.logger.Info("client bound",
		logging.String("client_id", req.ClientID),
		logging.Bool("include_capabilities", req.IncludeCapabilities))
	return binder.BindResponse{Available: true}, nil
}

// VersionCode reports the configured protocol version.
func (s *Service) VersionCode() int {
	return s.version
}

// SetAirplaneMode persists the airplane mode setting.
func (s *Service) SetAirplaneMode(ctx context.Context, enabled bool) error {
	if err := s.store.SetBool(ctx, settingAirplaneMode, enabled); err != nil {
		return err
	}
	s.logger.Info("airplane mode updated", logging.Bool("enabled", enabled))
	return nil
}

// AirplaneMode reads the persisted setting; it defaults to off.
func (s *Service) AirplaneMode(ctx context.Context) (bool, error) {
	return s.store.Bool(ctx, settingAirplaneMode, false)
}
