package external

import (
	"fmt"
	"log/slog"
	"net/http"

	"caseflow/internal/config"
	"caseflow/internal/types"
)

// ClientRegistry holds the external clients used by the composition roots.
type ClientRegistry struct {
	Notify    NotificationProvider
	CaseStore types.CaseStore
}

// NewClientRegistry builds real clients, or stubs when cfg.UseStubs reports
// true so the service can boot without credentials.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger) (*ClientRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.UseStubs() {
		logger.Info("initializing external clients in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		stubLogger := logger.With("mode", "stub")
		return &ClientRegistry{
			Notify:    NewStubNotificationProvider(stubLogger),
			CaseStore: NewMemoryCaseStore(stubLogger),
		}, nil
	}

	notify, err := NewNotifyClient(&http.Client{Timeout: cfg.Notify.Timeout}, NotifyClientConfig{
		APIKey:  cfg.Notify.APIKey.Unmask(),
		BaseURL: cfg.Notify.BaseURL,
		Logger:  logger.With("client", "notify"),
	})
	if err != nil {
		return nil, fmt.Errorf("notify client: %w", err)
	}

	return &ClientRegistry{
		Notify: notify,
		CaseStore: NewCaseStoreClient(
			&http.Client{Timeout: cfg.CaseStore.Timeout},
			cfg.CaseStore.BaseURL,
			cfg.CaseStore.ServiceToken.Unmask(),
		),
	}, nil
}
