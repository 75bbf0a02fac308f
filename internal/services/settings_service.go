package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"minimarket/internal/apperrors"
	"minimarket/internal/models"
	"minimarket/internal/repositories"
)

// AppConfigPatch carries a partial storefront settings update.
type AppConfigPatch struct {
	AppName         *string `json:"app_name" validate:"omitempty,min=1,max=255"`
	AppDescription  *string `json:"app_description" validate:"omitempty,max=2000"`
	Theme           *string `json:"theme" validate:"omitempty,oneof=blue green purple orange rose"`
	WhatsappNumber  *string `json:"whatsapp_number" validate:"omitempty,max=20"`
	BusinessHours   *string `json:"business_hours" validate:"omitempty,max=100"`
	BusinessAddress *string `json:"business_address" validate:"omitempty,max=500"`
	// An empty string clears the logo.
	LogoURL *string `json:"logo_url" validate:"omitempty,max=500"`
}

// AppConfigService reads and updates the storefront settings.
type AppConfigService struct {
	repo   repositories.AppConfigRepository
	events notifier
}

func NewAppConfigService(repo repositories.AppConfigRepository, pub EventPublisher, log *slog.Logger) *AppConfigService {
	return &AppConfigService{repo: repo, events: notifier{pub: pub, log: log}}
}

func (s *AppConfigService) Get(ctx context.Context) (*models.AppConfig, error) {
	return s.EnsureDefault(ctx)
}

// EnsureDefault returns the stored settings, creating the default record when
// none exists.
func (s *AppConfigService) EnsureDefault(ctx context.Context) (*models.AppConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if !errors.Is(err, apperrors.ErrNotFound) {
		return cfg, err
	}
	def := models.DefaultAppConfig()
	if err := s.repo.Save(ctx, &def); err != nil {
		return nil, err
	}
	s.events.logger().Info("created default app config")
	return &def, nil
}

// Update applies patch to the stored settings.
func (s *AppConfigService) Update(ctx context.Context, patch AppConfigPatch) (*models.AppConfig, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}
	if patch.LogoURL != nil && *patch.LogoURL != "" {
		if err := validate.Var(*patch.LogoURL, "http_url"); err != nil {
			return nil, apperrors.Validation("logo_url must be an http or https URL",
				map[string]string{"logo_url": "http_url"})
		}
	}

	cfg, err := s.EnsureDefault(ctx)
	if err != nil {
		return nil, err
	}
	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&cfg.AppName, patch.AppName)
	apply(&cfg.AppDescription, patch.AppDescription)
	apply(&cfg.Theme, patch.Theme)
	apply(&cfg.WhatsappNumber, patch.WhatsappNumber)
	apply(&cfg.BusinessHours, patch.BusinessHours)
	apply(&cfg.BusinessAddress, patch.BusinessAddress)
	if patch.LogoURL != nil {
		if *patch.LogoURL == "" {
			cfg.LogoURL = nil
		} else {
			logo := *patch.LogoURL
			cfg.LogoURL = &logo
		}
	}

	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, err
	}
	s.events.emit(ctx, EventAppConfigUpdated, strconv.FormatUint(uint64(cfg.ID), 10))
	return cfg, nil
}

// FeaturedService reads and replaces the curated product lists.
type FeaturedService struct {
	repo   repositories.FeaturedRepository
	events notifier
}

func NewFeaturedService(repo repositories.FeaturedRepository, pub EventPublisher, log *slog.Logger) *FeaturedService {
	return &FeaturedService{repo: repo, events: notifier{pub: pub, log: log}}
}

func (s *FeaturedService) Get(ctx context.Context) (*models.FeaturedProducts, error) {
	featured, err := s.EnsureDefault(ctx)
	if err != nil {
		return nil, err
	}
	if featured.Popular == nil {
		featured.Popular = []json.RawMessage{}
	}
	if featured.OnSale == nil {
		featured.OnSale = []json.RawMessage{}
	}
	return featured, nil
}

// EnsureDefault returns the stored lists, creating an empty record when none
// exists.
func (s *FeaturedService) EnsureDefault(ctx context.Context) (*models.FeaturedProducts, error) {
	featured, err := s.repo.Get(ctx)
	if !errors.Is(err, apperrors.ErrNotFound) {
		return featured, err
	}
	featured = &models.FeaturedProducts{Popular: []json.RawMessage{}, OnSale: []json.RawMessage{}}
	if err := s.repo.Save(ctx, featured); err != nil {
		return nil, err
	}
	return featured, nil
}

// Save replaces both lists. Both must be JSON arrays; items are kept as given.
func (s *FeaturedService) Save(ctx context.Context, popular, onSale json.RawMessage) (*models.FeaturedProducts, error) {
	popularItems, okPopular := decodeArray(popular)
	onSaleItems, okOnSale := decodeArray(onSale)
	if !okPopular || !okOnSale {
		return nil, apperrors.Validation("popular and onSale must be arrays", map[string]string{
			"popular": "array",
			"onSale":  "array",
		})
	}

	featured, err := s.EnsureDefault(ctx)
	if err != nil {
		return nil, err
	}
	featured.Popular = popularItems
	featured.OnSale = onSaleItems
	if err := s.repo.Save(ctx, featured); err != nil {
		return nil, err
	}
	s.events.emit(ctx, EventFeaturedUpdated, strconv.FormatUint(uint64(featured.ID), 10))
	return featured, nil
}

func decodeArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || items == nil {
		return nil, false
	}
	return items, true
}
