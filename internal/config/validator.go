package config

import (
	"strings"

	"github.com/HikaruEgashira/pleno-audit-sub009/internal/common"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// ValidateConfig performs validation on the GlobalConfig structure.
func ValidateConfig(cfg *GlobalConfig) error {
	validate := validator.New()

	_ = validate.RegisterValidation("loglevel", func(fl validator.FieldLevel) bool {
		level := strings.ToLower(fl.Field().String())
		if level == "" {
			return true
		}
		switch level {
		case "trace", "debug", "info", "warn", "error", "fatal", "panic":
			return true
		}
		return false
	})

	_ = validate.RegisterValidation("logformat", func(fl validator.FieldLevel) bool {
		format := strings.ToLower(fl.Field().String())
		if format == "" {
			return true
		}
		switch format {
		case "json", "console", "text":
			return true
		}
		return false
	})

	if err := validate.Struct(cfg); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			first := validationErrors[0]
			return common.NewValidationError(first.Namespace(), first.Value(), "failed '"+first.Tag()+"' validation")
		}
		return common.WrapError(err, "config validation failed")
	}

	if cfg.DetectorConfig.LateNightStartHour == cfg.DetectorConfig.LateNightEndHour {
		return common.NewValidationError("late_night_start_hour", cfg.DetectorConfig.LateNightStartHour,
			"late-night start and end hours must differ")
	}

	return nil
}

// MustValidate validates and logs fatally on error. Intended for use at
// process start only.
func MustValidate(cfg *GlobalConfig, logger zerolog.Logger) {
	if err := ValidateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("Configuration validation failed")
	}
}
