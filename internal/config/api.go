package config

import (
	"fmt"
	"os"

	"github.com/JaimeStill/pulse/pkg/formatting"
	"github.com/JaimeStill/pulse/pkg/middleware"
	"github.com/JaimeStill/pulse/pkg/openapi"
	"github.com/JaimeStill/pulse/pkg/pagination"
)

const (
	EnvAPIBasePath    = "PULSE_API_BASE_PATH"
	EnvAPIMaxBodySize = "PULSE_API_MAX_BODY_SIZE"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "PULSE_CORS_ENABLED",
	Origins:          "PULSE_CORS_ORIGINS",
	AllowedMethods:   "PULSE_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "PULSE_CORS_ALLOWED_HEADERS",
	AllowCredentials: "PULSE_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "PULSE_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "PULSE_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "PULSE_PAGINATION_MAX_PAGE_SIZE",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "PULSE_OPENAPI_TITLE",
	Description: "PULSE_OPENAPI_DESCRIPTION",
}

// APIConfig holds API routing, request limits, CORS, pagination, and
// OpenAPI document settings.
type APIConfig struct {
	BasePath    string                `toml:"base_path"`
	MaxBodySize string                `toml:"max_body_size"`
	CORS        middleware.CORSConfig `toml:"cors"`
	Pagination  pagination.Config     `toml:"pagination"`
	OpenAPI     openapi.Config        `toml:"openapi"`
}

// MaxBodySizeBytes returns the request body cap for ingest endpoints.
func (c *APIConfig) MaxBodySizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxBodySize)
	if err != nil {
		return 1024 * 1024
	}
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if _, err := formatting.ParseBytes(c.MaxBodySize); err != nil {
		return fmt.Errorf("invalid max_body_size: %w", err)
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxBodySize != "" {
		c.MaxBodySize = overlay.MaxBodySize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxBodySize); v != "" {
		c.MaxBodySize = v
	}
}
