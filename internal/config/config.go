package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tournevent/dispatch/pkg/shiplogic"
)

// Config holds all configuration for the service.
type Config struct {
	// Server
	Port     int    `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Carrier
	ShiplogicAPIKey        string `envconfig:"SHIPLOGIC_API_KEY"`
	ShiplogicBaseURL       string `envconfig:"SHIPLOGIC_BASE_URL" default:"https://api.shiplogic.com/v2"`
	ShiplogicSandboxURL    string `envconfig:"SHIPLOGIC_SANDBOX_URL" default:"https://api.sandbox.shiplogic.com/v2"`
	ShiplogicSandbox       bool   `envconfig:"SHIPLOGIC_SANDBOX" default:"false"`
	ShiplogicUseMock       bool   `envconfig:"SHIPLOGIC_USE_MOCK" default:"false"`
	ShiplogicWebhookSecret string `envconfig:"SHIPLOGIC_WEBHOOK_SECRET"`

	// Rate policy
	ShippingMarkupPercent float64 `envconfig:"SHIPPING_MARKUP_PERCENT" default:"0"`
	FreeShippingThreshold float64 `envconfig:"FREE_SHIPPING_THRESHOLD" default:"0"`
	DefaultServiceLevel   string  `envconfig:"DEFAULT_SERVICE_LEVEL" default:"ECO"`

	// Collection origin (the store's warehouse)
	CollectionCompany       string  `envconfig:"COLLECTION_COMPANY"`
	CollectionStreetAddress string  `envconfig:"COLLECTION_STREET_ADDRESS"`
	CollectionLocalArea     string  `envconfig:"COLLECTION_LOCAL_AREA"`
	CollectionCity          string  `envconfig:"COLLECTION_CITY"`
	CollectionZone          string  `envconfig:"COLLECTION_ZONE"`
	CollectionPostalCode    string  `envconfig:"COLLECTION_POSTAL_CODE"`
	CollectionCountry       string  `envconfig:"COLLECTION_COUNTRY" default:"ZA"`
	CollectionLat           float64 `envconfig:"COLLECTION_LAT"`
	CollectionLng           float64 `envconfig:"COLLECTION_LNG"`
	CollectionContactName   string  `envconfig:"COLLECTION_CONTACT_NAME"`
	CollectionContactPhone  string  `envconfig:"COLLECTION_CONTACT_PHONE"`
	CollectionContactEmail  string  `envconfig:"COLLECTION_CONTACT_EMAIL"`

	// Storage; empty falls back to the in-memory order store
	DatabaseURL string `envconfig:"DATABASE_URL"`

	// Telemetry
	OTELEnabled  bool   `envconfig:"OTEL_ENABLED" default:"true"`
	OTELEndpoint string `envconfig:"OTEL_ENDPOINT" default:"http://jaeger-collector.observability.svc.cluster.local:4318"`
	ServiceName  string `envconfig:"SERVICE_NAME" default:"tournevent-dispatch"`
	Version      string `envconfig:"SERVICE_VERSION" default:"0.0.1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// EffectiveBaseURL returns the carrier base URL, honoring sandbox mode.
func (c *Config) EffectiveBaseURL() string {
	if c.ShiplogicSandbox {
		return c.ShiplogicSandboxURL
	}
	return c.ShiplogicBaseURL
}

// CollectionAddress returns the configured warehouse collection address.
func (c *Config) CollectionAddress() shiplogic.Address {
	return shiplogic.Address{
		Type:          "business",
		Company:       c.CollectionCompany,
		StreetAddress: c.CollectionStreetAddress,
		LocalArea:     c.CollectionLocalArea,
		City:          c.CollectionCity,
		Zone:          c.CollectionZone,
		PostalCode:    c.CollectionPostalCode,
		Country:       c.CollectionCountry,
		Lat:           c.CollectionLat,
		Lng:           c.CollectionLng,
	}
}

// CollectionContact returns the configured warehouse contact.
func (c *Config) CollectionContact() shiplogic.Contact {
	return shiplogic.Contact{
		Name:  c.CollectionContactName,
		Phone: c.CollectionContactPhone,
		Email: c.CollectionContactEmail,
	}
}

// Attributes returns OpenTelemetry attributes for this configuration.
func (c *Config) Attributes() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("service.name", c.ServiceName),
		attribute.String("service.version", c.Version),
		attribute.Bool("shiplogic.sandbox", c.ShiplogicSandbox),
		attribute.Bool("shiplogic.mock", c.ShiplogicUseMock),
	}
}
