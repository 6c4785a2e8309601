// Package config handles loading and managing application configuration.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all configuration for the application.
type Config struct {
	// Server configuration
	Server ServerConfig

	// Postfinance gateway configuration
	Gateway GatewayConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port    string
	GinMode string // "debug", "release", or "test"
}

// GatewayConfig holds the Postfinance DirectLink/E-commerce credentials and
// the protocol-level settings used when building and signing payloads.
type GatewayConfig struct {
	// DirectLink API credentials
	PSPID       string
	APIUser     string
	APIPassword string

	// SHASIGN settings. When SHAWithSecret is true, the secret is appended
	// after every canonical KEY=value entry before hashing.
	SHASecret     string
	SHAWithSecret bool

	// Currency defaults and limits
	Currency          string
	AllowedCurrencies []string
	AllowMaxAmount    int64

	// Payment methods accepted by the form variant (matched case-insensitively)
	PaymentMethods []string

	Language string
	Sandbox  bool

	// Gateway endpoints
	BaseURL string
	Paths   PathTable
}

// PathTable maps an operation category to the gateway request path.
type PathTable struct {
	Order       string
	Maintenance string
	Query       string
	Ecommerce   string
}

// Load reads configuration from environment variables.
// Returns a Config struct with all settings populated.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		Gateway: GatewayConfig{
			PSPID:         getEnv("PF_PSPID", ""),
			APIUser:       getEnv("PF_API_USER", ""),
			APIPassword:   getEnv("PF_API_PASSWORD", ""),
			SHASecret:     getEnv("PF_SHA_SECRET", ""),
			SHAWithSecret: getEnvBool("PF_SHA_WITH_SECRET", true),
			Currency:      getEnv("PF_CURRENCY", "CHF"),
			AllowedCurrencies: getEnvList("PF_ALLOWED_CURRENCIES",
				[]string{"CHF", "EUR", "USD"}),
			AllowMaxAmount: int64(getEnvInt("PF_ALLOW_MAX_AMOUNT", 1000)),
			PaymentMethods: getEnvList("PF_PAYMENT_METHODS",
				[]string{"CreditCard", "Postfinance card", "PostFinance e-finance", "PayPal", "TWINT"}),
			Language: getEnv("PF_LANGUAGE", "fr_FR"),
			Sandbox:  getEnvBool("PF_SANDBOX", false),
			BaseURL:  getEnv("PF_BASE_URL", "https://e-payment.postfinance.ch"),
			Paths: PathTable{
				Order:       getEnv("PF_PATH_ORDER", "/ncol/prod/orderdirect.asp"),
				Maintenance: getEnv("PF_PATH_MAINTENANCE", "/ncol/prod/maintenancedirect.asp"),
				Query:       getEnv("PF_PATH_QUERY", "/ncol/prod/querydirect.asp"),
				Ecommerce:   getEnv("PF_PATH_ECOMMERCE", "/ncol/prod/orderstandard.asp"),
			},
		},
	}
}

// AllowsCurrency reports whether the given currency is on the allow-list.
// The configured default currency is always allowed.
func (g GatewayConfig) AllowsCurrency(currency string) bool {
	if currency == g.Currency {
		return true
	}
	for _, c := range g.AllowedCurrencies {
		if c == currency {
			return true
		}
	}
	return false
}

// AllowsPaymentMethod reports whether pm is on the payment-method allow-list.
// Matching is case-insensitive.
func (g GatewayConfig) AllowsPaymentMethod(pm string) bool {
	for _, m := range g.PaymentMethods {
		if strings.EqualFold(m, pm) {
			return true
		}
	}
	return false
}

// getEnv retrieves an environment variable with a fallback default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an environment variable as an integer with a fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool retrieves an environment variable as a boolean with a fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvList retrieves a comma-separated environment variable as a slice.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
