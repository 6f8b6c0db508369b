package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all configuration for our application
type Config struct {
	Port                      string
	Origin                    string
	Environment               string
	JWTSecret                 string
	JWTRefreshSecret          string
	Database                  DatabaseConfig
	IremboPay                 IremboPayConfig
	JWTExpirationMinutes      int
	JWTRefreshExpirationHours int
	AppURL                    string
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// IremboPayConfig holds the payment gateway settings.
// SecretKey has no default on purpose: a missing key is reported per request
// by the payment endpoint instead of crashing the process. CallbackSecret,
// when set, is required on payment notifications; when empty the callback
// accepts unauthenticated notifications.
type IremboPayConfig struct {
	BaseURL            string
	SecretKey          string
	CallbackSecret     string
	PaymentAccount     string
	ProductCode        string
	Language           string
	InvoiceExpiryHours int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load database configuration
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "mindcare"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	invoiceExpiryHours, err := strconv.Atoi(getEnv("IREMBOPAY_INVOICE_EXPIRY_HOURS", "24"))
	if err != nil {
		return nil, fmt.Errorf("invalid IREMBOPAY_INVOICE_EXPIRY_HOURS: %w", err)
	}

	iremboConfig := IremboPayConfig{
		BaseURL:            getEnv("IREMBOPAY_API_URL", "https://api.sandbox.irembopay.com"),
		SecretKey:          getEnv("IREMBO_PAY_SECRET_KEY", ""),
		CallbackSecret:     getEnv("IREMBOPAY_CALLBACK_SECRET", ""),
		PaymentAccount:     getEnv("IREMBOPAY_PAYMENT_ACCOUNT", "TST-RWF"),
		ProductCode:        getEnv("IREMBOPAY_PRODUCT_CODE", "PC-aaf751b73f"),
		Language:           getEnv("IREMBOPAY_LANGUAGE", "EN"),
		InvoiceExpiryHours: invoiceExpiryHours,
	}

	jwtExpMinutes, err := strconv.Atoi(getEnv("JWT_EXPIRATION_MINUTES", "15"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_MINUTES: %w", err)
	}

	jwtRefreshExpHours, err := strconv.Atoi(getEnv("JWT_REFRESH_EXPIRATION_HOURS", "168")) // 7 days
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_EXPIRATION_HOURS: %w", err)
	}

	// Return complete configuration
	return &Config{
		Port:                      getEnv("PORT", "3001"),
		Origin:                    getEnv("ORIGIN", "http://localhost:5173"),
		Environment:               getEnv("APP_ENV", "development"),
		JWTSecret:                 getEnv("JWT_SECRET", "default_jwt_secret"),
		JWTRefreshSecret:          getEnv("JWT_REFRESH_SECRET", "default_refresh_secret"),
		Database:                  dbConfig,
		IremboPay:                 iremboConfig,
		JWTExpirationMinutes:      jwtExpMinutes,
		JWTRefreshExpirationHours: jwtRefreshExpHours,
		AppURL:                    getEnv("APP_URL", "http://localhost:3001"),
	}, nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
