package configs

import "os"

type Config struct {
	AppPort      string
	SocketURL    string
	APIBaseURL   string
	Token        string
	TokenFile    string
	OTELEndpoint string
	ServiceName  string
	Environment  string
}

func LoadConfig() *Config {
	return &Config{
		AppPort:      getEnv("APP_PORT", ":8090"),
		SocketURL:    getEnv("SOCKET_URL", "ws://localhost:7000/ws"),
		APIBaseURL:   getEnv("API_BASE_URL", "http://localhost:7000"),
		Token:        getEnv("AUTH_TOKEN", ""),
		TokenFile:    getEnv("AUTH_TOKEN_FILE", ""),
		OTELEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel-collector:4318"),
		ServiceName:  getEnv("OTEL_SERVICE_NAME", "expert-realtime"),
		Environment:  getEnv("ENV", "local"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
