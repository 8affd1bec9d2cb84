package config

import "fmt"

// PrintConfig logs the resolved configuration at startup, redacting secrets
// so a deployment's logs never carry credentials.
func PrintConfig(cfg *Config) {
	fmt.Printf("mode: %s\n", cfg.Mode)
	fmt.Printf("database: %s:%s/%s (user=%s)\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database, cfg.Database.User)
	fmt.Printf("rabbitmq: %s:%s (user=%s)\n", cfg.RabbitMQ.Host, cfg.RabbitMQ.Port, cfg.RabbitMQ.User)
	fmt.Printf("websocket: port=%s\n", cfg.WebSocket.Port)
	fmt.Printf("dispatch: offer_timeout=%s initial_radius_km=%.1f widened_radius_km=%.1f max_radius_km=%.1f\n",
		cfg.Dispatch.OfferTimeout, cfg.Dispatch.InitialRadiusKm, cfg.Dispatch.WidenedRadiusKm, cfg.Dispatch.MaxRadiusKm)
	fmt.Printf("sms: bypass_otp=%t (key=%s)\n", cfg.SMS.BypassOTP, redact(cfg.SMS.Key))
	fmt.Printf("mail: enabled=%t from=%s\n", cfg.Mail.Enabled, cfg.Mail.From)
	fmt.Printf("auth: access_ttl=%s refresh_ttl=%s\n", cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "***"
}
