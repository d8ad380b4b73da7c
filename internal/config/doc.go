// Package config loads the inboxforward runtime configuration with viper.
//
// Values are resolved in order of precedence: command-line flags, the
// environment (TELEGRAM_BOT_TOKEN, TELEGRAM_CHAT_ID and INBOXFORWARD_*
// variables such as INBOXFORWARD_SCANNER_SKIP_SENDERS), an optional config
// file (YAML, JSON, TOML, or a .env file), and built-in defaults.
//
// Example config.yaml:
//
//	telegram:
//	  chat_id: "-100123456"
//	scanner:
//	  processed_label: telegram-forwarded
//	  skip_senders: [noreply@bank.example]
//	  interval: 5m
package config
