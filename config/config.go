package config

type AppConfig struct {
	APIPort     string `env:"PORT,required" envDefault:"11011"`
	APIKey      string `env:"API_KEY,required"`
	RabbitMQURL string `env:"RABBITMQ_URL"`
}

type DatabaseConfig struct {
	Host            string `env:"MAILROOM_POSTGRES_HOST,required"`
	Port            string `env:"MAILROOM_POSTGRES_PORT,required"`
	User            string `env:"MAILROOM_POSTGRES_USER,required"`
	DBName          string `env:"MAILROOM_POSTGRES_DB_NAME,required"`
	Password        string `env:"MAILROOM_POSTGRES_PASSWORD,required"`
	MaxConn         int    `env:"MAILROOM_POSTGRES_DB_MAX_CONN"`
	MaxIdleConn     int    `env:"MAILROOM_POSTGRES_DB_MAX_IDLE_CONN"`
	ConnMaxLifetime int    `env:"MAILROOM_POSTGRES_DB_CONN_MAX_LIFETIME"`
	LogLevel        string `env:"MAILROOM_POSTGRES_LOG_LEVEL" envDefault:"WARN"`
	SSLMode         string `env:"MAILROOM_POSTGRES_SSL_MODE" envDefault:"require"`
}

type IMAPConfig struct {
	DialTimeoutSeconds int    `env:"IMAP_DIAL_TIMEOUT_SECONDS" envDefault:"30"`
	ProxyURL           string `env:"IMAP_SOCKS_PROXY_URL"`
}

type KeyringConfig struct {
	ServiceName  string `env:"KEYRING_SERVICE_NAME" envDefault:"mailroom"`
	FileDir      string `env:"KEYRING_FILE_DIR" envDefault:"~/.mailroom/keyring"`
	FilePassword string `env:"KEYRING_FILE_PASSWORD"`
}

// OAuthProviderConfig carries one provider's token endpoint client settings.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
}

type OAuthConfig struct {
	GoogleClientID        string `env:"OAUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret    string `env:"OAUTH_GOOGLE_CLIENT_SECRET"`
	MicrosoftClientID     string `env:"OAUTH_MICROSOFT_CLIENT_ID"`
	MicrosoftClientSecret string `env:"OAUTH_MICROSOFT_CLIENT_SECRET"`
	YahooClientID         string `env:"OAUTH_YAHOO_CLIENT_ID"`
	YahooClientSecret     string `env:"OAUTH_YAHOO_CLIENT_SECRET"`
}
