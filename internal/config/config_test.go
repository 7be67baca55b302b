package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "checkout-service", cfg.Service)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, BackendRedis, cfg.SessionStore)
	assert.Equal(t, BackendPostgres, cfg.IntentStore)
	assert.Equal(t, 3*time.Hour, cfg.SessionTTL.Duration)
	assert.Equal(t, "checkout_session", cfg.SessionCookie.Name)
	assert.Equal(t, 10*time.Second, cfg.Processor.Timeout.Duration)
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "checkout.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_port = "9090"
session_store = "memory"
session_ttl = "45m"

[processor]
base_url = "https://processor.example"
client_id = "from-file"
timeout = "5s"

[kafka]
brokers = ["k1:9092", "k2:9092"]

[mail]
from_email = "shop@example.com"
bcc = ["audit@example.com"]
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PROCESSOR_CLIENT_ID", "from-env")
	t.Setenv("DB_PORT", "6543")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.SessionStore)
	assert.Equal(t, 45*time.Minute, cfg.SessionTTL.Duration)
	assert.Equal(t, "https://processor.example", cfg.Processor.BaseURL)
	assert.Equal(t, "from-env", cfg.Processor.ClientID)
	assert.Equal(t, 5*time.Second, cfg.Processor.Timeout.Duration)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"audit@example.com"}, cfg.Mail.BCC)
	assert.Equal(t, 6543, cfg.Postgres.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("KAFKA_BROKERS=a:1, b:2\n"), 0o600))
	// t.Setenv restores the original value once the test is done
	t.Setenv("KAFKA_BROKERS", "")
	require.NoError(t, os.Unsetenv("KAFKA_BROKERS"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"duration", "SESSION_TTL", "soon"},
		{"int", "DB_PORT", "five"},
		{"bool", "SESSION_COOKIE_SECURE", "maybe"},
		{"backend", "SESSION_STORE", "memcached"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirTemp(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestValidate_MailRequiresSender(t *testing.T) {
	cfg := Default()
	cfg.Mail.SendGridAPIKey = "SG.key"

	assert.ErrorContains(t, cfg.Validate(), "mail from address")

	cfg.Mail.FromEmail = "shop@example.com"
	assert.NoError(t, cfg.Validate())
}
