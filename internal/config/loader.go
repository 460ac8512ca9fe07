package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/architeacher/device-catalog/internal/ports"
	"github.com/hashicorp/vault/api"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const defaultDotEnvFile = ".env"

// Init reads an optional dotenv file and then the process environment.
// Variables already present in the environment win over the file.
func Init() (*ServiceConfig, error) {
	dotEnvFile := os.Getenv("APP_DOTENV_FILE")
	if dotEnvFile == "" {
		dotEnvFile = defaultDotEnvFile
	}

	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("unable to read %s: %w", dotEnvFile, err)
	}

	cfg := &ServiceConfig{}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("unable to parse service configuration: %w", err)
	}

	if len(ServiceVersion) != 0 {
		cfg.App.ServiceVersion = ServiceVersion
	}

	if len(CommitSHA) != 0 {
		cfg.App.CommitSHA = CommitSHA
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service configuration: %w", err)
	}

	return cfg, nil
}

// SecretsLoader overlays credentials kept in the secrets storage onto an
// already parsed configuration.
type SecretsLoader struct {
	secretsRepo ports.SecretsRepository
	sleep       func(time.Duration)
}

func NewSecretsLoader(secretsRepo ports.SecretsRepository) *SecretsLoader {
	return &SecretsLoader{
		secretsRepo: secretsRepo,
		sleep:       time.Sleep,
	}
}

func (l *SecretsLoader) Load(ctx context.Context, cfg *ServiceConfig) error {
	if !cfg.SecretsStorage.Enabled {
		return fmt.Errorf("secret storage is not enabled")
	}

	if err := l.authenticate(ctx, cfg.SecretsStorage); err != nil {
		return fmt.Errorf("failed to authenticate with Vault: %w", err)
	}

	data, err := l.readSecrets(ctx, cfg.SecretsStorage)
	if err != nil {
		return fmt.Errorf("failed to load secrets from Vault: %w", err)
	}

	for key, value := range data {
		if text, ok := value.(string); ok && text != "" {
			applySecret(cfg, key, text)
		}
	}

	return nil
}

func (l *SecretsLoader) authenticate(ctx context.Context, cfg SecretsStorage) error {
	switch strings.ToLower(cfg.AuthMethod) {
	case "token":
		if cfg.Token == "" {
			return fmt.Errorf("token is required for token auth method")
		}

		l.secretsRepo.SetToken(cfg.Token)

		return nil

	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return fmt.Errorf("role_id and secret_id are required for approle auth method")
		}

		resp, err := l.secretsRepo.WriteWithContext(ctx, "auth/approle/login", map[string]any{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return fmt.Errorf("failed to authenticate via approle: %w", err)
		}

		if resp == nil || resp.Auth == nil {
			return fmt.Errorf("no auth info returned from Vault")
		}

		l.secretsRepo.SetToken(resp.Auth.ClientToken)

		return nil

	default:
		return fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

// readSecrets reads the KV v2 secret at apps/data/<mount path> and returns
// its inner data map.
func (l *SecretsLoader) readSecrets(ctx context.Context, cfg SecretsStorage) (map[string]any, error) {
	path := fmt.Sprintf("apps/data/%s", cfg.MountPath)

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var (
		secret *api.Secret
		err    error
	)

	for attempt := uint(0); attempt <= cfg.MaxRetries; attempt++ {
		secret, err = l.secretsRepo.GetSecrets(ctx, path)
		if err == nil {
			break
		}

		if attempt < cfg.MaxRetries {
			l.sleep(time.Duration(attempt+1) * time.Second)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read from path %s after %d retries: %w", path, cfg.MaxRetries, err)
	}

	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	data, ok := secret.Data["data"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid secret format at path %s, missing 'data' key", path)
	}

	return data, nil
}

func applySecret(cfg *ServiceConfig, key, value string) {
	switch key {
	case "POSTGRES_USERNAME":
		cfg.Database.Username = value
	case "POSTGRES_PASSWORD":
		cfg.Database.Password = value
	case "CACHE_PASSWORD":
		cfg.Cache.Password = value
	}
}
