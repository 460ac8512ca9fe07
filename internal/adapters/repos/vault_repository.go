package repos

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"
)

// VaultRepository reads service secrets from HashiCorp Vault.
type VaultRepository struct {
	client *api.Client
}

func NewVaultRepository(client *api.Client) *VaultRepository {
	return &VaultRepository{client: client}
}

func (r *VaultRepository) SetToken(v string) {
	r.client.SetToken(v)
}

func (r *VaultRepository) GetSecrets(ctx context.Context, path string) (*api.Secret, error) {
	secret, err := r.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading secret %s: %w", path, err)
	}

	return secret, nil
}

func (r *VaultRepository) WriteWithContext(ctx context.Context, path string, data map[string]any) (*api.Secret, error) {
	secret, err := r.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return secret, nil
}
