// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"context"
	"fmt"
	"strings"

	vault "github.com/hashicorp/vault/api"
)

// VaultConfig Vault 配置
type VaultConfig struct {
	Address    string // Vault 地址，如 http://vault:8200
	Token      string
	PathPrefix string // 路径前缀，如 "secret"；KV v2 的 data/ 段由读取逻辑兼容
}

type vaultStore struct {
	logical    *vault.Logical
	pathPrefix string
}

// NewVaultStore 创建 Vault secret store
func NewVaultStore(config VaultConfig) (Store, error) {
	if config.Address == "" {
		config.Address = "http://localhost:8200"
	}

	cfg := vault.DefaultConfig()
	cfg.Address = config.Address

	client, err := vault.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if config.Token != "" {
		client.SetToken(config.Token)
	}
	if _, err := client.Sys().Health(); err != nil {
		return nil, fmt.Errorf("failed to connect to vault: %w", err)
	}

	prefix := "secret"
	if config.PathPrefix != "" {
		prefix = strings.TrimSuffix(config.PathPrefix, "/")
	}
	return &vaultStore{logical: client.Logical(), pathPrefix: prefix}, nil
}

func (v *vaultStore) Get(ctx context.Context, key string) (string, error) {
	secret, err := v.logical.ReadWithContext(ctx, v.buildPath(key))
	if err != nil {
		return "", fmt.Errorf("failed to read secret from vault: %w", err)
	}
	if secret == nil {
		return "", fmt.Errorf("secret not found: %s", key)
	}
	if val, ok := secretValue(secret.Data); ok {
		return val, nil
	}
	return "", fmt.Errorf("secret value not found: %s", key)
}

// secretValue 优先取 value 字段；KV v2 把实际数据放在 data 下
func secretValue(data map[string]interface{}) (string, bool) {
	if nested, ok := data["data"].(map[string]interface{}); ok {
		return secretValue(nested)
	}
	if s, ok := data["value"].(string); ok {
		return s, true
	}
	for _, val := range data {
		if s, ok := val.(string); ok {
			return s, true
		}
	}
	return "", false
}

func (v *vaultStore) Set(ctx context.Context, key string, value string) error {
	_, err := v.logical.WriteWithContext(ctx, v.buildPath(key), map[string]interface{}{"value": value})
	if err != nil {
		return fmt.Errorf("failed to write secret to vault: %w", err)
	}
	return nil
}

func (v *vaultStore) Delete(ctx context.Context, key string) error {
	if _, err := v.logical.DeleteWithContext(ctx, v.buildPath(key)); err != nil {
		return fmt.Errorf("failed to delete secret from vault: %w", err)
	}
	return nil
}

func (v *vaultStore) List(ctx context.Context, prefix string) ([]string, error) {
	secret, err := v.logical.ListWithContext(ctx, v.buildPath(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to list secrets from vault: %w", err)
	}
	if secret == nil {
		return nil, nil
	}
	raw, ok := secret.Data["keys"].([]interface{})
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		if s, ok := k.(string); ok {
			keys = append(keys, strings.TrimPrefix(prefix+"/"+s, "/"))
		}
	}
	return keys, nil
}

func (v *vaultStore) buildPath(key string) string {
	if key == "" {
		return v.pathPrefix
	}
	return v.pathPrefix + "/" + key
}
