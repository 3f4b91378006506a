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

// Package secrets 凭据读取抽象：OpenRouter / Tavily 等 API Key 可来自环境变量、内存或 Vault
package secrets

import (
	"context"
	"fmt"
)

// Store secret 存储接口
type Store interface {
	// Get 获取 secret 值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置 secret 值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除 secret
	Delete(ctx context.Context, key string) error

	// List 列出所有 secret keys
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config Secret Store 配置
type Config struct {
	Provider string            // env | memory | vault
	Memory   map[string]string // provider=memory 时的初始凭据
	Vault    VaultConfig       // provider=vault 时使用
}

// NewStore 创建 Secret Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(config.Memory), nil
	case "vault":
		return NewVaultStore(config.Vault)
	default:
		return nil, fmt.Errorf("unsupported secret provider: %s", config.Provider)
	}
}

// Resolve 对仍为空的目标字段按 key 从 store 读取；读取失败的 key 原样返回，由调用方决定是否告警
func Resolve(ctx context.Context, store Store, targets map[string]*string) []string {
	var missing []string
	for key, dst := range targets {
		if dst == nil || *dst != "" {
			continue
		}
		val, err := store.Get(ctx, key)
		if err != nil || val == "" {
			missing = append(missing, key)
			continue
		}
		*dst = val
	}
	return missing
}
