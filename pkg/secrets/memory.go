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
	"sort"
	"strings"
	"sync"

	"math-tutor/pkg/errors"
)

// memoryStore 进程内凭据，key 统一为小写下划线形式，与 env store 的映射一致
type memoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore 创建内存 secret store，seed 中的空值被忽略
func NewMemoryStore(seed map[string]string) Store {
	m := &memoryStore{secrets: make(map[string]string, len(seed))}
	for k, v := range seed {
		if v != "" {
			m.secrets[memoryKey(k)] = v
		}
	}
	return m
}

// memoryKey OPENROUTER_API_KEY、openrouter-api-key 与 openrouter_api_key 视为同一个 key
func memoryKey(key string) string {
	return strings.ToLower(envKeyReplacer.Replace(strings.TrimSpace(key)))
}

func (m *memoryStore) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	value, ok := m.secrets[memoryKey(key)]
	m.mu.RUnlock()
	if !ok {
		return "", errors.Wrapf(errors.ErrNotFound, "secret %s", memoryKey(key))
	}
	return value, nil
}

func (m *memoryStore) Set(ctx context.Context, key string, value string) error {
	k := memoryKey(key)
	if k == "" {
		return errors.Wrap(errors.ErrInvalidArg, "secret key 为空")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == "" {
		delete(m.secrets, k)
		return nil
	}
	m.secrets[k] = value
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.secrets, memoryKey(key))
	return nil
}

// List 按字典序返回前缀匹配的 key
func (m *memoryStore) List(ctx context.Context, prefix string) ([]string, error) {
	p := memoryKey(prefix)
	m.mu.RLock()
	keys := make([]string, 0, len(m.secrets))
	for key := range m.secrets {
		if strings.HasPrefix(key, p) {
			keys = append(keys, key)
		}
	}
	m.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}
