// Package cache 提供缓存抽象与内存/Redis两种实现。
// 缓存只服务于商品目录读路径与幂等键，库存与订单状态必须直读数据库。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrCacheMiss 表示键不存在或已过期
var ErrCacheMiss = errors.New("cache: key not found")

// Cache 定义缓存操作接口
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryCache 进程内缓存实现，用于开发与测试
type MemoryCache struct {
	mu   sync.RWMutex
	data map[string]*memoryItem
}

type memoryItem struct {
	value      []byte
	expiration time.Time
}

// NewMemoryCache 创建内存缓存实例
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: make(map[string]*memoryItem)}
}

// Get 获取缓存值并反序列化到 dest
func (m *MemoryCache) Get(ctx context.Context, key string, dest any) error {
	m.mu.RLock()
	item, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return ErrCacheMiss
	}
	if time.Now().After(item.expiration) {
		m.mu.Lock()
		delete(m.data, key)
		m.mu.Unlock()
		return ErrCacheMiss
	}
	return json.Unmarshal(item.value, dest)
}

// Set 设置缓存值
func (m *MemoryCache) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.data[key] = &memoryItem{value: data, expiration: time.Now().Add(expiration)}
	m.mu.Unlock()
	return nil
}

// Del 删除缓存值
func (m *MemoryCache) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.data, key)
	}
	m.mu.Unlock()
	return nil
}

// SetNX 仅当键不存在时设置，返回是否设置成功
func (m *MemoryCache) SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.data[key]; ok && time.Now().Before(item.expiration) {
		return false, nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return false, err
	}
	m.data[key] = &memoryItem{value: data, expiration: time.Now().Add(expiration)}
	return true, nil
}

// Ping 检查连接
func (m *MemoryCache) Ping(ctx context.Context) error { return nil }

// Close 关闭缓存
func (m *MemoryCache) Close() error {
	m.mu.Lock()
	m.data = make(map[string]*memoryItem)
	m.mu.Unlock()
	return nil
}
