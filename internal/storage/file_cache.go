// internal/storage/file_cache.go
package storage

import (
	"os"
	"sort"
	"sync"
	"time"
)

// fileCache 文件内容内存缓存，按修改时间和大小判断是否失效
type fileCache struct {
	entries    map[string]*fileCacheEntry
	mutex      sync.RWMutex
	maxSize    int           // 最大缓存条目数
	expiration time.Duration // 缓存过期时间

	stop     chan struct{}
	stopOnce sync.Once
}

// fileCacheEntry 缓存条目
type fileCacheEntry struct {
	data      []byte
	createdAt time.Time
	lastRead  time.Time
	modTime   time.Time
	size      int64
}

// newFileCache 创建文件缓存
func newFileCache(maxSize int, expiration time.Duration) *fileCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if expiration <= 0 {
		expiration = 5 * time.Minute
	}
	return &fileCache{
		entries:    make(map[string]*fileCacheEntry),
		maxSize:    maxSize,
		expiration: expiration,
		stop:       make(chan struct{}),
	}
}

// get 返回仍然有效的缓存内容
func (c *fileCache) get(path string, info os.FileInfo) ([]byte, bool) {
	c.mutex.RLock()
	entry, exists := c.entries[path]
	c.mutex.RUnlock()
	if !exists {
		return nil, false
	}

	modified := !info.ModTime().Equal(entry.modTime) || info.Size() != entry.size
	expired := time.Since(entry.createdAt) > c.expiration
	if modified || expired {
		c.invalidate(path)
		return nil, false
	}

	c.mutex.Lock()
	entry.lastRead = time.Now()
	c.mutex.Unlock()
	return entry.data, true
}

// put 写入缓存，超出容量时清理最少使用的条目
func (c *fileCache) put(path string, data []byte, info os.FileInfo) {
	now := time.Now()

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[path] = &fileCacheEntry{
		data:      data,
		createdAt: now,
		lastRead:  now,
		modTime:   info.ModTime(),
		size:      info.Size(),
	}
	if len(c.entries) > c.maxSize {
		c.cleanupLRU(max(1, c.maxSize/5))
	}
}

// invalidate 清除指定路径的缓存
func (c *fileCache) invalidate(path string) {
	c.mutex.Lock()
	delete(c.entries, path)
	c.mutex.Unlock()
}

func (c *fileCache) len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.entries)
}

// cleanupLRU 删除最少使用的条目，调用方持有写锁
func (c *fileCache) cleanupLRU(count int) {
	type keyAge struct {
		key  string
		time time.Time
	}

	entries := make([]keyAge, 0, len(c.entries))
	for k, v := range c.entries {
		entries = append(entries, keyAge{k, v.lastRead})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].time.Before(entries[j].time)
	})

	for i := 0; i < min(count, len(entries)); i++ {
		delete(c.entries, entries[i].key)
	}
}

// cleanupExpired 清理过期缓存
func (c *fileCache) cleanupExpired() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for path, entry := range c.entries {
		if now.Sub(entry.createdAt) > c.expiration {
			delete(c.entries, path)
		}
	}
}

// startCleanup 定期清理过期条目，直到 close 被调用
func (c *fileCache) startCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				c.cleanupExpired()
			}
		}
	}()
}

func (c *fileCache) close() {
	c.stopOnce.Do(func() { close(c.stop) })
}
