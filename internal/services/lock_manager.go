// internal/services/lock_manager.go
package services

import (
	"sync"
	"time"
)

// LockManager 按项目管理读写锁
type LockManager struct {
	projectLocks map[string]*LockInfo
	globalLock   sync.Mutex
	lockTTL      time.Duration
	maxIdleLocks int

	stop     chan struct{}
	stopOnce sync.Once
}

// LockInfo 包装锁和相关信息
type LockInfo struct {
	Mutex    sync.RWMutex
	LastUsed time.Time
	refs     int // 正在使用或等待该锁的调用数，大于0时不会被清理
}

// NewLockManager 创建锁管理器
func NewLockManager() *LockManager {
	lm := &LockManager{
		projectLocks: make(map[string]*LockInfo),
		lockTTL:      30 * time.Minute,
		maxIdleLocks: 200,
		stop:         make(chan struct{}),
	}
	lm.startCleanup(5 * time.Minute)
	return lm
}

// acquire 取得项目锁信息并增加引用计数
func (lm *LockManager) acquire(projectID string) *LockInfo {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	info, exists := lm.projectLocks[projectID]
	if !exists {
		info = &LockInfo{}
		lm.projectLocks[projectID] = info
	}
	info.refs++
	info.LastUsed = time.Now()
	return info
}

func (lm *LockManager) release(info *LockInfo) {
	lm.globalLock.Lock()
	info.refs--
	info.LastUsed = time.Now()
	lm.globalLock.Unlock()
}

// ExecuteWithProjectLock 在项目写锁保护下执行操作
func (lm *LockManager) ExecuteWithProjectLock(projectID string, fn func() error) error {
	info := lm.acquire(projectID)
	defer lm.release(info)

	info.Mutex.Lock()
	defer info.Mutex.Unlock()
	return fn()
}

// ExecuteWithProjectReadLock 在项目读锁保护下执行操作
func (lm *LockManager) ExecuteWithProjectReadLock(projectID string, fn func() error) error {
	info := lm.acquire(projectID)
	defer lm.release(info)

	info.Mutex.RLock()
	defer info.Mutex.RUnlock()
	return fn()
}

// Close 停止后台清理
func (lm *LockManager) Close() {
	lm.stopOnce.Do(func() { close(lm.stop) })
}

// 定期清理未使用的锁
func (lm *LockManager) startCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-lm.stop:
				return
			case <-ticker.C:
				lm.cleanupUnusedLocks()
			}
		}
	}()
}

func (lm *LockManager) cleanupUnusedLocks() {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()

	// 只有在锁数量过多时才清理
	if len(lm.projectLocks) <= lm.maxIdleLocks {
		return
	}

	now := time.Now()
	for projectID, info := range lm.projectLocks {
		if info.refs == 0 && now.Sub(info.LastUsed) > lm.lockTTL {
			delete(lm.projectLocks, projectID)
		}
	}
}

func (lm *LockManager) lockCount() int {
	lm.globalLock.Lock()
	defer lm.globalLock.Unlock()
	return len(lm.projectLocks)
}
