package config

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchConfig 热更新参数。
type WatchConfig struct {
	Enabled  bool
	Cooldown time.Duration // 两次重载之间的最小间隔，吸收编辑器的连环写事件
}

// DefaultWatchConfig 返回默认热更新配置。
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{Enabled: true, Cooldown: 2 * time.Second}
}

// Watcher 监听配置文件写入并在校验通过后回调新配置。校验失败的
// 新文件被忽略，旧配置继续生效。
type Watcher struct {
	cfg      WatchConfig
	path     string
	notifier *fsnotify.Watcher

	mu         sync.Mutex
	lastReload time.Time
}

// NewWatcher 创建配置热更新监听器。
func NewWatcher(path string, cfg WatchConfig) (*Watcher, error) {
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}
	return &Watcher{cfg: cfg, path: path, notifier: notifier}, nil
}

// Start 开始监听；onUpdate 在新配置通过校验后收到回调。阻塞直到
// ctx 取消。
func (w *Watcher) Start(ctx context.Context, onUpdate func(AppConfig)) error {
	if !w.cfg.Enabled {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := w.notifier.Add(w.path); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	defer w.notifier.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.notifier.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// 有些编辑器 rename+create，重挂一次保证继续收到事件
			_ = w.notifier.Add(w.path)
			if cfg, ok := w.reload(); ok && onUpdate != nil {
				onUpdate(cfg)
			}
		case _, ok := <-w.notifier.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// reload 带冷却的重新加载；返回 ok=false 表示被冷却吸收或加载失败。
func (w *Watcher) reload() (AppConfig, bool) {
	w.mu.Lock()
	if time.Since(w.lastReload) < w.cfg.Cooldown {
		w.mu.Unlock()
		return AppConfig{}, false
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	cfg, err := LoadWithEnvOverrides(w.path)
	if err != nil {
		return AppConfig{}, false
	}
	return cfg, true
}
