package iplist

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"varg.is/gatewall/internal/clock"
)

type cacheMeta struct {
	CachedAt int64  `json:"cached_at"`
	ETag     string `json:"etag,omitempty"`
	Size     int    `json:"size"`
	Checksum string `json:"checksum"`
}

// cacheKeyFor creates a stable cache filename from a URL.
func cacheKeyFor(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])
}

func checksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// saveToCache stores downloaded data next to a metadata file.
func (m *Manager) saveToCache(cacheKey string, data []byte, etag string) error {
	if m.cacheDir == "" {
		return nil
	}

	if err := os.MkdirAll(m.cacheDir, 0755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	dataPath := filepath.Join(m.cacheDir, cacheKey+".txt")
	if err := os.WriteFile(dataPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write data cache: %w", err)
	}

	meta := cacheMeta{
		CachedAt: clock.Now().Unix(),
		ETag:     etag,
		Size:     len(data),
		Checksum: checksum(data),
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	metaPath := filepath.Join(m.cacheDir, cacheKey+".meta")
	if err := os.WriteFile(metaPath, metaData, 0644); err != nil {
		return fmt.Errorf("failed to write metadata cache: %w", err)
	}

	return nil
}

// loadFromCache returns the parsed list if the cache entry is fresh and intact.
func (m *Manager) loadFromCache(cacheKey string) ([]string, error) {
	if m.cacheDir == "" {
		return nil, fmt.Errorf("cache disabled")
	}

	dataPath := filepath.Join(m.cacheDir, cacheKey+".txt")
	metaPath := filepath.Join(m.cacheDir, cacheKey+".meta")

	metaData, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("cache miss")
	}

	var meta cacheMeta
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	if time.Since(time.Unix(meta.CachedAt, 0)) > m.maxAge {
		return nil, fmt.Errorf("cache expired")
	}

	data, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, fmt.Errorf("cache miss")
	}

	if checksum(data) != meta.Checksum {
		return nil, fmt.Errorf("cache checksum mismatch")
	}

	return ParseIPList(bytes.NewReader(data))
}

// ClearCache removes all cached files.
func (m *Manager) ClearCache() error {
	if m.cacheDir == "" {
		return nil
	}
	return os.RemoveAll(m.cacheDir)
}

// CacheInfo summarizes the on-disk cache.
type CacheInfo struct {
	CachedLists int    `json:"cached_lists"`
	TotalSize   int64  `json:"total_size"`
	CacheDir    string `json:"cache_dir"`
}

// GetCacheInfo returns information about cached lists.
func (m *Manager) GetCacheInfo() (CacheInfo, error) {
	info := CacheInfo{CacheDir: m.cacheDir}
	if m.cacheDir == "" {
		return info, nil
	}

	files, err := os.ReadDir(m.cacheDir)
	if err != nil {
		if os.IsNotExist(err) {
			return info, nil
		}
		return info, err
	}

	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".txt") {
			info.CachedLists++
			if fi, err := file.Info(); err == nil {
				info.TotalSize += fi.Size()
			}
		}
	}

	return info, nil
}
