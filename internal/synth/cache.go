package synth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hammamikhairi/nayru/internal/logger"
)

// AudioCache is a thread-safe two-tier cache (in-memory + filesystem) for
// synthesized WAV bytes. The cache key folds in voice, speed, and text, so
// a set_config change to either voice or speed naturally misses until that
// combination has been synthesized once.
//
// Disk behaviour mirrors the in-memory tier's read path regardless of
// diskWrite: reads always check disk, writes only persist when diskWrite
// is enabled, so a cold process still gets a warm cache from prior runs.
type AudioCache struct {
	mu        sync.RWMutex
	entries   map[string][]byte
	log       *logger.Logger
	cacheDir  string
	diskWrite bool
	hits      int64
	misses    int64
}

// NewAudioCache creates an audio cache. cacheDir == "" disables the disk
// tier entirely.
func NewAudioCache(cacheDir string, diskWrite bool, log *logger.Logger) *AudioCache {
	c := &AudioCache{
		entries:   make(map[string][]byte),
		log:       log,
		cacheDir:  cacheDir,
		diskWrite: diskWrite,
	}
	if cacheDir != "" && diskWrite {
		if err := os.MkdirAll(cacheDir, 0o755); err != nil && log != nil {
			log.Error("failed to create cache dir %s: %v", cacheDir, err)
		}
	}
	return c
}

// Get returns cached WAV bytes for voice/speed/text, or nil and false.
func (c *AudioCache) Get(voice string, speed float32, text string) ([]byte, bool) {
	key := hashKey(voice, speed, text)

	c.mu.RLock()
	data, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return data, true
	}

	if c.cacheDir != "" {
		if diskData, diskOK := c.readDisk(key); diskOK {
			c.mu.Lock()
			c.entries[key] = diskData
			c.hits++
			c.mu.Unlock()
			return diskData, true
		}
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
	return nil, false
}

// Put stores WAV bytes for voice/speed/text. Always writes to memory;
// writes to disk only when diskWrite is enabled.
func (c *AudioCache) Put(voice string, speed float32, text string, audio []byte) {
	key := hashKey(voice, speed, text)

	c.mu.Lock()
	c.entries[key] = audio
	c.mu.Unlock()

	if c.cacheDir != "" && c.diskWrite {
		c.writeDisk(key, audio)
	}
}

// Stats returns hit and miss counts.
func (c *AudioCache) Stats() (hits, misses int64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

func hashKey(voice string, speed float32, text string) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%.2f:%s", voice, speed, text)))
	return hex.EncodeToString(h[:])
}

func (c *AudioCache) diskPath(key string) string {
	return filepath.Join(c.cacheDir, key+".wav")
}

func (c *AudioCache) readDisk(key string) ([]byte, bool) {
	data, err := os.ReadFile(c.diskPath(key))
	if err != nil {
		return nil, false
	}
	return data, true
}

func (c *AudioCache) writeDisk(key string, audio []byte) {
	path := c.diskPath(key)
	if err := os.WriteFile(path, audio, 0o644); err != nil && c.log != nil {
		c.log.Error("disk write failed for %s: %v", path, err)
	}
}
