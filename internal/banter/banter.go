package banter

import (
	"encoding/json"
	"math/rand"
	"os"
	"sync"

	"github.com/nantokaworks/counting-bot/internal/shared/logger"
	"go.uber.org/zap"
)

// Catalog はbanter.jsonから読むフレーズ集と数詞テーブル。
// キーごとの配列からランダムに1つ選んで返す。無ければフォールバック文を使う。
type Catalog struct {
	mu          sync.RWMutex
	phrases     map[string][]string
	wordNumbers map[string]int64
}

type banterFile struct {
	Wrong       []string         `json:"wrong"`
	Roast       []string         `json:"roast"`
	Milestone   []string         `json:"milestone"`
	Winner      []string         `json:"winner"`
	Claim       []string         `json:"claim"`
	WordNumbers map[string]int64 `json:"word_numbers"`
}

// Load reads the catalog from path. A missing file is not an error:
// 全キーがフォールバックで動く。
func Load(path string) *Catalog {
	c := &Catalog{
		phrases:     map[string][]string{},
		wordNumbers: map[string]int64{},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Info("No banter file, using fallback phrases", zap.String("path", path))
		return c
	}

	var f banterFile
	if err := json.Unmarshal(data, &f); err != nil {
		logger.Warn("Failed to parse banter file", zap.Error(err), zap.String("path", path))
		return c
	}

	c.phrases["wrong"] = f.Wrong
	c.phrases["roast"] = f.Roast
	c.phrases["milestone"] = f.Milestone
	c.phrases["winner"] = f.Winner
	c.phrases["claim"] = f.Claim
	c.wordNumbers = f.WordNumbers
	if c.wordNumbers == nil {
		c.wordNumbers = map[string]int64{}
	}

	logger.Info("Banter file loaded", zap.String("path", path), zap.Int("word_numbers", len(c.wordNumbers)))
	return c
}

// Pick returns a random phrase for key, or fallback when the key is empty.
func (c *Catalog) Pick(key, fallback string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	arr := c.phrases[key]
	if len(arr) == 0 {
		return fallback
	}
	return arr[rand.Intn(len(arr))]
}

// WordNumbers returns the word→value table for numeric word mode.
func (c *Catalog) WordNumbers() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wordNumbers
}
