/*
 * Copyright 2024 caiflower Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package logger

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	golocalv1 "github.com/caiflower/evhttp/pkg/golocal/v1"
	"github.com/stretchr/testify/assert"
)

func TestLoggerStdOut(t *testing.T) {
	logger := NewLogger(&Config{
		Level:       TraceLevel,
		EnableTrace: true,
	})
	group := sync.WaitGroup{}

	for i := 1; i <= 10; i++ {
		group.Add(1)
		go func(i int) {
			defer group.Done()
			golocalv1.PutTraceID("lt-" + strconv.Itoa(i))
			defer golocalv1.Clean()
			logger.Trace("trace" + strconv.Itoa(i))
			logger.Debug("debug" + strconv.Itoa(i))
			logger.Info("info" + strconv.Itoa(i))
			logger.Warn("warn" + strconv.Itoa(i))
			logger.Error("error" + strconv.Itoa(i))
			logger.Fatal("fatal" + strconv.Itoa(i))
		}(i)
	}

	group.Wait()
	logger.Close()
	logger.Info("dropped after close")
}

func TestLoggerFileOut(t *testing.T) {
	dir := t.TempDir()
	logger := NewLogger(&Config{
		Level:          InfoLevel,
		EnableTrace:    true,
		Path:           dir,
		MaxSize:        "1KB",
		BackupMaxCount: 3,
		AppenderNum:    1,
	})

	golocalv1.PutTraceID("file-trace")
	defer golocalv1.Clean()
	for i := 0; i < 200; i++ {
		logger.Debug("filtered %d", i)
		logger.Info("line %d", i)
	}
	logger.Close()

	content, err := os.ReadFile(filepath.Join(dir, "app.log"))
	assert.Nil(t, err)
	assert.Contains(t, string(content), "[file-trace]")
	assert.Contains(t, string(content), "line 199")
	assert.NotContains(t, string(content), "filtered")

	entries, err := os.ReadDir(dir)
	assert.Nil(t, err)
	backups := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "app.log-") {
			backups++
		}
	}
	assert.True(t, backups > 0 && backups <= 3, "backups = %d", backups)
}

func TestGetLevel(t *testing.T) {
	assert.Equal(t, _info, getLevel("info"))
	assert.Equal(t, _warn, getLevel(WarnLevel))
	assert.Equal(t, _trace, getLevel("unknown"))
}
