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
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/caiflower/evhttp/pkg/tools"
)

const gz = ".gz"

// appender writes formatted lines to stdout or to a file rolled by size and age.
type appender struct {
	timeFormat     string
	enableColor    bool
	dir            string
	fileName       string
	maxSize        int64
	maxTime        time.Duration
	compress       bool
	backupMaxCount int

	lock     sync.Mutex
	out      io.Writer
	file     *os.File
	fileSize int64
	openedAt time.Time
	builder  strings.Builder
}

func newAppender(config *Config, maxSize int64) *appender {
	a := &appender{
		timeFormat:     config.TimeFormat,
		enableColor:    config.EnableColor,
		dir:            config.Path,
		fileName:       config.FileName,
		maxSize:        maxSize,
		maxTime:        config.MaxTime,
		compress:       config.Compress,
		backupMaxCount: config.BackupMaxCount,
		out:            os.Stdout,
	}

	if a.dir != "" {
		if err := tools.Mkdir(a.dir, 0755); err != nil {
			panic(fmt.Sprintf("[logger appender] mkdir err: %s", err))
		}
		a.openFile()
	}
	return a
}

func (a *appender) path() string {
	return filepath.Join(a.dir, a.fileName)
}

func (a *appender) openFile() {
	f, err := os.OpenFile(a.path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		panic(fmt.Sprintf("[logger appender] open logfile err: %s", err))
	}
	a.file = f
	a.out = f
	a.fileSize, _ = tools.FileSize(a.path())
	a.openedAt = time.Now()
}

func (a *appender) write(d data) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.needRoll() {
		a.roll()
	}

	level := d.level
	if a.enableColor {
		level = getLevelColor(level)
	}

	b := &a.builder
	b.Reset()
	b.WriteString(d.timestamp.Format(a.timeFormat))
	b.WriteString(" [")
	b.WriteString(level)
	b.WriteString("] ")
	if d.traceID != "" {
		b.WriteString("[")
		b.WriteString(d.traceID)
		b.WriteString("] ")
	}
	b.WriteString(d.position)
	b.WriteString(" - ")
	b.WriteString(d.content)
	b.WriteByte('\n')

	n, err := io.WriteString(a.out, b.String())
	if err != nil {
		fmt.Printf("[logger appender] write err: %s\n", err)
	}
	a.fileSize += int64(n)
}

func (a *appender) needRoll() bool {
	if a.file == nil {
		return false
	}
	if a.maxSize > 0 && a.fileSize >= a.maxSize {
		return true
	}
	return a.maxTime > 0 && time.Since(a.openedAt) >= a.maxTime
}

func (a *appender) roll() {
	if err := a.file.Close(); err != nil {
		fmt.Printf("[logger appender] close logfile err: %s\n", err)
	}

	backup := a.path() + "-" + time.Now().Format("20060102150405.000")
	if err := os.Rename(a.path(), backup); err != nil {
		fmt.Printf("[logger appender] rename logfile err: %s\n", err)
	}
	a.openFile()

	if a.compress {
		compressFile(backup)
	}
	a.cleanBackups()
}

// cleanBackups keeps the newest backupMaxCount backups. Backup names sort by time.
func (a *appender) cleanBackups() {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		fmt.Printf("[logger appender] read dir err: %s\n", err)
		return
	}

	var backups []string
	for _, v := range entries {
		if name := v.Name(); !v.IsDir() && strings.HasPrefix(name, a.fileName+"-") {
			backups = append(backups, name)
		}
	}
	sort.Strings(backups)

	for len(backups) > a.backupMaxCount {
		if err := os.Remove(filepath.Join(a.dir, backups[0])); err != nil {
			fmt.Printf("[logger appender] remove backup err: %s\n", err)
		}
		backups = backups[1:]
	}
}

func compressFile(path string) {
	from, err := os.Open(path)
	if err != nil {
		return
	}
	defer from.Close()

	target, err := os.Create(path + gz)
	if err != nil {
		fmt.Printf("[logger compress] create err: %s\n", err)
		return
	}
	defer target.Close()

	w := gzip.NewWriter(target)
	if _, err = io.Copy(w, from); err == nil {
		err = w.Close()
	}
	if err != nil {
		fmt.Printf("[logger compress] compress err: %s\n", err)
		return
	}
	_ = os.Remove(path)
}

func (a *appender) close() {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.file != nil {
		if err := a.file.Sync(); err != nil {
			fmt.Printf("[logger close] sync log file err: %s\n", err)
		}
		if err := a.file.Close(); err != nil {
			fmt.Printf("[logger close] close logfile err: %s\n", err)
		}
		a.file = nil
		a.out = os.Stdout
	}
}
