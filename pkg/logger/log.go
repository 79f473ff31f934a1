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
	"fmt"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	golocalv1 "github.com/caiflower/evhttp/pkg/golocal/v1"
	"github.com/caiflower/evhttp/pkg/syncx"
	"github.com/caiflower/evhttp/pkg/tools"
)

const (
	_trace = iota
	_debug
	_info
	_warn
	_error
	_fatal

	TraceLevel = "TRACE"
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	WarnLevel  = "WARN"
	ErrorLevel = "ERROR"
	FatalLevel = "FATAL"

	_timeFormat = "2006-01-02 15:04:05"
)

type ILog interface {
	Trace(text string, v ...interface{})
	Debug(text string, v ...interface{})
	Info(text string, v ...interface{})
	Warn(text string, v ...interface{})
	Error(text string, v ...interface{})
	Fatal(text string, v ...interface{})
}

type data struct {
	timestamp time.Time
	traceID   string
	position  string
	level     string
	content   string
}

type Config struct {
	Level          string        `yaml:"level" default:"INFO"`
	EnableTrace    bool          `yaml:"trace"`                          // 输出trace id
	QueueLength    int           `yaml:"queueLength" default:"50000"`    // 缓存队列大小
	AppenderNum    int           `yaml:"appenderNum" default:"2"`        // 日志输出协程数量
	TimeFormat     string        `yaml:"timeFormat" default:"2006-01-02 15:04:05"`
	Path           string        `yaml:"path"`                           // 为空时输出到控制台
	FileName       string        `yaml:"fileName" default:"app.log"`
	MaxSize        string        `yaml:"maxSize" default:"500MB"`        // 单个日志文件最大大小
	MaxTime        time.Duration `yaml:"maxTime" default:"24h"`          // 单个日志文件最长写入时间
	Compress       bool          `yaml:"compress"`                       // 备份日志gzip压缩
	BackupMaxCount int           `yaml:"backupMaxCount" default:"10"`    // 保留备份日志文件最大数量
	EnableColor    bool          `yaml:"color"`
}

var defaultLogger = NewLogger(&Config{EnableTrace: true})

func Trace(text string, v ...interface{}) {
	defaultLogger.log(TraceLevel, text, v...)
}
func Debug(text string, v ...interface{}) {
	defaultLogger.log(DebugLevel, text, v...)
}
func Info(text string, v ...interface{}) {
	defaultLogger.log(InfoLevel, text, v...)
}
func Warn(text string, v ...interface{}) {
	defaultLogger.log(WarnLevel, text, v...)
}
func Error(text string, v ...interface{}) {
	defaultLogger.log(ErrorLevel, text, v...)
}
func Fatal(text string, v ...interface{}) {
	defaultLogger.log(FatalLevel, text, v...)
}

type LoggerHandler struct {
	lock        sync.Locker
	level       int
	dataQueue   chan data
	appender    *appender
	running     sync.WaitGroup
	closed      int32
	enableTrace bool
}

func DefaultLogger() *LoggerHandler {
	return defaultLogger
}

func InitLogger(config *Config) {
	defaultLogger = NewLogger(config)
}

func NewLogger(config *Config) *LoggerHandler {
	if config == nil {
		config = &Config{}
	}
	if err := tools.DoTagFunc(config, []tools.FnObj{{Fn: tools.SetDefaultValueIfNil}}); err != nil {
		panic(fmt.Sprintf("[logger] invalid config: %s", err))
	}
	maxSize, err := tools.ParseSize(config.MaxSize)
	if err != nil {
		panic(fmt.Sprintf("[logger] invalid maxSize: %s", err))
	}

	lh := &LoggerHandler{
		level:       getLevel(config.Level),
		lock:        syncx.NewSpinLock(),
		dataQueue:   make(chan data, config.QueueLength),
		enableTrace: config.EnableTrace,
		appender:    newAppender(config, maxSize),
	}

	for i := 0; i < config.AppenderNum; i++ {
		lh.running.Add(1)
		go func() {
			defer lh.running.Done()
			for d := range lh.dataQueue {
				lh.appender.write(d)
			}
		}()
	}

	return lh
}

// Close flushes queued lines and releases the log file. Lines logged afterwards are dropped.
func (lh *LoggerHandler) Close() {
	lh.lock.Lock()
	if !atomic.CompareAndSwapInt32(&lh.closed, 0, 1) {
		lh.lock.Unlock()
		return
	}
	close(lh.dataQueue)
	lh.lock.Unlock()

	lh.running.Wait()
	lh.appender.close()
}

func (lh *LoggerHandler) Trace(text string, v ...interface{}) {
	lh.log(TraceLevel, text, v...)
}

func (lh *LoggerHandler) Debug(text string, v ...interface{}) {
	lh.log(DebugLevel, text, v...)
}

func (lh *LoggerHandler) Info(text string, v ...interface{}) {
	lh.log(InfoLevel, text, v...)
}

func (lh *LoggerHandler) Warn(text string, v ...interface{}) {
	lh.log(WarnLevel, text, v...)
}

func (lh *LoggerHandler) Error(text string, v ...interface{}) {
	lh.log(ErrorLevel, text, v...)
}

func (lh *LoggerHandler) Fatal(text string, v ...interface{}) {
	lh.log(FatalLevel, text, v...)
}

func getLevel(level string) int {
	switch strings.ToUpper(level) {
	case TraceLevel:
		return _trace
	case DebugLevel:
		return _debug
	case InfoLevel:
		return _info
	case WarnLevel:
		return _warn
	case ErrorLevel:
		return _error
	case FatalLevel:
		return _fatal
	default:
		return _trace
	}
}

func getLevelColor(level string) string {
	switch level {
	case TraceLevel:
		return "\033[1;37m" + level + "\033[0m"
	case DebugLevel:
		return "\033[1;36m" + level + "\033[0m"
	case InfoLevel:
		return "\033[1;32m" + level + "\033[0m"
	case WarnLevel:
		return "\033[1;33m" + level + "\033[0m"
	case ErrorLevel, FatalLevel:
		return "\033[1;31m" + level + "\033[0m"
	default:
		return level
	}
}

func (lh *LoggerHandler) log(level string, text string, v ...interface{}) {
	if lh.level > getLevel(level) || atomic.LoadInt32(&lh.closed) == 1 {
		return
	}

	_, file, line, _ := runtime.Caller(2)
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}

	d := data{
		timestamp: time.Now(),
		level:     level,
		content:   fmt.Sprintf(text, v...),
		position:  fmt.Sprintf("%s:%d", file, line),
	}
	if lh.enableTrace {
		d.traceID = golocalv1.GetTraceID()
	}

	lh.lock.Lock()
	defer lh.lock.Unlock()
	if lh.closed == 0 {
		lh.dataQueue <- d
	}
}
