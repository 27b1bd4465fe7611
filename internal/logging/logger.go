// Package logging configures the process-wide logrus logger: level, output
// file (rotated by size), and formatter.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Config holds logger configuration. The crawler CLI sets only Level, from
// its --verbose flag; `runner.log_dir` and `runner.log_level` are not read
// into it.
type Config struct {
	Level      string // "debug", "info", "warn", "error"
	OutputFile string // empty = stdout only
	MaxSize    int64  // bytes before rotation; default 10MB
	MaxBackups int    // rotated files to keep; default 3
	JSONFormat bool
}

// New builds a logrus.Logger writing to stdout and, if OutputFile is set, to
// a size-rotated log file.
func New(cfg Config) (*logrus.Logger, error) {
	if cfg.MaxSize == 0 {
		cfg.MaxSize = 10 * 1024 * 1024
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}

	log := logrus.New()
	log.SetLevel(parseLevel(cfg.Level))

	if cfg.JSONFormat {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	writers := []io.Writer{os.Stdout}

	if cfg.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.OutputFile), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		if err := rotateIfNeeded(cfg.OutputFile, cfg.MaxSize, cfg.MaxBackups); err != nil {
			return nil, fmt.Errorf("rotate log file: %w", err)
		}
		file, err := os.OpenFile(cfg.OutputFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}

	log.SetOutput(io.MultiWriter(writers...))
	return log, nil
}

// rotateIfNeeded renames path to a numbered backup chain when it exceeds
// maxSize, keeping at most maxBackups old files.
func rotateIfNeeded(path string, maxSize int64, maxBackups int) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < maxSize {
		return nil
	}

	for i := maxBackups - 1; i >= 1; i-- {
		oldPath := fmt.Sprintf("%s.%d", path, i)
		newPath := fmt.Sprintf("%s.%d", path, i+1)
		if _, err := os.Stat(oldPath); err == nil {
			os.Rename(oldPath, newPath)
		}
	}
	return os.Rename(path, path+".1")
}

// DefaultOutputFile builds a timestamped log file path under dir, e.g. for
// the `runner.log_dir` TOML setting.
func DefaultOutputFile(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("crawler_%s.log", time.Now().Format("2006-01-02_15-04-05")))
}

func parseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
