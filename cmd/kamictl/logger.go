package main

import (
	"log/slog"
	"os"
	"strings"
)

// initLogger sends diagnostics to stderr so command output stays pipeable.
func initLogger(logLevel string) {
	var level slog.Level
	name := strings.TrimSuffix(strings.ToUpper(logLevel), "ING") // WARNING -> WARN
	if err := level.UnmarshalText([]byte(name)); err != nil {
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
