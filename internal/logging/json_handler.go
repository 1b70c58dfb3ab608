package logging

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// Run logs use short top-level keys; logs.Parse reads them back.
var jsonKeys = map[string]string{
	slog.TimeKey:    "ts",
	slog.LevelKey:   "level",
	slog.MessageKey: "msg",
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lvl,
		AddSource:   addSource,
		ReplaceAttr: replaceJSONAttr,
	})
}

func replaceJSONAttr(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return attr
	}
	if key, ok := jsonKeys[attr.Key]; ok {
		attr.Key = key
	}
	switch value := attr.Value.Any().(type) {
	case time.Time:
		attr.Value = slog.StringValue(value.UTC().Format(time.RFC3339))
	case slog.Level:
		attr.Value = slog.StringValue(strings.ToLower(value.String()))
	case *slog.Source:
		if value != nil {
			attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(value.File), value.Line))
		}
	}
	return attr
}
