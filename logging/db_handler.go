package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/icodeforyou/solarcast-etl/database"
)

type LogAttrFormat string

const (
	LogAttrFormatText LogAttrFormat = "TEXT"
	LogAttrFormatJSON LogAttrFormat = "JSON"
)

type EntrySaver interface {
	SaveLogEntry(ctx context.Context, r database.LogEntryRow) error
}

// DBHandler stores records at or above minLevel in the log table.
type DBHandler struct {
	db       EntrySaver
	minLevel slog.Level
	format   LogAttrFormat
	attrs    []slog.Attr
	group    string
}

func NewDBHandler(db EntrySaver, minLevel slog.Level, format LogAttrFormat) *DBHandler {
	return &DBHandler{db: db, minLevel: minLevel, format: format}
}

func (h *DBHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < h.minLevel {
		return nil
	}

	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		attrs = append(attrs, a)
		return true
	})

	return h.db.SaveLogEntry(context.WithoutCancel(ctx), database.LogEntryRow{
		Timestamp: r.Time,
		Level:     int(r.Level),
		Message:   r.Message,
		Attrs:     h.formatAttrs(attrs),
	})
}

func (h *DBHandler) formatAttrs(attrs []slog.Attr) string {
	if len(attrs) == 0 {
		return ""
	}

	if h.format == LogAttrFormatText {
		parts := make([]string, len(attrs))
		for i, a := range attrs {
			value := strings.ReplaceAll(strings.ReplaceAll(a.Value.String(), "=", "\\="), ";", "\\;")
			parts[i] = a.Key + "=" + value
		}
		return strings.Join(parts, "; ")
	}

	values := make(map[string]string, len(attrs))
	for _, a := range attrs {
		values[a.Key] = a.Value.Resolve().String()
	}
	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Sprintf(`{"error": %q}`, err.Error())
	}
	return string(b)
}

func (h *DBHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	h2.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	if h.group != "" {
		for i := len(h.attrs); i < len(h2.attrs); i++ {
			h2.attrs[i].Key = h.group + "." + h2.attrs[i].Key
		}
	}
	return &h2
}

func (h *DBHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	if h.group != "" {
		h2.group = h.group + "." + name
	} else {
		h2.group = name
	}
	return &h2
}

func (h *DBHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.minLevel
}
