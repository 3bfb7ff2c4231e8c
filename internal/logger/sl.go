package logger

import (
	"log/slog"
)

func Err(err error) slog.Attr {
	if err == nil {
		return slog.String("error", "")
	}
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// Secret hides sensitive values in logs. Only values longer than eight
// characters keep a four character prefix, so short codes are never revealed.
func Secret(key, value string) slog.Attr {
	r := "***"
	if len(value) > 8 {
		r = value[0:4] + "***"
	}
	if value == "" {
		r = "?"
	}
	return slog.Attr{
		Key:   key,
		Value: slog.StringValue(r),
	}
}

func Module(mod string) slog.Attr {
	return slog.Attr{
		Key:   "mod",
		Value: slog.StringValue(mod),
	}
}
