package observability

import (
	"time"

	"go.uber.org/zap"
)

// Field aliases so callers outside this package do not need a direct zap
// import for the common cases.

// String constructs a string log field.
func String(key, value string) zap.Field { return zap.String(key, value) }

// Int constructs an int log field.
func Int(key string, value int) zap.Field { return zap.Int(key, value) }

// Int64 constructs an int64 log field.
func Int64(key string, value int64) zap.Field { return zap.Int64(key, value) }

// Float64 constructs a float64 log field.
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }

// Bool constructs a bool log field.
func Bool(key string, value bool) zap.Field { return zap.Bool(key, value) }

// Duration constructs a duration log field.
func Duration(key string, value time.Duration) zap.Field { return zap.Duration(key, value) }

// Time constructs a time log field.
func Time(key string, value time.Time) zap.Field { return zap.Time(key, value) }

// Error constructs an error log field.
func Error(err error) zap.Field { return zap.Error(err) }
