package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "roomio"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// How long a crashed holder can keep a room serialized before the
	// advisory lock document expires.
	DefaultRoomLockTTL = 10 * time.Second

	// Business-hours fallback for rooms that do not carry their own window,
	// matching the product's 08:00-20:00 booking day.
	DefaultDefaultStartOfDay = "08:00"
	DefaultDefaultEndOfDay   = "20:00"

	DefaultPaginationLimit = 50
	MaxPaginationLimit     = 200
)

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		return DefaultPaginationLimit
	}
	if limit > MaxPaginationLimit {
		return MaxPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	if offset < 0 {
		return 0
	}
	return offset
}
