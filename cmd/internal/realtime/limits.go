package realtime

import "time"

const (
	// Max bytes per websocket frame read (hard limit).
	maxFrameBytes = 8 << 10 // 8 KiB

	// Longest accepted profile id, origin and key.
	maxProfileIDChars = 128
	maxOriginChars    = 128
	maxKeyChars       = 256
)

const (
	heartbeatInterval = 25 * time.Second
	heartbeatTimeout  = 5 * time.Second

	// Per-connection rate limits (events per window).
	rateLimitEvents = 120
	rateLimitWindow = 10 * time.Second
)
