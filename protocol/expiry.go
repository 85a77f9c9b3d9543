package protocol

import "time"

// Commands go stale quickly: an old task.assign must not move a robot.
var defaultTTLs = map[string]time.Duration{
	TypeRobotCreate: time.Minute,
	TypeTaskAssign:  time.Minute,
	TypeRobotCharge: time.Minute,

	TypeCommandResult: 5 * time.Minute,
	TypeFleetEvent:    30 * time.Minute,
}

// FallbackTTL is used when no specific TTL is configured.
const FallbackTTL = 10 * time.Minute

func DefaultTTLFor(msgType string) time.Duration {
	if ttl, ok := defaultTTLs[msgType]; ok {
		return ttl
	}
	return FallbackTTL
}

func IsExpired(env *Envelope) bool {
	if env.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(env.ExpiresAt)
}

// IsExpiredHeader checks expiry using only the raw header.
func IsExpiredHeader(hdr *RawHeader) bool {
	if hdr.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().UTC().After(hdr.ExpiresAt)
}
