package proxyconf

import "time"

// NormalizeConnectTimeout maps non-positive values to 0, meaning the
// handshake is not bounded. Positive values pass through.
func NormalizeConnectTimeout(millis int64) int64 {
	if millis <= 0 {
		return 0
	}
	return millis
}

// ConnectTimeout converts a normalized value to a duration. 0 means none.
func ConnectTimeout(millis int64) time.Duration {
	return time.Duration(NormalizeConnectTimeout(millis)) * time.Millisecond
}
