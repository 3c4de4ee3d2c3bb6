package sqlite

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/sessionstore/internal/services/session/storage"
)

// expiryLayouts are the string forms accepted for cookie.expires, tried in
// order after the all-digits millisecond form.
var expiryLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	http.TimeFormat,
	time.RFC1123Z,
	time.RFC1123,
}

// computeExpiry returns the absolute expiry for a payload written at now.
//
// An explicit cookie expiry wins over ttl. Otherwise the record lives for
// ttl, or defaultTTL when ttl <= 0.
func computeExpiry(payload any, data []byte, now time.Time, ttl, defaultTTL time.Duration) (time.Time, error) {
	if expirer, ok := payload.(storage.CookieExpirer); ok {
		if expires, ok := expirer.CookieExpiry(); ok {
			return expires, nil
		}
	}

	expires, ok, err := cookieExpiry(data)
	if err != nil {
		return time.Time{}, err
	}
	if ok {
		return expires, nil
	}

	if ttl <= 0 {
		ttl = defaultTTL
	}
	return now.Add(ttl), nil
}

// cookieExpiry reads cookie.expires from an encoded payload. Payloads that
// are not objects, or have no cookie object, carry no explicit expiry.
func cookieExpiry(data []byte) (time.Time, bool, error) {
	var top map[string]json.RawMessage
	if !isJSONObject(data) || json.Unmarshal(data, &top) != nil {
		return time.Time{}, false, nil
	}
	rawCookie, ok := top["cookie"]
	if !ok || !isJSONObject(rawCookie) {
		return time.Time{}, false, nil
	}
	var cookie map[string]json.RawMessage
	if err := json.Unmarshal(rawCookie, &cookie); err != nil {
		return time.Time{}, false, nil
	}
	rawExpires, ok := cookie["expires"]
	if !ok {
		return time.Time{}, false, nil
	}
	return parseExpires(rawExpires)
}

// parseExpires accepts a millisecond timestamp (number or digit string) or a
// date string. null, false, 0 and "" mean no expiry was set.
func parseExpires(raw json.RawMessage) (time.Time, bool, error) {
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0, bytes.Equal(raw, []byte("null")), bytes.Equal(raw, []byte("false")):
		return time.Time{}, false, nil
	case raw[0] == '"':
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return time.Time{}, false, fmt.Errorf("decode cookie expires: %w", err)
		}
		return parseExpiresString(value)
	default:
		var millis float64
		if err := json.Unmarshal(raw, &millis); err != nil {
			return time.Time{}, false, fmt.Errorf("cookie expires %s is not a timestamp", raw)
		}
		if millis == 0 {
			return time.Time{}, false, nil
		}
		// float64(math.MaxInt64) rounds up to 2^63, so the upper bound is exclusive.
		if math.IsNaN(millis) || millis < math.MinInt64 || millis >= math.MaxInt64 {
			return time.Time{}, false, fmt.Errorf("cookie expires %s is out of range", raw)
		}
		return time.UnixMilli(int64(millis)).UTC(), true, nil
	}
}

func parseExpiresString(value string) (time.Time, bool, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false, nil
	}
	if millis, err := strconv.ParseInt(value, 10, 64); err == nil {
		if millis == 0 {
			return time.Time{}, false, nil
		}
		return time.UnixMilli(millis).UTC(), true, nil
	}
	for _, layout := range expiryLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			// An unset time.Time field marshals to year 1.
			if parsed.IsZero() {
				return time.Time{}, false, nil
			}
			return parsed.UTC(), true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("cookie expires %q is not a recognised date", value)
}

func isJSONObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

func timeToUnixMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func unixMillisToTime(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
