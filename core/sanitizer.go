package core

import (
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
	"github.com/thoas/go-funk"
)

// volatileKeys field names blanked before comparing responses
var volatileKeys = []string{"traceid", "token", "sign"}

// opaqueLength strings at least this long are treated as nonces
const opaqueLength = 30

var timestampPattern = regexp.MustCompile(`\d{10,13}`)

// Sanitize flatten and blank volatile fields so two responses compare by shape
func Sanitize(obj *Object) *Object {
	out := NewObject()
	Flatten(obj).Each(func(k string, v interface{}) bool {
		out.Set(k, sanitizeValue(k, v))
		return true
	})
	return out
}

func sanitizeValue(key string, value interface{}) interface{} {
	name := strings.ToLower(strings.ReplaceAll(key, "-", ""))
	if funk.ContainsString(volatileKeys, name) {
		return ""
	}
	if IsTimestamp(value) {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return value
	}
	if strings.HasPrefix(s, "http") || strings.Contains(s, "://") {
		return stripLongParams(s)
	}
	if utf8.RuneCountInString(s) >= opaqueLength {
		return ""
	}
	return s
}

// stripLongParams remove long query values from an URL string
func stripLongParams(raw string) string {
	i := strings.Index(raw, "?")
	if i < 0 {
		return raw
	}
	query := raw[i+1:]
	if j := strings.Index(query, "#"); j >= 0 {
		query = query[:j]
	}
	result := raw
	for _, p := range parsePairs(query, false) {
		if utf8.RuneCountInString(p.Value) >= opaqueLength {
			result = strings.ReplaceAll(result, p.Value, "")
		}
	}
	return result
}

// IsTimestamp first 10 to 13 digit run is a unix time in seconds or milliseconds
func IsTimestamp(value interface{}) bool {
	if value == nil {
		return false
	}
	m := timestampPattern.FindString(Stringify(value))
	if len(m) != 10 && len(m) != 13 {
		return false
	}
	ts, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return false
	}
	if len(m) == 13 {
		ts = ts / 1000
	}
	year := time.Unix(ts, 0).UTC().Year()
	return year >= 1970 && year <= 9999
}

// SameShape compare two sanitized bodies after masking their own token values
func SameShape(a *Object, b *Object, maskA string, maskB string) bool {
	left := maskedJSON(Sanitize(a), maskA)
	right := maskedJSON(Sanitize(b), maskB)

	var l, r interface{}
	errL := jsoniter.UnmarshalFromString(left, &l)
	errR := jsoniter.UnmarshalFromString(right, &r)
	if errL != nil || errR != nil {
		return left == right
	}
	return reflect.DeepEqual(l, r)
}

func maskedJSON(obj *Object, mask string) string {
	data, err := obj.MarshalJSON()
	if err != nil {
		return ""
	}
	text := string(data)
	if mask != "" {
		text = strings.ReplaceAll(text, mask, "")
	}
	return text
}
