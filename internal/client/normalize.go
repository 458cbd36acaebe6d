package client

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"
)

// listKeys are the wrapper fields a list response may nest its array under.
var listKeys = []string{"results", "products", "items", "data"}

// NormalizeList unwraps a list response. It accepts a bare array or an
// object with the array under one of listKeys; any other shape yields an
// empty, non-nil slice. Non-object elements are dropped.
func NormalizeList(body []byte) []json.RawMessage {
	out := []json.RawMessage{}
	if !gjson.ValidBytes(body) {
		return out
	}

	arr := gjson.ParseBytes(body)
	if !arr.IsArray() {
		nested := gjson.Result{}
		for _, key := range listKeys {
			if r := arr.Get(key); r.IsArray() {
				nested = r
				break
			}
		}
		arr = nested
	}
	if !arr.IsArray() {
		return out
	}

	arr.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			out = append(out, json.RawMessage(v.Raw))
		}
		return true
	})
	return out
}

// decodeList decodes every element NormalizeList finds, skipping elements
// that do not fit T.
func decodeList[T any](body []byte) []T {
	raws := NormalizeList(body)
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			slog.Warn("skipping malformed list element", "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

// decodeObject decodes a single-object response, unwrapping it from one of
// wrapKeys when the server nests it.
func decodeObject[T any](body []byte, wrapKeys ...string) (*T, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("decoding response: invalid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("decoding response: expected object")
	}

	raw := root.Raw
	for _, key := range wrapKeys {
		if r := root.Get(key); r.IsObject() {
			raw = r.Raw
			break
		}
	}

	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &v, nil
}

// firstString returns the first non-empty string field among keys.
func firstString(body []byte, keys ...string) string {
	for _, key := range keys {
		if r := gjson.GetBytes(body, key); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

// extractMessage pulls a human-readable error message out of an error body.
func extractMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	if msg := firstString(body, "error", "message", "detail", "error.message"); msg != "" {
		return msg
	}
	return ""
}
