package config

import (
	"net/url"
	"strings"

	"github.com/spf13/viper"
)

const redacted = "***REDACTED***"

var redactKeys = map[string]struct{}{
	"password":         {},
	"api_key":          {},
	"apikey":           {},
	"optimism_api_key": {},
	"arbitrum_api_key": {},
	"private_key":      {},
	"secret":           {},
}

// Redacted returns every setting with credentials masked. RPC URLs keep only
// scheme and host since providers embed keys in the path.
func Redacted(v *viper.Viper) map[string]any {
	return redactValue("", v.AllSettings()).(map[string]any)
}

func redactValue(key string, v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			if _, ok := redactKeys[strings.ToLower(k)]; ok {
				if s, isStr := vv.(string); isStr && s == "" {
					out[k] = ""
					continue
				}
				out[k] = redacted
				continue
			}
			out[k] = redactValue(k, vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = redactValue(key, t[i])
		}
		return out
	case string:
		if key == "optimism" || key == "arbitrum" {
			return redactURL(t)
		}
		return t
	default:
		return v
	}
}

func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return redacted
	}
	if u.Path == "" && u.RawQuery == "" && u.User == nil {
		return u.Scheme + "://" + u.Host
	}
	return u.Scheme + "://" + u.Host + "/" + redacted
}
