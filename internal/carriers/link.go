package carriers

import (
	"net/url"
	"strings"
)

// BuildTrackingURL inserts a tracking number into a carrier's tracking link
// template:
//
//   - a fragment (or a trailing '#') gets the number appended
//   - query parameters with an empty value are filled with the number
//   - a base ending in '?' without parameters gets "?<number>="
//   - other query strings get an extra tracking_number parameter
//   - otherwise the number is appended as a path segment
//
// Parameter order of the template is preserved.
func BuildTrackingURL(base, trackingNumber string) string {
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		return base + trackingNumber
	}

	if strings.HasSuffix(base, "#") || u.Fragment != "" {
		u.Fragment += trackingNumber
		return u.String()
	}

	escaped := url.QueryEscape(trackingNumber)

	if u.RawQuery != "" {
		pairs := strings.Split(u.RawQuery, "&")
		filled := false
		for i, pair := range pairs {
			key, value, _ := strings.Cut(pair, "=")
			if key != "" && value == "" {
				pairs[i] = key + "=" + escaped
				filled = true
			}
		}
		if !filled {
			pairs = append(pairs, "tracking_number="+escaped)
		}
		u.RawQuery = strings.Join(pairs, "&")
		return u.String()
	}

	if u.ForceQuery {
		u.ForceQuery = false
		u.RawQuery = escaped + "="
		return u.String()
	}

	if strings.HasSuffix(u.Path, "/") {
		u.Path += trackingNumber
	} else {
		u.Path += "/" + trackingNumber
	}
	return u.String()
}
