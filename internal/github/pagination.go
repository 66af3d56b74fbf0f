package github

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPageSize is the largest page GitHub serves.
const DefaultPageSize = 100

// FetchAllPages requests path page by page and concatenates the array results. It stops on
// a page shorter than pageSize, an empty page, or a 404, which is treated as no more data.
func FetchAllPages[T any](ctx context.Context, r Requester, credential, path string, params url.Values, pageSize int) ([]T, error) {
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}

	var all []T
	for page := 1; ; page++ {
		query := cloneValues(params)
		query.Set("per_page", strconv.Itoa(pageSize))
		query.Set("page", strconv.Itoa(page))

		var items []T
		if _, err := r.Get(ctx, credential, path, query, &items); err != nil {
			if IsNotFound(err) {
				return all, nil
			}
			return nil, err
		}

		all = append(all, items...)
		if len(items) < pageSize {
			return all, nil
		}
	}
}

// HasNextPage reports whether the RFC 8288 Link header carries a rel="next" target.
func HasNextPage(header http.Header) bool {
	for _, link := range header.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			segments := strings.Split(part, ";")
			if len(segments) < 2 || !strings.HasPrefix(strings.TrimSpace(segments[0]), "<") {
				continue
			}
			for _, param := range segments[1:] {
				key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
				if !ok || !strings.EqualFold(strings.TrimSpace(key), "rel") {
					continue
				}
				for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(value), `"`)) {
					if strings.EqualFold(rel, "next") {
						return true
					}
				}
			}
		}
	}
	return false
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
