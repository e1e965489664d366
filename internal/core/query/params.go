// Package query builds the view-level helpers on top of the cache: a live
// view of one endpoint, a pager, a debounced server-side search, and a
// client-side filter over a live view.
package query

import (
	"net/url"
	"strconv"
	"strings"
)

// Request parameter names understood by the ERP list endpoints.
const (
	ParamPage     = "page"
	ParamPageSize = "page_size"
	ParamSearch   = "search"
	ParamOrderBy  = "order_by"
	ParamOrderDir = "order_dir"
)

// WithParams merges params into the query string of key. Empty values are
// dropped. The result is stable for equal inputs so that identical requests
// share one cache entry.
func WithParams(key string, params url.Values) string {
	path, rawQuery, _ := strings.Cut(key, "?")

	merged, err := url.ParseQuery(rawQuery)
	if err != nil {
		merged = url.Values{}
	}
	for k, vs := range params {
		merged.Del(k)
		for _, v := range vs {
			if v != "" {
				merged.Add(k, v)
			}
		}
	}

	if len(merged) == 0 {
		return path
	}
	return path + "?" + merged.Encode()
}

func pageParams(page, size int) url.Values {
	return url.Values{
		ParamPage:     {strconv.Itoa(page)},
		ParamPageSize: {strconv.Itoa(size)},
	}
}
