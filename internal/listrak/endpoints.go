package listrak

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Symbolic names of the Listrak operations the connector calls.
const (
	CustomerImport       = "CUSTOMER_IMPORT"
	OrderImport          = "ORDER_IMPORT"
	ContactCreate        = "CONTACT_CREATE"
	ListGet              = "LIST_GET"
	TransactionalMessage = "TRANSACTIONAL_MESSAGE"
)

// Endpoint is a method and a path template relative to the API base URL.
// Placeholders in braces are filled from request segments in order.
type Endpoint struct {
	Method string
	Path   string
}

var endpoints = map[string]Endpoint{
	CustomerImport:       {Method: http.MethodPost, Path: "/data/v1/Customer/"},
	OrderImport:          {Method: http.MethodPost, Path: "/data/v1/Order/"},
	ContactCreate:        {Method: http.MethodPost, Path: "/email/v1/List/{listId}/Contact"},
	ListGet:              {Method: http.MethodGet, Path: "/email/v1/List/"},
	TransactionalMessage: {Method: http.MethodPost, Path: "/email/v1/List/{listId}/TransactionalMessage/{messageId}/Message"},
}

// Lookup returns the endpoint registered under name.
func Lookup(name string) (Endpoint, bool) {
	ep, ok := endpoints[name]
	return ep, ok
}

// ResolvePath fills placeholders with segments, appends the remaining
// segments and encodes query in key order so the result is stable.
func (e Endpoint) ResolvePath(segments []string, query map[string]string) string {
	path := e.Path
	rest := segments
	for len(rest) > 0 {
		open := strings.IndexByte(path, '{')
		if open < 0 {
			break
		}
		end := strings.IndexByte(path[open:], '}')
		if end < 0 {
			break
		}
		path = path[:open] + url.PathEscape(rest[0]) + path[open+end+1:]
		rest = rest[1:]
	}
	for _, seg := range rest {
		path = strings.TrimSuffix(path, "/") + "/" + url.PathEscape(seg)
	}

	if len(query) == 0 {
		return path
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	values := url.Values{}
	for _, k := range keys {
		values.Set(k, query[k])
	}
	return path + "?" + values.Encode()
}
