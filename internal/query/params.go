package query

import (
	"net/url"
	"strings"
)

// Reserved control keys. They shape the query but are never filters.
const (
	KeyPage   = "page"
	KeyLimit  = "limit"
	KeySort   = "sort"
	KeyFields = "fields"
)

var reserved = map[string]bool{KeyPage: true, KeyLimit: true, KeySort: true, KeyFields: true}

// IsReserved reports whether key is a control key rather than a filter.
func IsReserved(key string) bool {
	return reserved[key]
}

// Param is one query-string key. Values holds plain key=value occurrences,
// Ops holds bracketed key[op]=value occurrences keyed by op.
type Param struct {
	Values []string
	Ops    map[string][]string
}

// Params is the parsed, untrusted parameter bag of a request.
type Params map[string]*Param

// ParseParams groups url.Values by field, turning price[gte]=500 into
// Params{"price": {Ops: {"gte": ["500"]}}}.
func ParseParams(values url.Values) Params {
	p := make(Params, len(values))
	for key, vals := range values {
		name, op, bracketed := splitKey(key)
		if name == "" {
			continue
		}
		param := p.param(name)
		if bracketed {
			if param.Ops == nil {
				param.Ops = make(map[string][]string)
			}
			param.Ops[op] = append(param.Ops[op], vals...)
			continue
		}
		param.Values = append(param.Values, vals...)
	}
	return p
}

func splitKey(key string) (name, op string, bracketed bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return key, "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

func (p Params) param(name string) *Param {
	param, ok := p[name]
	if !ok {
		param = &Param{}
		p[name] = param
	}
	return param
}

// Get returns the first plain value of key, or "".
func (p Params) Get(key string) string {
	if param, ok := p[key]; ok && len(param.Values) > 0 {
		return param.Values[0]
	}
	return ""
}

// Set replaces every value of key with value.
func (p Params) Set(key, value string) {
	p[key] = &Param{Values: []string{value}}
}

// Clone returns a copy that can be modified without touching p.
func (p Params) Clone() Params {
	c := make(Params, len(p))
	for k, v := range p {
		cp := &Param{Values: append([]string(nil), v.Values...)}
		if v.Ops != nil {
			cp.Ops = make(map[string][]string, len(v.Ops))
			for op, vals := range v.Ops {
				cp.Ops[op] = append([]string(nil), vals...)
			}
		}
		c[k] = cp
	}
	return c
}
