package authz

import "strings"

// ResolveResourcePath substitutes every {paramName} occurrence in the
// template with the corresponding route-parameter value. Placeholder names
// match case-insensitively. Unresolved placeholders are left as literal
// text: the authority sees exactly what the template said, which makes a
// misdeclared route visible in its logs instead of silently widening or
// narrowing the check.
func ResolveResourcePath(template string, routeVars map[string]string) string {
	if template == "" || !strings.ContainsRune(template, '{') {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		close := strings.IndexByte(rest[open:], '}')
		if close < 0 {
			b.WriteString(rest)
			return b.String()
		}
		close += open

		b.WriteString(rest[:open])
		name := rest[open+1 : close]

		if value, ok := lookupVar(routeVars, name); ok {
			b.WriteString(value)
		} else {
			b.WriteString(rest[open : close+1])
		}
		rest = rest[close+1:]
	}
}

func lookupVar(routeVars map[string]string, name string) (string, bool) {
	if v, ok := routeVars[name]; ok {
		return v, true
	}
	for k, v := range routeVars {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
