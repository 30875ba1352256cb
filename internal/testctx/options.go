package testctx

import "strings"

// optionPrefix marks categories that encode delivery options, e.g.
// "option/allow-comment" becomes the flag "allowComment".
const optionPrefix = "option/"

// carryOver lists option defaults preserved from the previous context when
// the new item does not redeclare them.
var carryOver = []string{"allowComment", "allowSkipping", "exitButton", "logoutButton"}

// buildOptions turns option-prefixed categories into boolean flags,
// inheriting the carry-over defaults from the previous options.
func buildOptions(prev map[string]bool, categories []string) map[string]bool {
	out := map[string]bool{}
	declared := map[string]bool{}
	for _, c := range categories {
		if !strings.HasPrefix(c, optionPrefix) {
			continue
		}
		name := camelCase(strings.TrimPrefix(c, optionPrefix))
		if name == "" {
			continue
		}
		out[name] = true
		declared[name] = true
	}
	for _, name := range carryOver {
		if !declared[name] {
			if v, ok := prev[name]; ok {
				out[name] = v
			}
		}
	}
	return out
}

// camelCase converts "allow-comment" / "allow_comment" / "allow comment"
// into "allowComment". Segments that are already mixed-case keep their
// casing past the first character.
func camelCase(s string) string {
	segs := strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '/'
	})
	var b strings.Builder
	for i, seg := range segs {
		if i == 0 {
			b.WriteString(strings.ToLower(seg[:1]) + seg[1:])
			continue
		}
		b.WriteString(strings.ToUpper(seg[:1]) + seg[1:])
	}
	return b.String()
}
