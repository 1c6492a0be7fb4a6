package driver

import "regexp"

var namedParamPattern = regexp.MustCompile(`:[a-zA-Z_][a-zA-Z0-9_]*`)

// RewriteNamedParams scans sql for ":name" placeholders in left-to-right
// order and replaces each occurrence with the driver-native positional
// placeholder produced by nextPlaceholder(occurrenceIndex). It returns
// the rewritten SQL together with paramOrder, the bind name for each
// positional slot in the order the underlying driver expects its
// argument list — a name repeated in the SQL appears once per
// occurrence, so binding it once still fills every slot.
func RewriteNamedParams(sql string, nextPlaceholder func(index int) string) (rewritten string, paramOrder []string) {
	index := 0
	rewritten = namedParamPattern.ReplaceAllStringFunc(sql, func(match string) string {
		paramOrder = append(paramOrder, match[1:])
		placeholder := nextPlaceholder(index)
		index++
		return placeholder
	})
	return rewritten, paramOrder
}

// OrderArgs maps a bound-by-name parameter set onto the positional
// argument slice a database/sql call expects, following paramOrder.
// Binding a name that never appears in paramOrder is silently unused;
// an occurrence whose name was never bound yields a nil argument.
func OrderArgs(paramOrder []string, bound map[string]any) []any {
	args := make([]any, len(paramOrder))
	for i, name := range paramOrder {
		args[i] = bound[name]
	}
	return args
}
