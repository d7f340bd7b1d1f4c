package api

import "sort"

func sourceOrUnknown(src string) string {
	if src == "" {
		return "unknown"
	}
	return src
}

func sortedStrings(s []string) []string {
	sort.Strings(s)
	return s
}
