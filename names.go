package main

import "strings"

func shortName(frame string) string {
	// "com/example/App.process" → "App.process"
	// "com.example.App.process" → "App.process"
	base := strings.ReplaceAll(frame, "/", ".")
	parts := strings.Split(base, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2] + "." + parts[len(parts)-1]
	}
	return base
}

// className returns the qualifying class of a frame, "" when there is none.
//
//	"com/example/App.process" → "com.example.App"
func className(frame string) string {
	base := strings.ReplaceAll(frame, "/", ".")
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return ""
}

func matchesScope(d scopeDetails, pattern string) bool {
	return strings.Contains(d.name, pattern) || strings.Contains(d.file+"."+d.name, pattern)
}

func truncate(n, top int) int {
	if top > 0 && top < n {
		return top
	}
	return n
}
