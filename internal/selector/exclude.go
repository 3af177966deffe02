package selector

import (
	"path"
	"strings"
)

// compileExcludes turns gitignore-style lines into glob patterns. Blank
// lines, comments and negations are dropped.
func compileExcludes(lines []string) []string {
	seen := make(map[string]bool, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		p := toGlob(line)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// toGlob converts one gitignore line. A leading "**/" marks a pattern that
// may start at any depth, a trailing "/**" one that only matches directories:
//
//	node_modules  -> **/node_modules
//	build/        -> **/build/**
//	/dist         -> dist
//	vendor/cache  -> vendor/cache
//	*.min.js      -> **/*.min.js
//
// As in gitignore, a leading or inner slash anchors the pattern to the
// repository root.
func toGlob(line string) string {
	line = strings.TrimRight(line, " \t")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}

	dirOnly := strings.HasSuffix(line, "/")
	p := strings.TrimRight(line, "/")

	anyDepth := false
	if rest, ok := strings.CutPrefix(p, "**/"); ok {
		p, anyDepth = rest, true
	} else if rest, ok := strings.CutPrefix(p, "/"); ok {
		p = rest
	} else if !strings.Contains(p, "/") {
		anyDepth = true
	}
	if p == "" || p == "**" {
		return ""
	}

	if anyDepth {
		p = "**/" + p
	}
	if dirOnly {
		p += "/**"
	}
	return p
}

// excluded reports whether the slash-separated repository path p, or any
// directory containing it, matches a compiled pattern.
func excluded(p string, patterns []string) bool {
	segs := strings.Split(p, "/")
	for _, pat := range patterns {
		core, anyDepth := strings.CutPrefix(pat, "**/")
		core, dirOnly := strings.CutSuffix(core, "/**")
		width := strings.Count(core, "/") + 1

		last := 0
		if anyDepth {
			last = len(segs) - width
		}
		for start := 0; start <= last; start++ {
			end := start + width
			if end > len(segs) || (dirOnly && end == len(segs)) {
				break
			}
			if ok, _ := path.Match(core, strings.Join(segs[start:end], "/")); ok {
				return true
			}
		}
	}
	return false
}
