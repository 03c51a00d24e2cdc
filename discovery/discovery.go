// Package discovery finds page routes in a Next.js style app directory.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// Route is a page route found on disk.
type Route struct {
	RoutePath  string   `json:"routePath"`
	FilePath   string   `json:"filePath"`
	IsDynamic  bool     `json:"isDynamic"`
	IsCatchAll bool     `json:"isCatchAll"`
	Params     []string `json:"params"`
}

var pageFiles = map[string]bool{
	"page.tsx": true,
	"page.jsx": true,
	"page.ts":  true,
	"page.js":  true,
}

var skipDirs = map[string]bool{
	"node_modules": true,
	".next":        true,
	".git":         true,
}

// Discover walks appDir inside fsys and returns one Route per page file,
// sorted by route path. A missing appDir yields no routes.
func Discover(fsys fs.FS, appDir string) ([]Route, error) {
	appDir = path.Clean(strings.TrimPrefix(appDir, "/"))

	seen := make(map[string]bool)
	var routes []Route
	err := fs.WalkDir(fsys, appDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if p != appDir && (skipDirs[name] || strings.HasPrefix(name, "_")) {
				return fs.SkipDir
			}
			return nil
		}
		if !pageFiles[d.Name()] {
			return nil
		}
		rel := strings.TrimPrefix(path.Dir(p), appDir)
		r := toRoute(rel)
		if seen[r.RoutePath] {
			return nil
		}
		seen[r.RoutePath] = true
		r.FilePath = p
		routes = append(routes, r)
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []Route{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("discover routes in %s: %w", appDir, err)
	}

	sort.Slice(routes, func(i, j int) bool { return routes[i].RoutePath < routes[j].RoutePath })
	if routes == nil {
		routes = []Route{}
	}
	return routes, nil
}

// toRoute converts a directory path relative to the app dir into a route.
// Route groups "(name)" and parallel slots "@name" do not appear in URLs.
func toRoute(dir string) Route {
	r := Route{Params: []string{}}
	var segments []string
	for _, seg := range strings.Split(dir, "/") {
		switch {
		case seg == "" || seg == ".":
			continue
		case strings.HasPrefix(seg, "(") && strings.HasSuffix(seg, ")"):
			continue
		case strings.HasPrefix(seg, "@"):
			continue
		case strings.HasPrefix(seg, "[[...") && strings.HasSuffix(seg, "]]"):
			r.Params = append(r.Params, seg[5:len(seg)-2])
			r.IsDynamic, r.IsCatchAll = true, true
		case strings.HasPrefix(seg, "[...") && strings.HasSuffix(seg, "]"):
			r.Params = append(r.Params, seg[4:len(seg)-1])
			r.IsDynamic, r.IsCatchAll = true, true
		case strings.HasPrefix(seg, "[") && strings.HasSuffix(seg, "]"):
			r.Params = append(r.Params, seg[1:len(seg)-1])
			r.IsDynamic = true
		}
		segments = append(segments, seg)
	}
	r.RoutePath = "/" + strings.Join(segments, "/")
	return r
}

// ExamplePaths returns n concrete paths for a dynamic route, or the route
// path itself for a static one.
func ExamplePaths(r Route, n int) []string {
	if !r.IsDynamic {
		return []string{r.RoutePath}
	}
	if n <= 0 {
		n = 3
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var b strings.Builder
		for _, seg := range strings.Split(r.RoutePath, "/") {
			switch {
			case seg == "":
				continue
			case strings.HasPrefix(seg, "[[...") || strings.HasPrefix(seg, "[..."):
				fmt.Fprintf(&b, "/example-%d-part-1/example-%d-part-2", i, i)
			case strings.HasPrefix(seg, "["):
				fmt.Fprintf(&b, "/example-%d", i)
			default:
				b.WriteString("/" + seg)
			}
		}
		if b.Len() == 0 {
			b.WriteString("/")
		}
		out = append(out, b.String())
	}
	return out
}
