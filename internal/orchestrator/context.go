package orchestrator

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/vizguard/internal/report"
	"github.com/ShayCichocki/vizguard/pkg/models"
)

// DesignResolver finds the reference design for a page. ok is false when
// the resolver has nothing for the page.
type DesignResolver interface {
	Resolve(page string) (path string, ok bool)
}

// ExplicitResolver returns a user-supplied path when it exists.
type ExplicitResolver struct {
	Path string
}

// Resolve implements DesignResolver.
func (r ExplicitResolver) Resolve(string) (string, bool) {
	if r.Path == "" {
		return "", false
	}
	if _, err := os.Stat(r.Path); err != nil {
		return "", false
	}
	return r.Path, true
}

// designExtensions are tried in order for convention lookups.
var designExtensions = []string{".png", ".jpg", ".jpeg", ".webp"}

// ConventionResolver looks for <dir>/<page>.<ext> or a <dir>/<page>/
// directory in each configured design directory.
type ConventionResolver struct {
	Dirs []string
}

// Resolve implements DesignResolver.
func (r ConventionResolver) Resolve(page string) (string, bool) {
	if page == "" {
		return "", false
	}
	for _, dir := range r.Dirs {
		for _, ext := range designExtensions {
			p := filepath.Join(dir, page+ext)
			if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
				return p, true
			}
		}
		p := filepath.Join(dir, page)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// ResolverChain returns the first resolver's success.
type ResolverChain []DesignResolver

// Resolve implements DesignResolver.
func (c ResolverChain) Resolve(page string) (string, bool) {
	for _, r := range c {
		if p, ok := r.Resolve(page); ok {
			return p, true
		}
	}
	return "", false
}

// PageName derives a page identity from a URL path: "/" is "home",
// "/blog/post" is "blog-post".
func PageName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q must be absolute", rawURL)
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return "home", nil
	}
	p = strings.TrimSuffix(p, filepath.Ext(p))
	if slug := report.Slug(p); slug != "" {
		return slug, nil
	}
	return "home", nil
}

// tasksFile is the layout of .vizguard/tasks.yaml.
type tasksFile struct {
	Sprint string                        `yaml:"sprint"`
	Pages  map[string]models.RunMetadata `yaml:"pages"`
}

// LoadTaskMetadata reads task and sprint context for page from a tasks file.
// A missing file yields empty metadata. Page entries inherit the top-level
// sprint unless they set their own.
func LoadTaskMetadata(path, page string) (models.RunMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.RunMetadata{}, nil
		}
		return models.RunMetadata{}, fmt.Errorf("read tasks file: %w", err)
	}

	var tf tasksFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return models.RunMetadata{}, fmt.Errorf("parse tasks file %s: %w", path, err)
	}

	md := tf.Pages[page]
	if md.Sprint == "" {
		md.Sprint = tf.Sprint
	}
	return md, nil
}
