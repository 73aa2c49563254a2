// Package report persists validation reports as JSON, Markdown and HTML.
//
// Every run gets a fresh file stem derived from the page name and the run
// timestamp. Files are created exclusively, so a run never overwrites an
// earlier report.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ShayCichocki/vizguard/pkg/models"
)

// TimestampLayout is the timestamp portion of report file names.
const TimestampLayout = "20060102T150405.000000000Z"

// Paths lists the files written for one report. Empty fields were not written.
type Paths struct {
	JSON     string `json:"json"`
	Markdown string `json:"markdown"`
	HTML     string `json:"html,omitempty"`
}

// Primary returns the most useful path to show a user.
func (p Paths) Primary() string {
	if p.Markdown != "" {
		return p.Markdown
	}
	return p.JSON
}

// Writer writes reports into a directory.
type Writer struct {
	dir  string
	html bool
}

// NewWriter creates a Writer for dir. HTML output is optional.
func NewWriter(dir string, html bool) *Writer {
	return &Writer{dir: dir, html: html}
}

// Dir returns the report directory.
func (w *Writer) Dir() string {
	return w.dir
}

// Write persists r. On a partial failure the returned Paths lists the files
// that were written before the error.
func (w *Writer) Write(r *models.ValidationReport) (Paths, error) {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return Paths{}, fmt.Errorf("create report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return Paths{}, fmt.Errorf("marshal report: %w", err)
	}

	stem := Stem(r)
	exts := []string{".json", ".md"}
	if w.html {
		exts = append(exts, ".html")
	}
	files, err := createExclusive(w.dir, stem, exts)
	if err != nil {
		return Paths{}, err
	}

	var paths Paths
	if err := writeAndClose(files[0], data); err != nil {
		closeAndRemove(files)
		return Paths{}, fmt.Errorf("write JSON report: %w", err)
	}
	paths.JSON = files[0].Name()

	md := RenderMarkdown(r, w.dir)
	if err := writeAndClose(files[1], md); err != nil {
		closeAndRemove(files[1:])
		return paths, fmt.Errorf("write Markdown report: %w", err)
	}
	paths.Markdown = files[1].Name()

	if w.html {
		page, err := RenderHTML(fmt.Sprintf("Visual validation: %s", r.PageName), md)
		if err == nil {
			err = writeAndClose(files[2], page)
		}
		if err != nil {
			closeAndRemove(files[2:])
			return paths, fmt.Errorf("write HTML report: %w", err)
		}
		paths.HTML = files[2].Name()
	}
	return paths, nil
}

// Stem returns the collision-free base name (before suffixing) for r.
func Stem(r *models.ValidationReport) string {
	page := r.PageName
	if page == "" {
		page = "page"
	}
	return fmt.Sprintf("%s-%s", Slug(page), r.Timestamp.UTC().Format(TimestampLayout))
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases s and collapses anything outside [a-z0-9] to '-'.
func Slug(s string) string {
	s = slugUnsafe.ReplaceAllString(strings.ToLower(s), "-")
	return strings.Trim(s, "-")
}

// createExclusive opens one new file per extension sharing a stem. When any
// name is taken, a numeric suffix is added and every file retried.
func createExclusive(dir, stem string, exts []string) ([]*os.File, error) {
	for n := 0; n < 1000; n++ {
		base := stem
		if n > 0 {
			base = fmt.Sprintf("%s-%d", stem, n)
		}

		var files []*os.File
		taken := false
		for _, ext := range exts {
			f, err := os.OpenFile(filepath.Join(dir, base+ext), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
			if errors.Is(err, fs.ErrExist) {
				taken = true
				break
			}
			if err != nil {
				closeAndRemove(files)
				return nil, fmt.Errorf("create report file: %w", err)
			}
			files = append(files, f)
		}
		if taken {
			closeAndRemove(files)
			continue
		}
		return files, nil
	}
	return nil, fmt.Errorf("create report file: too many reports named %s", stem)
}

func writeAndClose(f *os.File, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func closeAndRemove(files []*os.File) {
	for _, f := range files {
		f.Close()
		os.Remove(f.Name())
	}
}
