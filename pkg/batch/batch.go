// Package batch drives the frame pipeline over a directory of images:
// metadata read, compose, persist, one file at a time in filename order.
// Progress and log events flow out through caller-supplied callbacks, so any
// presentation layer can sit on top without the core knowing about it.
package batch

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"photoframe/pkg/frame"
	"photoframe/pkg/metadata"
	"photoframe/pkg/persist"
)

// imageExtensions are the file types processed, matched case-insensitively.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".png":  true,
}

// ProgressFunc receives (done, total, current file name). It is called once
// with done=0 and current="" before the loop starts, then once after every
// file.
type ProgressFunc func(done, total int, current string)

// LogFunc receives one human-readable line per saved file, per failure, and
// a final summary.
type LogFunc func(line string)

// Override replaces both metadata fields of a file wholesale; there is no
// partial override.
type Override struct {
	Date  string
	Title string
}

// Result is the aggregate outcome of a run.
type Result struct {
	Succeeded int
	Total     int
}

// Failed is the number of files that did not produce an output.
func (r Result) Failed() int {
	return r.Total - r.Succeeded
}

// Entry is one row of a metadata-only scan.
type Entry struct {
	Name  string
	Date  string
	Title string
}

// Runner processes one input directory sequentially. The zero value runs
// with default layout parameters, fonts resolved from the default candidate
// chain, and log lines going to the standard logger.
type Runner struct {
	Params     frame.Params
	Fonts      *frame.FontSet
	Overrides  map[string]Override // keyed by full source file path
	OnProgress ProgressFunc
	OnLog      LogFunc
}

// Run frames every image directly inside inDir into outDir. Only an invalid
// input directory is a hard failure; per-file errors are counted, logged,
// and skipped so one bad file never aborts the batch.
func (r *Runner) Run(inDir, outDir string) (Result, error) {
	fi, err := os.Stat(inDir)
	if err != nil || !fi.IsDir() {
		return Result{}, fmt.Errorf("input directory not found: %s", inDir)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output directory: %w", err)
	}

	files, err := ListImages(inDir)
	if err != nil {
		return Result{}, err
	}

	fonts := r.Fonts
	if fonts == nil {
		fonts = frame.NewFontSet(frame.DefaultFontConfig(), r.Params)
	}

	res := Result{Total: len(files)}
	r.progress(0, res.Total, "")

	for i, name := range files {
		path := filepath.Join(inDir, name)
		if err := r.processFile(path, outDir, fonts); err != nil {
			r.logf("ERROR: %s: %v", name, err)
		} else {
			res.Succeeded++
		}
		r.progress(i+1, res.Total, name)
	}

	r.logf("Processed %d file(s): %d succeeded, %d failed", res.Total, res.Succeeded, res.Failed())
	return res, nil
}

// processFile runs the full pipeline for a single image. Any error is
// per-file and isolated by the caller.
func (r *Runner) processFile(path, outDir string, fonts *frame.FontSet) error {
	var meta metadata.Metadata
	if ov, ok := r.Overrides[path]; ok {
		meta = metadata.Metadata{Date: ov.Date, Title: ov.Title}
	} else {
		meta = metadata.Read(path)
	}

	img, err := frame.Open(path)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}

	canvas := frame.Compose(img, meta.Date, meta.Title, r.Params, fonts)

	outPath, err := persist.Save(canvas, path, outDir)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	r.logf("Saved %s", outPath)
	return nil
}

// Scan reads metadata for every image in dir without writing anything, in
// the same deterministic order Run would process them.
func Scan(dir string) ([]Entry, error) {
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("input directory not found: %s", dir)
	}

	files, err := ListImages(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(files))
	for _, name := range files {
		m := metadata.Read(filepath.Join(dir, name))
		entries = append(entries, Entry{Name: name, Date: m.Date, Title: m.Title})
	}
	return entries, nil
}

// ListImages enumerates the image files directly inside dir (non-recursive),
// sorted by filename for reproducible ordering.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func (r *Runner) progress(done, total int, current string) {
	if r.OnProgress != nil {
		r.OnProgress(done, total, current)
	}
}

func (r *Runner) logf(format string, args ...interface{}) {
	line := fmt.Sprintf(format, args...)
	if r.OnLog != nil {
		r.OnLog(line)
	} else {
		log.Println(line)
	}
}
