// framed decorates photographs with a printed border, capture date, and
// title read from their metadata. It is a thin driver over pkg/batch: all
// pipeline behavior lives in the library packages.
package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"photoframe/pkg/batch"
	"photoframe/pkg/frame"
	"photoframe/pkg/lockfile"
)

var rootCmd = &cobra.Command{
	Use:   "framed",
	Short: "Add printed borders with capture date and title to photos",
	Long: `framed batch-processes a folder of JPEG/TIFF/PNG exports into new
bordered images suitable for printing. The capture date comes from EXIF and
the title from an XMP sidecar or embedded packet.`,
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the images in a folder with their capture date and title",
	RunE:  runScan,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Frame every image in a folder",
	RunE:  runBatch,
}

var (
	inputDir      string
	outputDir     string
	overridesPath string
	border        int
	bottomExtra   int
	pad           int
	dateFontSize  int
	titleFontSize int
)

func init() {
	scanCmd.Flags().StringVarP(&inputDir, "input", "i", "photo", "Input folder")

	runCmd.Flags().StringVarP(&inputDir, "input", "i", "photo", "Input folder")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "framed", "Output folder")
	runCmd.Flags().StringVar(&overridesPath, "overrides", "", "CSV file of filename,date,title overrides")
	runCmd.Flags().IntVar(&border, "border", 80, "Border thickness (px)")
	runCmd.Flags().IntVar(&bottomExtra, "bottom", 240, "Minimum bottom band height (px)")
	runCmd.Flags().IntVar(&pad, "pad", 40, "Text padding (px)")
	runCmd.Flags().IntVar(&dateFontSize, "date-font", 60, "Date font size (px)")
	runCmd.Flags().IntVar(&titleFontSize, "title-font", 80, "Title font size (px)")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	entries, err := batch.Scan(inputDir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILENAME\tCAPTURE DATE\tTITLE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.Name, orDash(e.Date), orDash(e.Title))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d image(s)\n", len(entries))
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	params := frame.Params{
		BorderPx:      border,
		BottomExtraPx: bottomExtra,
		PadPx:         pad,
		DateFontPx:    dateFontSize,
		TitleFontPx:   titleFontSize,
	}
	if err := validateParams(params); err != nil {
		return err
	}

	overrides, err := loadOverrides(overridesPath, inputDir)
	if err != nil {
		return err
	}

	lock := lockfile.ForOutputDir(outputDir)
	if err := lock.TryLock(); err != nil {
		return err
	}
	defer lock.Unlock()

	runner := &batch.Runner{
		Params:    params,
		Overrides: overrides,
		OnProgress: func(done, total int, current string) {
			if total == 0 {
				fmt.Println("No images found")
				return
			}
			if current != "" {
				fmt.Printf("[%d/%d] %s\n", done, total, current)
			}
		},
		OnLog: func(line string) {
			fmt.Println(line)
		},
	}

	res, err := runner.Run(inputDir, outputDir)
	if err != nil {
		return err
	}

	fmt.Printf("Done: %d ok, %d failed\n", res.Succeeded, res.Failed())
	return nil
}

func validateParams(p frame.Params) error {
	values := map[string]int{
		"border":     p.BorderPx,
		"bottom":     p.BottomExtraPx,
		"pad":        p.PadPx,
		"date-font":  p.DateFontPx,
		"title-font": p.TitleFontPx,
	}
	for name, v := range values {
		if v < 0 {
			return fmt.Errorf("--%s must be >= 0, got %d", name, v)
		}
	}
	return nil
}

// loadOverrides reads a CSV of filename,date,title rows. Filenames are
// resolved against the input folder so they key the same paths the runner
// processes. A header row is skipped when present.
func loadOverrides(path, inDir string) (map[string]batch.Override, error) {
	if path == "" {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open overrides file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	overrides := make(map[string]batch.Override)
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read overrides file: %w", err)
		}
		if first {
			first = false
			if len(record) > 0 && record[0] == "filename" {
				continue
			}
		}
		if len(record) < 3 || record[0] == "" {
			continue
		}
		overrides[filepath.Join(inDir, record[0])] = batch.Override{
			Date:  record[1],
			Title: record[2],
		}
	}
	return overrides, nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
