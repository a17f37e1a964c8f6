package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"dotsnatch-go/internal/config"
	"dotsnatch-go/internal/detect"
	"dotsnatch-go/internal/frame"
	"dotsnatch-go/internal/preview"
	"dotsnatch-go/internal/system"
	"dotsnatch-go/internal/zone"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

type scanResult struct {
	File       string  `json:"file"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Found      bool    `json:"found"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Confidence float64 `json:"confidence"`
	Zone       string  `json:"zone"`
	Seeds      int     `json:"seeds"`
	DetectMS   float64 `json:"detect_ms"`
}

func main() {
	path := flag.String("path", "", "Image file or directory of images")
	configPath := flag.String("config", "", "YAML file with params and zones")
	annotate := flag.String("annotate", "", "Directory for annotated JPEG copies, empty disables")
	flag.Parse()

	if *path == "" {
		log.Fatal("missing -path")
	}

	params := detect.DefaultParams()
	params.Workers = system.DefaultWorkers()
	var zones []zone.Zone
	if *configPath != "" {
		fc, err := config.Load(*configPath, params)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		params = *fc.Params
		zones = fc.Zones
	}

	files, err := listFiles(*path)
	if err != nil {
		log.Fatalf("list files: %v", err)
	}
	if *annotate != "" {
		if err := os.MkdirAll(*annotate, 0o755); err != nil {
			log.Fatalf("create annotate dir: %v", err)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	var found int
	for _, file := range files {
		grid, err := loadGrid(file)
		if err != nil {
			log.Printf("read %s: %v", file, err)
			continue
		}

		fileZones := zones
		if len(fileZones) == 0 {
			fileZones = zone.Defaults(grid.Format)
		}
		classifier, err := zone.NewClassifier(fileZones)
		if err != nil {
			log.Fatalf("invalid zones: %v", err)
		}

		start := time.Now()
		res := detect.New(grid.Format).Detect(grid, params)
		elapsed := time.Since(start)
		if res.Found {
			found++
		}

		out := scanResult{
			File:       file,
			Width:      grid.Format.Width,
			Height:     grid.Format.Height,
			Found:      res.Found,
			X:          res.Position.X,
			Y:          res.Position.Y,
			Confidence: res.Confidence,
			Zone:       classifier.ClassifyResult(res, params.Threshold),
			Seeds:      res.Seeds,
			DetectMS:   float64(elapsed) / float64(time.Millisecond),
		}
		if err := enc.Encode(out); err != nil {
			log.Fatalf("write result: %v", err)
		}

		if *annotate != "" {
			if err := writeAnnotated(*annotate, file, grid, res, fileZones, params); err != nil {
				log.Printf("annotate %s: %v", file, err)
			}
		}
	}

	log.Printf("summary: files=%d found=%d", len(files), found)
}

func loadGrid(file string) (*frame.Grid, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	format, err := frame.NewPixelFormat(b.Dx(), b.Dy())
	if err != nil {
		return nil, err
	}
	grid := frame.NewGrid(format)
	if err := grid.CopyFrom(img); err != nil {
		return nil, err
	}
	return grid, nil
}

func writeAnnotated(dir, file string, grid *frame.Grid, res detect.Result, zones []zone.Zone, params detect.Params) error {
	data, err := preview.EncodeJPEG(preview.Overlay(grid, res, zones, params))
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)) + "_scan.jpg"
	return os.WriteFile(filepath.Join(dir, name), data, 0o644)
}

func listFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return nil, fmt.Errorf("no images in %s", path)
	}
	return files, nil
}
