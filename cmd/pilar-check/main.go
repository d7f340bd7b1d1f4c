// Command pilar-check loads and validates a model artifact and optionally
// classifies a single image with it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/crimson-sun/pilar/internal/artifact"
	"github.com/crimson-sun/pilar/internal/config"
	"github.com/crimson-sun/pilar/internal/engine"
	"github.com/crimson-sun/pilar/internal/logging"
	"github.com/crimson-sun/pilar/internal/service"
	"github.com/crimson-sun/pilar/internal/vision/orb"
)

type report struct {
	Artifact   string             `json:"artifact"`
	Valid      bool               `json:"valid"`
	Error      string             `json:"error,omitempty"`
	Manifest   *artifact.Manifest `json:"manifest,omitempty"`
	Components *engine.Components `json:"components,omitempty"`
	Image      string             `json:"image,omitempty"`
	Result     *service.Result    `json:"result,omitempty"`
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("pilar-check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("artifact", "models/artifact.json", "model artifact path")
	imagePath := fs.String("image", "", "image to classify")
	asJSON := fs.Bool("json", false, "print a JSON report")
	ortLib := fs.String("ort", "models/libonnxruntime.so", "ONNX Runtime shared library")
	orbFeatures := fs.Int("orb-features", orb.DefaultFeatures, "ORB keypoint budget")
	verbose := fs.Bool("v", false, "log loader progress")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	level := "error"
	if *verbose {
		level = "debug"
	}
	logging.Init("text", logging.ParseLevel(level))

	cfg := config.Config{
		Server:   config.ServerConfig{MaxUploadBytes: 10 << 20},
		Artifact: config.ArtifactConfig{Source: "file", Path: *path},
		Engine:   config.EngineConfig{ORTLibrary: *ortLib, ORBFeatures: *orbFeatures},
	}
	detector := orb.New(cfg.Engine.ORBFeatures)
	defer detector.Close()

	ctx := context.Background()
	svc, err := service.FromConfig(ctx, cfg, detector, nil)
	if err != nil {
		fmt.Fprintf(stderr, "pilar-check: %v\n", err)
		return 1
	}
	defer svc.Close()

	rep := report{Artifact: *path, Image: *imagePath}
	failed := false
	if err := svc.Start(ctx); err != nil {
		rep.Error = err.Error()
		failed = true
	} else {
		rep.Valid = true
		st := svc.Status().Loader
		rep.Manifest = st.Manifest
		rep.Components = st.Components
	}

	if !failed && *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err == nil {
			var res service.Result
			res, err = svc.Classify(ctx, data)
			if err == nil {
				rep.Result = &res
			}
		}
		if err != nil {
			rep.Error = err.Error()
			failed = true
		}
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.Encode(rep)
	} else {
		printText(stdout, rep)
	}
	if failed {
		return 1
	}
	return 0
}

func printText(w io.Writer, rep report) {
	if !rep.Valid {
		fmt.Fprintf(w, "artifact %s: INVALID\n  %s\n", rep.Artifact, rep.Error)
		return
	}
	m := rep.Manifest
	fmt.Fprintf(w, "artifact %s: OK\n", rep.Artifact)
	if m.Version != "" {
		fmt.Fprintf(w, "  version:    %s\n", m.Version)
	}
	fmt.Fprintf(w, "  variant:    %s (%d features)\n", m.Variant, m.FeatureLength)
	if c := rep.Components; c != nil {
		fmt.Fprintf(w, "  scaler:     %s\n", c.Scaler)
		fmt.Fprintf(w, "  classifier: %s\n", c.Classifier)
	}
	fmt.Fprintf(w, "  threshold:  %.2f\n", m.Threshold)
	fmt.Fprintf(w, "  classes:    %s\n", strings.Join(m.Classes, ", "))
	keys := make([]string, 0, len(m.CategoryMap))
	for k := range m.CategoryMap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-20s %s\n", k, m.CategoryMap[k])
	}

	if rep.Image == "" {
		return
	}
	if rep.Result == nil {
		fmt.Fprintf(w, "image %s: FAILED\n  %s\n", rep.Image, rep.Error)
		return
	}
	p := rep.Result.Prediction
	fmt.Fprintf(w, "image %s: %s (%s) %.2f%%\n", rep.Image, p.WasteType, p.Category.Label(), engine.Round2(p.Confidence))
}
