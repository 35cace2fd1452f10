package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-cluster/internal/constants"
	"github.com/kozaktomas/face-cluster/internal/database"
	"github.com/kozaktomas/face-cluster/internal/facematch"
)

var facesCmd = &cobra.Command{
	Use:   "faces",
	Short: "Manage detected faces",
}

var facesImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import face detections from a JSON lines file",
	Long: `Import face detections produced by a face detector. Each line is one face:

  {"photo": "2024/img_0001.jpg", "hash": "…", "width": 4000, "height": 3000,
   "bbox": {"top": 10, "right": 120, "bottom": 140, "left": 20},
   "confidence": 0.98, "embedding": [0.01, -0.2, …]}

Photos are matched by path. Invalid detections are skipped, and so are boxes
overlapping an already stored face of the same photo. Embeddings must have the
dimension of the faces already stored. Use "-" to read stdin.

New faces stay unassigned until the next clustering run.`,
	Args: cobra.ExactArgs(1),
	RunE: runFacesImport,
}

var facesShowCmd = &cobra.Command{
	Use:   "show <face-id>",
	Short: "Show a face and its correction",
	Args:  cobra.ExactArgs(1),
	RunE:  runFacesShow,
}

func init() {
	rootCmd.AddCommand(facesCmd)
	facesCmd.AddCommand(facesImportCmd, facesShowCmd)

	facesImportCmd.Flags().Float64("iou", constants.DuplicateBoxIoU, "IoU at which two boxes on one photo are the same face")
	facesShowCmd.Flags().Bool("json", false, "Output as JSON")
}

// detection is one line of detector output
type detection struct {
	Photo      string        `json:"photo"`
	Hash       string        `json:"hash"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	BBox       database.BBox `json:"bbox"`
	Confidence float64       `json:"confidence"`
	Embedding  []float32     `json:"embedding"`
}

// photoDetections groups the detections of one photo in file order
type photoDetections struct {
	photo      database.Photo
	detections []detection
}

// ImportStats summarizes a faces import
type ImportStats struct {
	Photos         int `json:"photos"`
	Imported       int `json:"imported"`
	Duplicates     int `json:"duplicates"`
	Invalid        int `json:"invalid"`
	WrongDimension int `json:"wrong_dimension"`
}

// readDetections parses detector output and groups it by photo path.
// Malformed or invalid lines are counted and skipped.
func readDetections(r io.Reader, log *slog.Logger) ([]*photoDetections, int, error) {
	var (
		groups  []*photoDetections
		byPath  = make(map[string]*photoDetections)
		invalid int
		lineNo  int
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var d detection
		if err := json.Unmarshal(line, &d); err != nil {
			log.Warn("skipping malformed line", "line", lineNo, "error", err)
			invalid++
			continue
		}
		if d.Photo == "" {
			log.Warn("skipping detection without photo path", "line", lineNo)
			invalid++
			continue
		}
		if err := facematch.ValidateDetection(d.BBox, d.Confidence, d.Embedding); err != nil {
			log.Warn("skipping invalid detection", "line", lineNo, "photo", d.Photo, "error", err)
			invalid++
			continue
		}

		g, ok := byPath[d.Photo]
		if !ok {
			g = &photoDetections{photo: database.Photo{FilePath: d.Photo, FileHash: d.Hash, Width: d.Width, Height: d.Height}}
			byPath[d.Photo] = g
			groups = append(groups, g)
		}
		g.detections = append(g.detections, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, invalid, fmt.Errorf("reading detections: %w", err)
	}
	return groups, invalid, nil
}

// newDetections returns the detections that do not overlap a stored face or an
// earlier detection by at least threshold IoU.
func newDetections(stored []database.Face, detections []detection, threshold float64) []detection {
	boxes := make([]database.BBox, 0, len(stored)+len(detections))
	for _, f := range stored {
		boxes = append(boxes, f.BBox)
	}
	for _, d := range detections {
		boxes = append(boxes, d.BBox)
	}

	var out []detection
	for _, i := range facematch.DedupeBoxes(boxes, threshold) {
		if i >= len(stored) {
			out = append(out, detections[i-len(stored)])
		}
	}
	return out
}

// matchingDimension returns the detections whose embedding has dim components.
func matchingDimension(detections []detection, dim int) []detection {
	var out []detection
	for _, d := range detections {
		if len(d.Embedding) == dim {
			out = append(out, d)
		}
	}
	return out
}

// importDetections stores the detections of every photo. Embeddings must match the
// dimension of the faces already stored, or of the first detection on an empty store.
func importDetections(ctx context.Context, store database.FaceWriter, groups []*photoDetections, threshold float64, bar *progressbar.ProgressBar) (ImportStats, error) {
	var stats ImportStats
	dim, err := store.EmbeddingDimension(ctx)
	if err != nil {
		return stats, fmt.Errorf("loading embedding dimension: %w", err)
	}
	if dim == 0 && len(groups) > 0 && len(groups[0].detections) > 0 {
		dim = len(groups[0].detections[0].Embedding)
	}

	for _, g := range groups {
		detections := matchingDimension(g.detections, dim)
		stats.WrongDimension += len(g.detections) - len(detections)
		if len(detections) == 0 {
			if bar != nil {
				_ = bar.Add(1)
			}
			continue
		}

		photoID, err := store.UpsertPhoto(ctx, g.photo)
		if err != nil {
			return stats, fmt.Errorf("storing photo %s: %w", g.photo.FilePath, err)
		}
		stored, err := store.GetPhotoFaces(ctx, photoID)
		if err != nil {
			return stats, fmt.Errorf("loading faces of photo %s: %w", g.photo.FilePath, err)
		}

		fresh := newDetections(stored, detections, threshold)
		stats.Photos++
		stats.Duplicates += len(detections) - len(fresh)
		for _, d := range fresh {
			if _, err := store.InsertFace(ctx, database.Face{
				PhotoID:    photoID,
				Embedding:  d.Embedding,
				BBox:       d.BBox,
				Confidence: d.Confidence,
			}); err != nil {
				return stats, fmt.Errorf("storing face of photo %s: %w", g.photo.FilePath, err)
			}
			stats.Imported++
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return stats, nil
}

func runFacesImport(cmd *cobra.Command, args []string) error {
	threshold := mustGetFloat64(cmd, "iou")
	if threshold <= 0 || threshold > 1 {
		return fmt.Errorf("--iou must be in (0,1], got %v", threshold)
	}

	var in io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening %s: %w", args[0], err)
		}
		defer f.Close()
		in = f
	}

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	groups, invalid, err := readDetections(in, log)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Printf("No valid detections found (%d invalid lines)\n", invalid)
		return nil
	}

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	bar := progressbar.NewOptions(len(groups),
		progressbar.OptionSetDescription("Importing faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	stats, err := importDetections(ctx, store, groups, threshold, bar)
	fmt.Println()
	stats.Invalid = invalid
	if err != nil {
		return fmt.Errorf("import stopped after %d faces: %w", stats.Imported, err)
	}

	fmt.Printf("Photos:     %d\n", stats.Photos)
	fmt.Printf("Imported:   %d faces\n", stats.Imported)
	fmt.Printf("Duplicates: %d\n", stats.Duplicates)
	fmt.Printf("Invalid:    %d\n", stats.Invalid)
	if stats.WrongDimension > 0 {
		fmt.Printf("Skipped:    %d faces with a different embedding dimension\n", stats.WrongDimension)
	}
	if stats.Imported > 0 {
		fmt.Println("\nRun 'face-cluster cluster' to group the new faces.")
	}
	return nil
}

func runFacesShow(cmd *cobra.Command, args []string) error {
	faceID, err := parseID("face", args[0])
	if err != nil {
		return err
	}
	jsonOutput := mustGetBool(cmd, "json")

	return withStore(func(ctx context.Context, store database.Store) error {
		face, err := store.GetFace(ctx, faceID)
		if err != nil {
			return fmt.Errorf("failed to get face %d: %w", faceID, err)
		}
		correction, err := store.GetCorrection(ctx, faceID)
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("failed to get correction: %w", err)
		}

		if jsonOutput {
			return outputJSON(struct {
				*database.Face
				Correction *database.Correction `json:"correction,omitempty"`
			}{face, correction})
		}

		printFaceTable([]database.Face{*face})
		fmt.Println()
		if face.ClusterID == database.NoCluster {
			fmt.Println("Cluster:    none")
		} else {
			fmt.Printf("Cluster:    %d\n", face.ClusterID)
		}
		switch {
		case correction == nil:
			fmt.Println("Correction: none")
		case correction.IsExcluded:
			fmt.Println("Correction: excluded")
		default:
			fmt.Printf("Correction: assigned to %q", correction.PersonName)
			if correction.ManualClusterID != database.NoCluster {
				fmt.Printf(" (cluster %d)", correction.ManualClusterID)
			}
			fmt.Println()
		}
		return nil
	})
}
