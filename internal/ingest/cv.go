package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/safestreets/safestreets/internal/httputil"
	"github.com/safestreets/safestreets/internal/models"
)

// SidewalkCV is a client for the segmentation sidecar. Model inference runs
// in that service; this side only submits images and bands the results.
type SidewalkCV struct {
	endpoint string
	client   *http.Client
}

func NewSidewalkCV(endpoint string) *SidewalkCV {
	return &SidewalkCV{endpoint: endpoint, client: httputil.NewClient()}
}

// Enabled reports whether a sidecar endpoint is configured.
func (c *SidewalkCV) Enabled() bool { return c.endpoint != "" }

type cvRequest struct {
	ImageURL string `json:"image_url"`
	ImageID  string `json:"image_id"`
}

// Obstruction is one obstruction class found in a segmentation map, with
// the share of the image it covers.
type Obstruction struct {
	Class      string  `json:"class"`
	Percentage float64 `json:"percentage"`
}

// Segmentation is the reduced per-class pixel summary the sidecar returns.
type Segmentation struct {
	SidewalkPercentage float64       `json:"sidewalkPercentage"`
	RoadPercentage     float64       `json:"roadPercentage"`
	Obstructions       []Obstruction `json:"obstructions"`
}

// AnalyzeImage submits a street-level image to the sidecar and bands the
// returned segmentation into a quality assessment.
func (c *SidewalkCV) AnalyzeImage(ctx context.Context, imageURL, imageID string) (*models.SidewalkImageAssessment, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("cv sidecar not configured")
	}

	payload, err := json.Marshal(cvRequest{ImageURL: imageURL, ImageID: imageID})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := doInstrumented(c.client, req, "cv")
	if err != nil {
		return nil, err
	}

	var seg Segmentation
	if err := json.Unmarshal(body, &seg); err != nil {
		return nil, fmt.Errorf("unmarshal segmentation: %w", err)
	}

	assessment := AssessSegmentation(seg)
	assessment.ImageID = imageID
	return &assessment, nil
}

// AssessSegmentation bands a segmentation summary into a sidewalk quality
// assessment. Pure function so cached segmentations can be re-banded when
// the thresholds change.
func AssessSegmentation(seg Segmentation) models.SidewalkImageAssessment {
	// Below 5% of the frame the detection is too weak to trust.
	if seg.SidewalkPercentage <= 5 {
		return models.SidewalkImageAssessment{
			SidewalkDetected: false,
			Confidence:       "low",
			Quality:          "none",
			Issues:           []string{"No sidewalk visible in image"},
			Notes:            "no sidewalk detected",
		}
	}

	var totalObstruction float64
	for _, obs := range seg.Obstructions {
		totalObstruction += obs.Percentage
	}

	var quality, confidence string
	var issues []string
	switch {
	case seg.SidewalkPercentage > 20:
		switch {
		case totalObstruction > 15:
			quality, confidence = "poor", "high"
			issues = append(issues, fmt.Sprintf("%d obstruction(s) detected blocking sidewalk", len(seg.Obstructions)))
		case totalObstruction > 5:
			quality, confidence = "fair", "medium"
			issues = append(issues, "Minor obstructions detected on sidewalk")
		default:
			quality, confidence = "good", "high"
		}
	case seg.SidewalkPercentage > 10:
		quality, confidence = "fair", "medium"
		if totalObstruction > 10 {
			issues = append(issues, "Sidewalk partially visible with obstructions")
		} else {
			issues = append(issues, "Sidewalk partially visible")
		}
	default:
		quality, confidence = "poor", "medium"
		issues = append(issues, "Limited sidewalk visible in image")
	}

	for _, obs := range seg.Obstructions {
		if obs.Percentage > 5 {
			issues = append(issues, fmt.Sprintf("%s detected (%.1f%% of image)", obs.Class, obs.Percentage))
		}
	}
	if len(issues) == 0 {
		issues = []string{"No issues detected"}
	}

	return models.SidewalkImageAssessment{
		SidewalkDetected: true,
		Confidence:       confidence,
		Quality:          quality,
		Issues:           issues,
		Notes: fmt.Sprintf("sidewalk present (%.1f%% of image), %d obstruction(s)",
			seg.SidewalkPercentage, len(seg.Obstructions)),
	}
}
