package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

// VisionEngine recognizes text with Google Cloud Vision document text detection.
type VisionEngine struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
}

// NewVisionEngine creates a Vision client. An empty credentialsFile uses
// application default credentials.
func NewVisionEngine(ctx context.Context, credentialsFile string, languageHints []string) (*VisionEngine, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}
	return &VisionEngine{client: client, languageHints: languageHints}, nil
}

// Recognize sends the image inline and returns the full text annotation.
func (v *VisionEngine) Recognize(ctx context.Context, imagePath string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: v.languageHints},
			},
		},
	}
	resp, err := v.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return "", fmt.Errorf("vision annotate: %w", err)
	}
	return visionText(resp)
}

// Close releases the underlying gRPC connection.
func (v *VisionEngine) Close() error {
	return v.client.Close()
}

func visionText(resp *visionpb.BatchAnnotateImagesResponse) (string, error) {
	if len(resp.GetResponses()) == 0 {
		return "", nil
	}
	r := resp.GetResponses()[0]
	if r.GetError() != nil {
		return "", fmt.Errorf("vision api error: %s", r.GetError().GetMessage())
	}
	return r.GetFullTextAnnotation().GetText(), nil
}

// LanguageHints converts a tesseract language list ("eng+rus") to Vision hints.
func LanguageHints(tesseractLangs string) []string {
	codes := map[string]string{"eng": "en", "rus": "ru", "deu": "de", "fra": "fr", "spa": "es", "ukr": "uk"}
	var out []string
	for _, lang := range strings.Split(tesseractLangs, "+") {
		if code, ok := codes[strings.TrimSpace(lang)]; ok {
			out = append(out, code)
		}
	}
	return out
}
