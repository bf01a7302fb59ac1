package translation

import (
	"context"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	apperrors "github.com/Taichi-iskw/talk-subtitles/internal/errors"
	"google.golang.org/api/option"
)

const defaultGeminiModel = "gemini-2.0-flash-001"

// GeminiConfig holds the Vertex AI settings
type GeminiConfig struct {
	ProjectID       string
	Location        string
	CredentialsFile string
	Model           string
}

// geminiModel is the part of *genai.GenerativeModel we use
type geminiModel interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator calls Gemini through Vertex AI
type GeminiGenerator struct {
	client *genai.Client
	model  geminiModel
}

// NewGeminiGenerator creates a Vertex AI client for the configured project
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" || strings.TrimSpace(cfg.Location) == "" {
		return nil, apperrors.New(apperrors.CodeConfiguration, "gemini requires gcp_project and gcp_location")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := genai.NewClient(ctx, cfg.ProjectID, cfg.Location, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeConfiguration, "failed to create vertex ai client")
	}

	name := cfg.Model
	if name == "" {
		name = defaultGeminiModel
	}
	model := client.GenerativeModel(name)
	model.SetTemperature(0)

	return &GeminiGenerator{client: client, model: model}, nil
}

// Generate sends the prompt as a single text part and joins the text parts of the first candidate
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeTransport, "gemini request failed")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", apperrors.New(apperrors.CodeMalformed, "gemini response has no candidates")
	}

	var output strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			output.WriteString(string(text))
		}
	}

	content := strings.TrimSpace(output.String())
	if content == "" {
		return "", apperrors.New(apperrors.CodeEmptyResult, "gemini returned no text")
	}
	return content, nil
}

// Close releases the Vertex AI client
func (g *GeminiGenerator) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
