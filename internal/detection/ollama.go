package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

const ollamaPrompt = `You are a camera-trap image classifier.
Find every animal, human, and vehicle in the image.
Respond with JSON only, in this shape:
{"detections":[{"category":"animal|human|vehicle","confidence":0.0,"box":[x,y,width,height]}]}
Box values are fractions of the image size with the origin at the top-left corner.
Return {"detections":[]} when the image is empty.`

// Ollama asks a vision model served by Ollama for detections.
type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama builds a detector for the server at baseURL.
func NewOllama(baseURL, model string, timeout time.Duration) (*Ollama, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid ollama url %q", baseURL)
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	httpClient := &http.Client{Timeout: timeout}
	return &Ollama{client: api.NewClient(base, httpClient), model: model}, nil
}

// OllamaFactory checks that the server is reachable before each run.
func OllamaFactory(baseURL, model string, timeout time.Duration) DetectorFactory {
	return func(ctx context.Context, _ Request) (Detector, error) {
		detector, err := NewOllama(baseURL, model, timeout)
		if err != nil {
			return nil, err
		}
		if err := detector.Ping(ctx); err != nil {
			return nil, err
		}
		return detector, nil
	}
}

// Ping checks that the Ollama server answers.
func (o *Ollama) Ping(ctx context.Context) error {
	if err := o.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama heartbeat: %w", err)
	}
	return nil
}

func (o *Ollama) Name() string { return "ollama:" + o.model }

func (o *Ollama) Detect(ctx context.Context, path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read image: %w", err)
	}
	stream := false
	req := &api.ChatRequest{
		Model: o.model,
		Messages: []api.Message{{
			Role:    "user",
			Content: ollamaPrompt,
			Images:  []api.ImageData{api.ImageData(data)},
		}},
		Stream: &stream,
		Format: json.RawMessage(`"json"`),
		Options: map[string]any{
			"temperature": 0,
		},
	}

	var content strings.Builder
	err = o.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("ollama chat: %w", err)
	}
	detections, err := parseOllamaDetections(content.String())
	if err != nil {
		return Result{}, err
	}
	return Result{Detections: detections}, nil
}

type ollamaAnswer struct {
	Detections []struct {
		Category   string    `json:"category"`
		Confidence float64   `json:"confidence"`
		Box        []float64 `json:"box"`
	} `json:"detections"`
}

func parseOllamaDetections(raw string) ([]Detection, error) {
	cleaned := sanitizeModelJSON(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}
	var answer ollamaAnswer
	if err := json.Unmarshal([]byte(cleaned), &answer); err != nil {
		return nil, fmt.Errorf("parse ollama response: %w", err)
	}
	detections := make([]Detection, 0, len(answer.Detections))
	for _, d := range answer.Detections {
		category, err := ParseCategory(d.Category)
		if err != nil {
			continue
		}
		if len(d.Box) != 4 {
			continue
		}
		detections = append(detections, Detection{
			X:          clamp01(d.Box[0]),
			Y:          clamp01(d.Box[1]),
			Width:      clamp01(d.Box[2]),
			Height:     clamp01(d.Box[3]),
			Category:   category,
			Confidence: clamp01(d.Confidence),
		})
	}
	return detections, nil
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON strips code fences, comments, and trailing commas, and
// keeps only the outermost object.
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return strings.TrimSpace(raw[start : end+1])
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
