package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	elevenLabsEndpoint     = "https://api.elevenlabs.io/v1"
	elevenLabsDefaultVoice = "21m00Tcm4TlvDq8ikWAM" // Rachel - calm, natural female
	elevenLabsDefaultModel = "eleven_monolingual_v1"
)

// ElevenLabsConfig holds speech synthesis configuration
type ElevenLabsConfig struct {
	APIKey  string
	ModelID string
	Voice   string
}

// ElevenLabsClient synthesizes speech via the ElevenLabs API.
type ElevenLabsClient struct {
	apiKey       string
	modelID      string
	defaultVoice string
	httpClient   *http.Client
}

// Short voice aliases users can pass to /voiceid.
var elevenLabsVoiceMap = map[string]string{
	"nova":    "21m00Tcm4TlvDq8ikWAM", // Rachel
	"shimmer": "EXAVITQu4vr4xnSDxMaL", // Bella
	"alloy":   "MF3mGyEYCl7XYWbV9V6O", // Emily
	"echo":    "VR6AewLTigWG4xSOukaG", // Arnold
	"onyx":    "ErXwobaYiN019PkySvjV", // Antoni
	"fable":   "TxGEqnHWrfWFTfGW9XjX", // Josh
}

// VoiceAliases returns the supported short voice names.
func VoiceAliases() []string {
	names := make([]string, 0, len(elevenLabsVoiceMap))
	for name := range elevenLabsVoiceMap {
		names = append(names, name)
	}
	return names
}

// NewElevenLabsClient creates a new speech synthesis client
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	modelID := cfg.ModelID
	if modelID == "" {
		modelID = elevenLabsDefaultModel
	}
	voice := cfg.Voice
	if voice == "" {
		voice = elevenLabsDefaultVoice
	}
	return &ElevenLabsClient{
		apiKey:       cfg.APIKey,
		modelID:      modelID,
		defaultVoice: voice,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *ElevenLabsClient) Available() bool { return c.apiKey != "" }

// Synthesize converts text to MP3 audio bytes.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if !c.Available() {
		return nil, &Error{Provider: "elevenlabs", Err: ErrNoCredential}
	}

	if voiceID == "" {
		voiceID = c.defaultVoice
	}
	if mapped, ok := elevenLabsVoiceMap[voiceID]; ok {
		voiceID = mapped
	}

	payload := map[string]any{
		"text":     text,
		"model_id": c.modelID,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", elevenLabsEndpoint, voiceID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("elevenlabs API returned status %d: %s", resp.StatusCode, string(body))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("elevenlabs returned no audio")
	}
	return audio, nil
}
