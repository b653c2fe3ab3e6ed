package app

import (
	"context"
	"fmt"
	"time"

	"github.com/tmm22/VoiceInk-sub006/internal/cloud"
	"github.com/tmm22/VoiceInk-sub006/internal/config"
	"github.com/tmm22/VoiceInk-sub006/internal/session"
)

// cloudTranscriber binds the HTTP transcription client and credential lookup
// to the session collaborator contract.
type cloudTranscriber struct {
	client      *cloud.TranscriptionClient
	credentials config.Credentials
}

func (t *cloudTranscriber) Transcribe(ctx context.Context, audioPath, provider, modelID, endpoint, language string) (string, error) {
	apiKey := t.credentials.APIKey(provider)
	if apiKey == "" && provider != "custom" {
		return "", fmt.Errorf("no API key configured for provider %q", provider)
	}
	return t.client.Transcribe(ctx, cloud.TranscribeRequest{
		AudioPath: audioPath,
		Provider:  provider,
		ModelID:   modelID,
		Language:  language,
		APIKey:    apiKey,
		Endpoint:  endpoint,
	})
}

// cloudEnhancer binds the chat-completions client to the session contract.
type cloudEnhancer struct {
	client      *cloud.EnhancementClient
	credentials config.Credentials
}

func (e *cloudEnhancer) Enhance(ctx context.Context, text string, meta session.EnhanceContext) (string, error) {
	apiKey := e.credentials.APIKey(meta.Provider)
	if apiKey == "" && meta.Provider != "custom" {
		return "", fmt.Errorf("no API key configured for provider %q", meta.Provider)
	}
	return e.client.Enhance(ctx, cloud.EnhanceRequest{
		Text:     text,
		Provider: meta.Provider,
		Model:    meta.Model,
		APIKey:   apiKey,
	})
}

// formatDuration renders a duration for the history listing.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}
