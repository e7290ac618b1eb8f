package openai

import (
	"context"

	"github.com/go-go-golems/lampwick/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

// ImageService generates images through the OpenAI images endpoint. The
// backend only produces one image per request, so multi-image prompts are
// issued sequentially.
type ImageService struct {
	client *go_openai.Client
	model  string
}

// NewImageService builds an image generator sharing the connection settings
// of a chat Service.
func NewImageService(apiKey string, opts ...Option) *ImageService {
	cfg := &serviceConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	client := cfg.client
	if client == nil {
		clientCfg := go_openai.DefaultConfig(apiKey)
		if cfg.baseURL != "" {
			clientCfg.BaseURL = cfg.baseURL
		}
		client = go_openai.NewClientWithConfig(clientCfg)
	}
	return &ImageService{
		client: client,
		model:  go_openai.CreateImageModelDallE3,
	}
}

func (s *ImageService) GenerateImages(ctx context.Context, prompt string, count int) ([]conversation.ImageData, error) {
	if count < 1 {
		count = 1
	}
	images := make([]conversation.ImageData, 0, count)
	for i := 0; i < count; i++ {
		resp, err := s.client.CreateImage(ctx, go_openai.ImageRequest{
			Prompt:         prompt,
			Model:          s.model,
			N:              1,
			Size:           go_openai.CreateImageSize1024x1024,
			ResponseFormat: go_openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			return nil, errors.Wrap(err, "image generation failed")
		}
		for _, d := range resp.Data {
			if d.B64JSON == "" {
				log.Warn().Msg("image response without inline data, skipping")
				continue
			}
			images = append(images, conversation.ImageData{
				MIMEType: "image/png",
				Data:     d.B64JSON,
			})
		}
	}
	if len(images) == 0 {
		return nil, errors.New("image backend returned no images")
	}
	return images, nil
}
