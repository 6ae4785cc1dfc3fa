package native

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/pdf-ingestion/internal/core/domain"
	"github.com/kirillkom/pdf-ingestion/internal/core/ports"
	"github.com/kirillkom/pdf-ingestion/internal/infrastructure/imaging"
)

const (
	iconMaxSide     = 100
	logoMaxSide     = 300
	logoWideAspect  = 2.5
	logoTallAspect  = 0.4
	logoMaxTokens   = 150
	imageMaxTokens  = 500
	captionTemp     = 0.3
	iconDescription = "Petite icône"
	logoFallback    = "Élément graphique ou logo"
)

var refusalMarkers = []string{"je ne peux pas", "cannot", "can't", "unable to", "désolé"}

const logoPrompt = `Décris cette image qui provient d'un document professionnel.
C'est probablement un logo, une icône ou un élément graphique.
Si tu ne peux pas la décrire, dis simplement ce que tu vois (forme, couleur, type d'élément).
Sois factuel et concis. Maximum 2-3 phrases.

Exemples de bonnes réponses:
- "Logo circulaire bleu avec du texte blanc"
- "Icône représentant une bulle de dialogue"
- "Élément graphique décoratif en forme de flèche"

NE DIS PAS que tu ne peux pas voir l'image. Décris ce que tu observes.`

const imagePrompt = `Décris cette image/diagramme d'un document BTP en français.
Sois précis et technique.
Si c'est un diagramme ou schéma, décris tous les éléments, labels et relations.
Si c'est une photo, décris ce qui est montré.`

// ClassifyImage sorts an embedded image by its pixel size and aspect ratio.
func ClassifyImage(width, height int) domain.ImageType {
	if width < iconMaxSide && height < iconMaxSide {
		return domain.ImageIcon
	}
	aspect := 1.0
	if height > 0 {
		aspect = float64(width) / float64(height)
	}
	if (width < logoMaxSide && height < logoMaxSide) || aspect > logoWideAspect || aspect < logoTallAspect {
		return domain.ImageLogo
	}
	return domain.ImageGeneric
}

// Captioner describes embedded images with a vision model. It never fails:
// refusals and model errors become generic descriptions.
type Captioner struct {
	model  ports.VisionModel
	logger *slog.Logger
}

func NewCaptioner(model ports.VisionModel, logger *slog.Logger) *Captioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Captioner{model: model, logger: logger}
}

func (c *Captioner) Describe(ctx context.Context, img image.Image, describe bool) (string, domain.ImageType) {
	width, height := imaging.Size(img)
	kind := ClassifyImage(width, height)
	if kind == domain.ImageIcon {
		return iconDescription, kind
	}
	if !describe || c.model == nil {
		return "", kind
	}

	encoded, err := imaging.EncodePNGBase64(img)
	if err != nil {
		return fallbackDescription(width, height), domain.ImageUnknown
	}
	req := ports.VisionRequest{
		Prompt:      imagePrompt,
		ImageBase64: encoded,
		MimeType:    "image/png",
		Detail:      ports.DetailHigh,
		MaxTokens:   imageMaxTokens,
		Temperature: captionTemp,
	}
	if kind == domain.ImageLogo {
		req.Prompt = logoPrompt
		req.Detail = ports.DetailLow
		req.MaxTokens = logoMaxTokens
	}

	description, err := c.model.DescribeImage(ctx, req)
	if err != nil {
		c.logger.Warn("image_caption_failed", "width", width, "height", height, "error", err)
		return fallbackDescription(width, height), domain.ImageUnknown
	}
	description = strings.TrimSpace(description)
	if IsRefusal(description) {
		if kind == domain.ImageLogo {
			return logoFallback, kind
		}
		return fmt.Sprintf("Image (%dx%d pixels)", width, height), kind
	}
	return description, kind
}

// refusalMaxRunes bounds the answers that can count as a refusal; longer
// answers are transcriptions that merely quote a refusal phrase.
const refusalMaxRunes = 200

var taggedElement = regexp.MustCompile(`\[[A-ZÉÈÔ]+: [^\]]+\]`)

// IsRefusal reports whether a model answer declines to describe the image.
// Only empty answers, or short untagged answers carrying a refusal phrase,
// qualify.
func IsRefusal(answer string) bool {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return true
	}
	if utf8.RuneCountInString(answer) >= refusalMaxRunes || taggedElement.MatchString(answer) {
		return false
	}
	lower := strings.ToLower(answer)
	for _, marker := range refusalMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func fallbackDescription(width, height int) string {
	return fmt.Sprintf("Élément graphique (%dx%d pixels)", width, height)
}
