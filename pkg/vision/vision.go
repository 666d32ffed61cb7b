// Package vision describes camera images for a blind user using Google's
// Gemini API.
//
// Example usage:
//
//	g, _ := vision.NewGemini(vision.WithAPIKey(os.Getenv("GEMINI_API_KEY")))
//	text, _ := g.Describe(ctx, base64JPEG)
package vision

import "context"

// ScenePrompt is the fixed instruction sent with every image.
const ScenePrompt = "Analyze this image and describe what you see in detail. " +
	"This description will be read to a blind person to help them understand their surroundings. " +
	"Be clear, concise, and focus on important elements like people, obstacles, text, and spatial relationships. " +
	"Limit your response to 3-4 sentences."

// FallbackDescription is returned when the model answers without usable text.
const FallbackDescription = "Unable to analyze the image. Please try again."

// ImageMIMEType is the only image format sent upstream.
const ImageMIMEType = "image/jpeg"

// Describer turns a base64-encoded JPEG into a spoken-style description.
type Describer interface {
	Describe(ctx context.Context, imageB64 string) (string, error)
}
