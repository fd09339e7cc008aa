package editor

// Element type tags understood by DefaultContent.
const (
	TypeHero         = "hero"
	TypeFeatures     = "features"
	TypeText         = "text"
	TypeImage        = "image"
	TypeGallery      = "gallery"
	TypeTestimonials = "testimonials"
	TypePricing      = "pricing"
	TypeContact      = "contact"
	TypeCTA          = "cta"
	TypeCustom       = "custom"
)

// ElementTypes lists every known element type tag.
var ElementTypes = []string{
	TypeHero, TypeFeatures, TypeText, TypeImage, TypeGallery,
	TypeTestimonials, TypePricing, TypeContact, TypeCTA, TypeCustom,
}

// DefaultContent returns a fresh default content payload for an element
// type. Unknown types yield an empty map. The result is never shared, so
// callers may mutate it freely.
func DefaultContent(elementType string) map[string]any {
	switch elementType {
	case TypeHero:
		return map[string]any{
			"headline":    "Welcome to Your Website",
			"subheadline": "Create something amazing with our website builder",
			"ctaText":     "Get Started",
			"ctaLink":     "#",
			"image":       "",
			"alignment":   "center",
		}
	case TypeFeatures:
		return map[string]any{
			"title":    "Our Features",
			"subtitle": "Everything you need to succeed",
			"features": []any{
				map[string]any{"icon": "zap", "title": "Fast", "description": "Lightning fast performance"},
				map[string]any{"icon": "shield", "title": "Secure", "description": "Enterprise-grade security"},
				map[string]any{"icon": "heart", "title": "Reliable", "description": "99.9% uptime guarantee"},
			},
		}
	case TypeText:
		return map[string]any{
			"content":   "<p>Start writing your content here...</p>",
			"alignment": "left",
		}
	case TypeImage:
		return map[string]any{
			"src":     "",
			"alt":     "Image description",
			"caption": "",
		}
	case TypeGallery:
		return map[string]any{
			"images":  []any{},
			"columns": 3,
		}
	case TypeTestimonials:
		return map[string]any{
			"title": "What Our Customers Say",
			"testimonials": []any{
				map[string]any{"quote": "Amazing service!", "author": "John Doe", "role": "CEO, Company", "avatar": ""},
			},
		}
	case TypePricing:
		return map[string]any{
			"title":    "Pricing Plans",
			"subtitle": "Choose the plan that works for you",
			"plans": []any{
				map[string]any{
					"name":        "Basic",
					"price":       "$9",
					"period":      "month",
					"features":    []any{"Feature 1", "Feature 2"},
					"ctaText":     "Get Started",
					"highlighted": false,
				},
				map[string]any{
					"name":        "Pro",
					"price":       "$29",
					"period":      "month",
					"features":    []any{"Everything in Basic", "Feature 3", "Feature 4"},
					"ctaText":     "Get Started",
					"highlighted": true,
				},
			},
		}
	case TypeContact:
		return map[string]any{
			"title":    "Contact Us",
			"subtitle": "We'd love to hear from you",
			"email":    "",
			"phone":    "",
			"address":  "",
			"showForm": true,
		}
	case TypeCTA:
		return map[string]any{
			"headline":    "Ready to get started?",
			"description": "Join thousands of satisfied customers today",
			"buttonText":  "Sign Up Now",
			"buttonLink":  "#",
		}
	case TypeCustom:
		return map[string]any{
			"html": "",
			"css":  "",
		}
	default:
		return map[string]any{}
	}
}
