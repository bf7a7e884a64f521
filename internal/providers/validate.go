package providers

import (
	"net/url"
	"sort"
	"strings"
)

const minAPIKeyLength = 5

// ValidationErrors maps a field name to what is wrong with it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid provider: " + strings.Join(parts, "; ")
}

// Validate checks a provider before it is stored. existing is the current
// provider list; a provider may keep its own name.
func Validate(c Config, existing []Config) error {
	errs := ValidationErrors{}

	name := strings.TrimSpace(c.Name)
	if name == "" {
		errs["name"] = "Provider name is required"
	} else {
		for _, p := range existing {
			if p.Name == name && p.ID != c.ID {
				errs["name"] = "A provider with this name already exists"
				break
			}
		}
	}

	base := strings.TrimSpace(c.BaseURL)
	if base == "" {
		errs["baseUrl"] = "Base URL is required"
	} else if u, err := url.Parse(base); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs["baseUrl"] = "Please enter a valid URL"
	}

	key := strings.TrimSpace(c.APIKey)
	if key == "" {
		errs["apiKey"] = "API Key is required"
	} else if IsRedacted(key) {
		errs["apiKey"] = "Enter the full API Key, not the masked one"
	} else if len(key) < minAPIKeyLength {
		errs["apiKey"] = "API Key seems too short"
	}

	if strings.TrimSpace(c.ModelName) == "" {
		errs["modelName"] = "Model name is required"
	}

	switch NormalizeKind(c.Kind) {
	case KindOpenAICompat, KindGemini:
	default:
		errs["kind"] = "Unsupported provider kind"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}
