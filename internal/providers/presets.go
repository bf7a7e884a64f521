package providers

import "sort"

type Preset struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	BaseURL     string `json:"baseUrl"`
	Model       string `json:"model"`
	Description string `json:"description"`
}

var presets = map[string]Preset{
	"openai": {
		Name:        "OpenAI",
		Kind:        KindOpenAICompat,
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Description: "Official OpenAI API endpoint",
	},
	"openrouter": {
		Name:        "OpenRouter",
		Kind:        KindOpenAICompat,
		BaseURL:     "https://openrouter.ai/api/v1",
		Model:       "anthropic/claude-3.5-sonnet",
		Description: "Unified API for multiple LLM providers",
	},
	"kimi": {
		Name:        "Kimi (Moonshot)",
		Kind:        KindOpenAICompat,
		BaseURL:     "https://api.moonshot.cn/v1",
		Model:       "moonshot-v1-8k",
		Description: "Moonshot AI's Kimi chatbot API",
	},
	"qianwen": {
		Name:        "千问 (通义千问)",
		Kind:        KindOpenAICompat,
		BaseURL:     "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:       "qwen-plus",
		Description: "Alibaba's Tongyi Qianwen API",
	},
	"zhipu": {
		Name:        "智谱清言 (GLM)",
		Kind:        KindOpenAICompat,
		BaseURL:     "https://open.bigmodel.cn/api/paas/v4",
		Model:       "glm-4-flash",
		Description: "Zhipu AI's GLM API",
	},
	"deepseek": {
		Name:        "DeepSeek",
		Kind:        KindOpenAICompat,
		BaseURL:     "https://api.deepseek.com/v1",
		Model:       "deepseek-chat",
		Description: "DeepSeek's API endpoint",
	},
}

func LookupPreset(key string) (Preset, bool) {
	p, ok := presets[key]
	return p, ok
}

func PresetKeys() []string {
	keys := make([]string, 0, len(presets))
	for k := range presets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PresetForBaseURL finds the preset whose base URL matches, if any.
func PresetForBaseURL(baseURL string) (string, bool) {
	for _, k := range PresetKeys() {
		if presets[k].BaseURL == baseURL {
			return k, true
		}
	}
	return "", false
}
