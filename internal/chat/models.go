package chat

// DefaultModel is selected in a fresh session.
const DefaultModel = "groq"

type ModelOption struct {
	ID    string
	Label string
}

// Models lists what the shell offers. The backend decides what each id runs on.
var Models = []ModelOption{
	{ID: "groq", Label: "Llama 3.3 70B (Groq)"},
	{ID: "hf", Label: "Qwen 2.5 Coder (Hugging Face)"},
	{ID: "deepseek", Label: "DeepSeek R1"},
	{ID: "gpt-oss", Label: "GPT-OSS"},
	{ID: "kimi", Label: "Kimi"},
	{ID: "qwen3", Label: "Qwen 3"},
}

func FindModel(id string) (ModelOption, bool) {
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return ModelOption{}, false
}
