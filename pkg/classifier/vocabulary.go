package classifier

// DefaultVocabulary returns fresh copies of the built-in topic lists.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Energy: []string{
			"energy", "electricity", "power grid", "blackout", "outage",
			"renewable energy", "solar", "wind power", "nuclear", "fossil fuel",
			"power plant", "transmission", "grid", "utility", "electrical",
		},
		Financial: []string{
			"financial", "economy", "stock market", "inflation", "recession",
			"GDP", "economic", "finance", "investment", "banking", "market",
			"cryptocurrency", "bitcoin", "trading", "fiscal",
		},
		AI: []string{
			"artificial intelligence", "AI", "machine learning", "deep learning",
			"neural network", "GPT", "LLM", "large language model", "OpenAI",
			"ChatGPT", "automation", "robotics", "computer vision", "NLP",
			"natural language processing", "data center", "compute", "GPU",
		},
	}
}
