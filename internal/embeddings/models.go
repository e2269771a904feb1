package embeddings

import "strings"

// DefaultModel is the model used when none is configured.
const DefaultModel = "sentence-transformers/all-MiniLM-L6-v2"

// knownDimensions lists output sizes for the models FastEmbed ships.
var knownDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// ModelDimension returns the embedding size of a known model.
func ModelDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}

// guessDimension falls back to naming conventions for models served by TEI.
func guessDimension(model string) int {
	if dim, ok := ModelDimension(model); ok {
		return dim
	}
	m := strings.ToLower(model)
	switch {
	case strings.Contains(m, "large"):
		return 1024
	case strings.Contains(m, "base"):
		return 768
	default:
		return 384
	}
}
