package queue

// BuildGraphMsg requests a full rebuild: load the dataset, rebuild the
// taxonomy graph with enrichment, and re-index the vector store.
type BuildGraphMsg struct {
	DatasetLocation     string  `json:"dataset_location"`
	EnrichSimilarity    bool    `json:"enrich_similarity"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
}

// ExportGraphMsg requests a graph export uploaded to object storage.
type ExportGraphMsg struct {
	Format string `json:"format"`
	Key    string `json:"key"`
}
