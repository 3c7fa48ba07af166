package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.CatalogPath == "" {
		cfg.Storage.CatalogPath = "./data/movies.json"
	}
	if cfg.Storage.CacheDir == "" {
		cfg.Storage.CacheDir = "./cache"
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./cache/chunks.db"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./cache/bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "mock"
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 5
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.RRFK == 0 {
		cfg.Search.RRFK = 60
	}
	if cfg.Search.BM25K1 == 0 {
		cfg.Search.BM25K1 = 1.5
	}
	if cfg.Search.BM25B == 0 {
		cfg.Search.BM25B = 0.75
	}
	if cfg.Search.KeywordBackend == "" {
		cfg.Search.KeywordBackend = "inverted"
	}
	if cfg.Search.ChunkSize == 0 {
		cfg.Search.ChunkSize = 200
	}
	if cfg.Search.SemanticChunkSize == 0 {
		cfg.Search.SemanticChunkSize = 4
	}
	if cfg.Search.SemanticChunkOverlap == nil {
		one := 1
		cfg.Search.SemanticChunkOverlap = &one
	}
	if cfg.Search.HybridAlpha == nil {
		half := 0.5
		cfg.Search.HybridAlpha = &half
	}
	if cfg.Search.CandidateMultiplier == 0 {
		cfg.Search.CandidateMultiplier = 2
	}
	if cfg.Vector.IndexType == "" {
		cfg.Vector.IndexType = "memory"
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 400
	}
}
