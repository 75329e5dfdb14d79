package model

// ================ Config ================
type StoreConfig struct {
	// Backend is one of memory, redis, postgres.
	Backend     string `envconfig:"STORE_BACKEND" default:"memory"`
	CartTTL     string `envconfig:"STORE_CART_TTL" default:"24h"`
	CatalogFile string `envconfig:"STORE_CATALOG_FILE"`
}

type CatalogConfig struct {
	// Matcher selects the similarity implementation: lexical or embedding.
	Matcher           string  `envconfig:"CATALOG_MATCHER" default:"lexical"`
	MatchThreshold    float64 `envconfig:"CATALOG_MATCH_THRESHOLD" default:"0.3"`
	SearchFloor       float64 `envconfig:"CATALOG_SEARCH_FLOOR" default:"0.1"`
	MaxResults        int     `envconfig:"CATALOG_MAX_RESULTS" default:"10"`
	CategoryTopK      int     `envconfig:"CATALOG_CATEGORY_TOP_K" default:"5"`
	ReloadInterval    string  `envconfig:"CATALOG_RELOAD_INTERVAL" default:"5m"`
	EmbeddingModel    string  `envconfig:"CATALOG_EMBEDDING_MODEL" default:"text-embedding-004"`
	EmbeddingCacheLen int     `envconfig:"CATALOG_EMBEDDING_CACHE" default:"512"`
}

type SessionConfig struct {
	TranscriptCapacity int    `envconfig:"SESSION_TRANSCRIPT_CAPACITY" default:"10"`
	ContextWindow      int    `envconfig:"SESSION_CONTEXT_WINDOW" default:"5"`
	IdleTimeout        string `envconfig:"SESSION_IDLE_TIMEOUT" default:"30m"`
	TranscriptTTL      string `envconfig:"SESSION_TRANSCRIPT_TTL" default:"2h"`
}

type IntentModelConfig struct {
	Model       string  `envconfig:"INTENT_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"INTENT_MAX_TOKENS" default:"1024"`
	Temperature float32 `envconfig:"INTENT_TEMPERATURE" default:"0.2"`
}

type ShopConfig struct {
	BusinessName string `envconfig:"SHOP_BUSINESS_NAME" default:"GroceryBabu"`
	BusinessType string `envconfig:"SHOP_BUSINESS_TYPE" default:"grocery store"`
	Currency     string `envconfig:"SHOP_CURRENCY_SYMBOL" default:"$"`
}

type TurnConfig struct {
	Timeout   string `envconfig:"TURN_TIMEOUT" default:"20s"`
	TicketTTL string `envconfig:"TURN_TICKET_TTL" default:"5m"`
	Workers   int    `envconfig:"TURN_WORKERS" default:"16"`
}
