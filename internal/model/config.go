package model

// Config はサーバー全体の設定を表す
type Config struct {
	TransportDefaults TransportDefaults `json:"transportDefaults" yaml:"transportDefaults"`
	Embedder          EmbedderConfig    `json:"embedder" yaml:"embedder"`
	Store             StoreConfig       `json:"store" yaml:"store"`
	Paths             PathsConfig       `json:"paths" yaml:"paths"`
	Log               LogConfig         `json:"log" yaml:"log"`
	Search            SearchConfig      `json:"search" yaml:"search"`
	List              ListConfig        `json:"list" yaml:"list"`
}

// TransportDefaults はtransportのデフォルト設定
type TransportDefaults struct {
	DefaultTransport string   `json:"defaultTransport" yaml:"defaultTransport"`           // "stdio" | "http"
	HTTPAddr         string   `json:"httpAddr,omitempty" yaml:"httpAddr,omitempty"`       // HTTP用の待ち受けアドレス
	CORSOrigins      []string `json:"corsOrigins,omitempty" yaml:"corsOrigins,omitempty"` // HTTP用、空ならCORS無効
}

// EmbedderConfig はembedder設定
type EmbedderConfig struct {
	Provider string  `json:"provider" yaml:"provider"`                     // "local" | "openai" | "ollama"
	Model    string  `json:"model" yaml:"model"`                           // モデル名
	Dim      int     `json:"dim" yaml:"dim"`                               // ベクトル次元
	BaseURL  *string `json:"baseUrl,omitempty" yaml:"baseUrl,omitempty"`   // nullable、省略可
	APIKey   *string `json:"apiKey,omitempty" yaml:"apiKey,omitempty"`     // nullable、省略可（セキュリティ注意）
	ModelDir *string `json:"modelDir,omitempty" yaml:"modelDir,omitempty"` // local用、nullならdataDir/models
}

// StoreConfig はrecord table設定
type StoreConfig struct {
	Type string  `json:"type" yaml:"type"`                     // "sqlite" | "sqlitevec" | "qdrant" | "memory"
	Path *string `json:"path,omitempty" yaml:"path,omitempty"` // nullable（テーブルディレクトリ）
	URL  *string `json:"url,omitempty" yaml:"url,omitempty"`   // nullable（Qdrant用）
}

// PathsConfig はファイルパス設定
type PathsConfig struct {
	ConfigPath string `json:"configPath" yaml:"configPath"` // 設定ファイルパス
	DataDir    string `json:"dataDir" yaml:"dataDir"`       // データディレクトリ
}

// LogConfig はログ設定
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`   // "debug" | "info" | "warn" | "error"
	Format string `json:"format" yaml:"format"` // "text" | "json"
}

// SearchConfig は検索設定
type SearchConfig struct {
	DefaultLimit int    `json:"defaultLimit" yaml:"defaultLimit"` // default: 10
	Timezone     string `json:"timezone" yaml:"timezone"`         // 日付フィルタの暦日境界、空ならLocal
}

// ListConfig は一覧設定
type ListConfig struct {
	DefaultLimit int `json:"defaultLimit" yaml:"defaultLimit"` // default: 500
}

// Transport定数
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Embedder Provider定数
const (
	ProviderLocal  = "local"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Store Type定数
const (
	StoreTypeSQLite    = "sqlite"
	StoreTypeSQLiteVec = "sqlitevec"
	StoreTypeQdrant    = "qdrant"
	StoreTypeMemory    = "memory"
)

// Log定数
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)
