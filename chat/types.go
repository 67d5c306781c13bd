package chat

// Turn is one conversation message as supplied by the caller. The caller
// owns conversation continuity; the engine never retains turns across calls.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type DocumentInsight struct {
	ChunkCount       int
	DocType          string
	RelatedDocuments []RelatedDocument
}

// RelatedDocument is another corpus document sharing the doc type.
type RelatedDocument struct {
	ID   string
	Path string
}

type Source struct {
	DocumentID string
	SourcePath string
	DocType    string
	Snippet    string
	Score      float64
	Insight    DocumentInsight
}

type Response struct {
	Answer  string
	Intent  string
	Sources []Source
	// History is the caller-supplied history extended with this turn.
	History []Turn
}
