package store

// ─── Domain types ────────────────────────────────────────────────────────────
//
// Row shape (snake_case columns, JSON-encoded array columns) is translated to
// this domain shape (camelCase fields, decoded slices) at the repository
// boundary, per spec §4.1. Decode failures on array columns yield an empty
// slice — logged, never a panic — see decodeJSONArray in helpers.go.

type Session struct {
	ID               string  `json:"id"`
	Project          string  `json:"project"`
	StartedAt        string  `json:"startedAt"`
	EndedAt          *string `json:"endedAt,omitempty"`
	Status           string  `json:"status"`
	ObservationCount int     `json:"observationCount"`
	SummaryID        *int64  `json:"summaryId,omitempty"`
}

const (
	SessionActive    = "active"
	SessionIdle      = "idle"
	SessionCompleted = "completed"
)

// Observation types, the closed set spec §3 names.
const (
	ObsDecision = "decision"
	ObsBugfix   = "bugfix"
	ObsFeature  = "feature"
	ObsRefactor = "refactor"
	ObsDiscover = "discovery"
	ObsChange   = "change"
)

var validObservationTypes = map[string]bool{
	ObsDecision: true, ObsBugfix: true, ObsFeature: true,
	ObsRefactor: true, ObsDiscover: true, ObsChange: true,
}

// IsValidObservationType reports whether typ is in the closed set.
func IsValidObservationType(typ string) bool { return validObservationTypes[typ] }

type Observation struct {
	ID              int64    `json:"id"`
	SessionID       string   `json:"sessionId"`
	Type            string   `json:"type"`
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle,omitempty"`
	Facts           []string `json:"facts"`
	Narrative       string   `json:"narrative"`
	Concepts        []string `json:"concepts"`
	FilesRead       []string `json:"filesRead"`
	FilesModified   []string `json:"filesModified"`
	RawOutput       string   `json:"rawOutput,omitempty"`
	ToolName        string   `json:"toolName,omitempty"`
	CreatedAt       string   `json:"createdAt"`
	TokenCount      int      `json:"tokenCount"`
	DiscoveryTokens int      `json:"discoveryTokens"`
	Importance      int      `json:"importance"`
	Embedding       []float32 `json:"embedding,omitempty"`
	SupersededBy    *int64   `json:"supersededBy,omitempty"`
	SupersededAt    *string  `json:"supersededAt,omitempty"`
}

// ObservationIndexEntry is the lightweight projection used by the
// progressive context builder and as the search result shape — no
// raw-output, no embedding.
type ObservationIndexEntry struct {
	ID            int64    `json:"id"`
	SessionID     string   `json:"sessionId"`
	Type          string   `json:"type"`
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	Narrative     string   `json:"narrative"`
	Concepts      []string `json:"concepts"`
	FilesRead     []string `json:"filesRead"`
	FilesModified []string `json:"filesModified"`
	CreatedAt     string   `json:"createdAt"`
	TokenCount    int      `json:"tokenCount"`
	Importance    int      `json:"importance"`
}

type SessionSummary struct {
	ID            int64    `json:"id"`
	SessionID     string   `json:"sessionId"`
	Request       string   `json:"request"`
	Investigated  string   `json:"investigated"`
	Learned       string   `json:"learned"`
	Completed     string   `json:"completed"`
	NextSteps     string   `json:"nextSteps"`
	Summary       string   `json:"summary"`
	KeyDecisions  []string `json:"keyDecisions"`
	FilesModified []string `json:"filesModified"`
	Concepts      []string `json:"concepts"`
	TokenCount    int      `json:"tokenCount"`
	CreatedAt     string   `json:"createdAt"`
}

// Pending message status lifecycle, spec §3/§4.3.
const (
	PendingStatusPending    = "pending"
	PendingStatusProcessing = "processing"
	PendingStatusCompleted  = "completed"
	PendingStatusFailed     = "failed"
)

type PendingMessage struct {
	ID         int64   `json:"id"`
	SessionID  string  `json:"sessionId"`
	ToolName   string  `json:"toolName"`
	ToolOutput string  `json:"toolOutput"`
	CallID     string  `json:"callId,omitempty"`
	Status     string  `json:"status"`
	RetryCount int     `json:"retryCount"`
	LastError  *string `json:"lastError,omitempty"`
	CreatedAt  string  `json:"createdAt"`
	UpdatedAt  string  `json:"updatedAt"`
}

// Entity types, the closed set spec §3 names.
const (
	EntityTechnology = "technology"
	EntityLibrary    = "library"
	EntityPattern    = "pattern"
	EntityConcept    = "concept"
	EntityFile       = "file"
	EntityPerson     = "person"
	EntityProject    = "project"
	EntityOther      = "other"
)

type Entity struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	FirstSeenAt  string `json:"firstSeenAt"`
	LastSeenAt   string `json:"lastSeenAt"`
	MentionCount int    `json:"mentionCount"`
}

// Entity relationship kinds, the closed set spec §3 names.
const (
	RelUses       = "uses"
	RelDependsOn  = "depends_on"
	RelImplements = "implements"
	RelExtends    = "extends"
	RelRelatedTo  = "related_to"
	RelReplaces   = "replaces"
	RelConfigures = "configures"
)

type EntityRelation struct {
	ID            string `json:"id"`
	SourceID      string `json:"sourceId"`
	TargetID      string `json:"targetId"`
	Relationship  string `json:"relationship"`
	ObservationID int64  `json:"observationId"`
	CreatedAt     string `json:"createdAt"`
}

// ExportData is the top-level document shape for mem-export / mem-import,
// spec §6. Observations in an export omit raw tool output.
type ExportData struct {
	Version      int              `json:"version"`
	ExportedAt   string           `json:"exportedAt"`
	Project      string           `json:"project"`
	Observations []Observation    `json:"observations"`
	Summaries    []SessionSummary `json:"summaries"`
}

const ExportVersion = 1

type ImportResult struct {
	ObservationsImported int `json:"observationsImported"`
	ObservationsSkipped  int `json:"observationsSkipped"`
	SummariesImported    int `json:"summariesImported"`
	SummariesSkipped     int `json:"summariesSkipped"`
}

type Stats struct {
	TotalSessions     int      `json:"totalSessions"`
	TotalObservations int      `json:"totalObservations"`
	TotalEntities     int      `json:"totalEntities"`
	PendingCount      int      `json:"pendingCount"`
	Projects          []string `json:"projects"`
}

type TimelineResult struct {
	Focus        Observation   `json:"focus"`
	Before       []Observation `json:"before"`
	After        []Observation `json:"after"`
	SessionInfo  *Session      `json:"sessionInfo,omitempty"`
	TotalInRange int           `json:"totalInRange"`
}
