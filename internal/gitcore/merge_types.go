package gitcore

// ConflictType classifies how two sides of a merge disagree over a single
// path. The zero value, ConflictNone, means both sides can be merged
// without operator input.
type ConflictType string

const (
	ConflictNone         ConflictType = ""
	ConflictBothAdded    ConflictType = "both_added"
	ConflictDeleteModify ConflictType = "delete_modify"
	ConflictConflicting  ConflictType = "conflicting"
)

// MergePreviewEntry summarizes one path's change on each side of a merge,
// before any tree is actually rewritten.
type MergePreviewEntry struct {
	Path         string       `json:"path"`
	IsBinary     bool         `json:"isBinary"`
	BaseHash     Hash         `json:"baseHash,omitempty"`
	OursHash     Hash         `json:"oursHash,omitempty"`
	OursStatus   string       `json:"oursStatus,omitempty"`
	TheirsHash   Hash         `json:"theirsHash,omitempty"`
	TheirsStatus string       `json:"theirsStatus,omitempty"`
	ConflictType ConflictType `json:"conflictType"`
}

// MergePreviewStats totals the per-path classification of a MergePreviewResult.
type MergePreviewStats struct {
	TotalFiles int `json:"totalFiles"`
	Conflicts  int `json:"conflicts"`
	CleanMerge int `json:"cleanMerge"`
}

// MergePreviewResult is the output of MergePreview: the merge base found,
// and every path that differs from it on either side.
type MergePreviewResult struct {
	MergeBaseHash Hash                `json:"mergeBaseHash"`
	OursHash      Hash                `json:"oursHash"`
	TheirsHash    Hash                `json:"theirsHash"`
	Entries       []MergePreviewEntry `json:"entries"`
	Stats         MergePreviewStats   `json:"stats"`
}

// MergeRegionType classifies a contiguous block of lines produced by a
// diff3-style merge walk.
type MergeRegionType string

const (
	MergeRegionContext  MergeRegionType = "context"
	MergeRegionOurs     MergeRegionType = "ours"
	MergeRegionTheirs   MergeRegionType = "theirs"
	MergeRegionConflict MergeRegionType = "conflict"
)

// MergeRegion is one contiguous span of a three-way file diff: unchanged
// context, a change from only one side, or a genuine conflict carrying both
// sides' replacement lines.
type MergeRegion struct {
	Type        MergeRegionType `json:"type"`
	BaseStart   int             `json:"baseStart"`
	BaseLines   []string        `json:"baseLines,omitempty"`
	OursLines   []string        `json:"oursLines,omitempty"`
	TheirsLines []string        `json:"theirsLines,omitempty"`
}

// ThreeWayDiffStats totals line churn across a three-way file diff's regions.
type ThreeWayDiffStats struct {
	OursAdded       int `json:"oursAdded"`
	OursDeleted     int `json:"oursDeleted"`
	TheirsAdded     int `json:"theirsAdded"`
	TheirsDeleted   int `json:"theirsDeleted"`
	ConflictRegions int `json:"conflictRegions"`
}

// ThreeWayFileDiff is the full diff3-style result for a single path across
// base/ours/theirs blob versions.
type ThreeWayFileDiff struct {
	Path         string            `json:"path"`
	IsBinary     bool              `json:"isBinary"`
	Truncated    bool              `json:"truncated"`
	ConflictType ConflictType      `json:"conflictType"`
	Regions      []MergeRegion     `json:"regions"`
	Stats        ThreeWayDiffStats `json:"stats"`
}
