// Package export renders the frame spans of label-row instances as an edit
// decision list.
package export

type ExportRequest struct {
	ProjectName string   `json:"project_name"`
	FrameRate   float64  `json:"frame_rate"`
	OutputDir   string   `json:"output_dir"`
	Instances   []string `json:"instances"`
}

// ResolvedClip is one contiguous span of an instance. EndFrame is exclusive.
type ResolvedClip struct {
	ClipName     string
	MediaPath    string
	StartFrame   int
	EndFrame     int
	InstanceHash string
}

type ExportResponse struct {
	Status              string   `json:"status"`
	Format              string   `json:"format"`
	OutputPath          string   `json:"output_path"`
	ClipCount           int      `json:"clip_count"`
	UnresolvedInstances []string `json:"unresolved_instances"`
}
