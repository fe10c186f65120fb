package export

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/labelerr"
	"github.com/heimdex/heimdex-labels/internal/labels"
)

// DefaultFrameRate is used when neither the request nor the data unit
// carries a frame rate.
const DefaultFrameRate = 30.0

// Source is the input of an export: the clips of a video row, the media they
// point at and the row's frame rate.
type Source struct {
	Clips      []ResolvedClip
	Unresolved []string
	MediaPath  string
	FrameRate  float64
}

// ClipsFromRow turns every contiguous frame span of the selected instances
// into a clip. With no selection every instance is exported. Hashes that
// name no instance are returned in Unresolved.
func ClipsFromRow(row *labels.LabelRow, instances []string) (*Source, error) {
	meta := row.Metadata()
	if meta.DataType != labels.DataTypeVideo {
		return nil, &labelerr.ValidationError{
			Location: labelerr.Nowhere,
			Reason:   fmt.Sprintf("edit decision lists need a video, label row is %s", meta.DataType),
		}
	}

	src := &Source{MediaPath: meta.DataTitle, FrameRate: DefaultFrameRate}
	if len(meta.Units) > 0 {
		u := meta.Units[0]
		if u.Link != "" {
			src.MediaPath = u.Link
		} else if u.Title != "" {
			src.MediaPath = u.Title
		}
		if u.FPS > 0 {
			src.FrameRate = u.FPS
		}
	}

	add := func(name, hash string, r frames.Range) {
		clipName := SanitizeName(name+" "+hash, 160)
		if clipName == "" {
			clipName = hash
		}
		for _, iv := range r.Intervals() {
			src.Clips = append(src.Clips, ResolvedClip{
				ClipName:     clipName,
				MediaPath:    src.MediaPath,
				StartFrame:   iv.Start,
				EndFrame:     iv.End + 1,
				InstanceHash: hash,
			})
		}
	}

	if len(instances) == 0 {
		for _, o := range row.Objects() {
			add(o.Feature().Name, o.Hash(), o.Frames())
		}
		for _, c := range row.Classifications() {
			add(c.Feature().Name(), c.Hash(), c.Frames())
		}
	} else {
		for _, hash := range instances {
			if o, ok := row.Object(hash); ok {
				add(o.Feature().Name, hash, o.Frames())
			} else if c, ok := row.Classification(hash); ok {
				add(c.Feature().Name(), hash, c.Frames())
			} else {
				src.Unresolved = append(src.Unresolved, hash)
			}
		}
	}

	slices.SortStableFunc(src.Clips, func(a, b ResolvedClip) int {
		return cmp.Or(cmp.Compare(a.StartFrame, b.StartFrame), cmp.Compare(a.InstanceHash, b.InstanceHash))
	})
	return src, nil
}
