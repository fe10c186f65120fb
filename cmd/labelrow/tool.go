package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/heimdex/heimdex-labels/internal/frames"
	"github.com/heimdex/heimdex-labels/internal/labels"
	"github.com/heimdex/heimdex-labels/internal/ontology"
	"github.com/heimdex/heimdex-labels/internal/wire"
)

// tool holds one decoded payload and the codec it was read with.
type tool struct {
	codec *wire.Codec
	row   *labels.LabelRow
}

func newTool(ontologyPath, inputPath string, logger *slog.Logger) (*tool, error) {
	index, err := ontology.LoadFile(ontologyPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read label row: %w", err)
	}
	return load(index, data, logger)
}

func load(lookup ontology.Lookup, data []byte, logger *slog.Logger) (*tool, error) {
	codec := wire.NewCodec(lookup, logger)
	row, err := codec.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &tool{codec: codec, row: row}, nil
}

func withOutput(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (t *tool) write(w io.Writer) error {
	payload, err := t.codec.Encode(t.row)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func (t *tool) normalize(w io.Writer) error {
	return t.write(w)
}

func (t *tool) validate(w io.Writer) error {
	if err := t.row.Validate(); err != nil {
		return err
	}
	meta := t.row.Metadata()
	_, err := fmt.Fprintf(w, "%s: ok (%d objects, %d classifications)\n",
		meta.LabelHash, len(t.row.Objects()), len(t.row.Classifications()))
	return err
}

func (t *tool) interpolate(w io.Writer, instance, frameSpec string) error {
	r, err := frames.Parse(frameSpec)
	if err != nil {
		return err
	}
	if err := t.row.Interpolate(instance, r); err != nil {
		return err
	}
	return t.write(w)
}

func (t *tool) stats(w io.Writer) error {
	meta := t.row.Metadata()
	fmt.Fprintf(w, "label row %s (%s, %d frames)\n\n", meta.LabelHash, meta.DataType, meta.FrameCount)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tHASH\tNAME\tSHAPE\tFRAMES\tCOUNT")
	for _, o := range t.row.Objects() {
		fmt.Fprintf(tw, "object\t%s\t%s\t%s\t%s\t%d\n",
			o.Hash(), o.Feature().Name, o.Feature().Shape, o.Frames(), o.Frames().Len())
	}
	for _, c := range t.row.Classifications() {
		fmt.Fprintf(tw, "classification\t%s\t%s\t-\t%s\t%d\n",
			c.Hash(), c.Feature().Name(), c.Frames(), c.Frames().Len())
	}
	return tw.Flush()
}
