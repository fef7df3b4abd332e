//
// Tencent is pleased to support the open source community by making trpc-pipeline-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-pipeline-go is licensed under the Apache License Version 2.0.
//
//

package dag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"maps"
	"os/exec"
	"slices"
	"strings"

	"trpc.group/trpc-go/trpc-pipeline-go/pipelinespec"
)

const (
	// RankDirLR sets a left-to-right layout in Graphviz.
	RankDirLR = "LR"
	// RankDirTB sets a top-to-bottom layout in Graphviz.
	RankDirTB = "TB"

	// ImageFormatPNG is the PNG output format for Graphviz.
	ImageFormatPNG = "png"
	// ImageFormatSVG is the SVG output format for Graphviz.
	ImageFormatSVG = "svg"
)

const (
	shapeBox       = "box"
	shapeBox3D     = "box3d"
	shapeComponent = "component"
	shapeCylinder  = "cylinder"

	colorContainerFill   = "#e3f2fd"
	colorContainerBorder = "#2196f3"
	colorImporterFill    = "#fff3e0"
	colorImporterBorder  = "#ff9800"
	colorDAGFill         = "#e8f5e9"
	colorDAGBorder       = "#4caf50"
	colorLoopFill        = "#f3e5f5"
	colorLoopBorder      = "#9c27b0"
	colorUnknownFill     = "#eeeeee"
	colorUnknownBorder   = "#757575"

	colorOrderEdge = "#aaaaaa"
)

// VizOptions configures DOT export and rendering.
type VizOptions struct {
	// RankDir sets DOT graph direction: "LR" or "TB".
	RankDir string
	// GraphLabel optionally labels the whole graph.
	GraphLabel string
	// IncludeOrderEdges draws dependentTasks edges that carry no data.
	IncludeOrderEdges bool
}

// VizOption mutates VizOptions.
type VizOption func(*VizOptions)

// WithRankDir sets DOT graph direction. Valid values: "LR", "TB".
func WithRankDir(dir string) VizOption {
	return func(o *VizOptions) {
		if dir == RankDirLR || dir == RankDirTB {
			o.RankDir = dir
		}
	}
}

// WithGraphLabel sets an optional label for the graph.
func WithGraphLabel(label string) VizOption {
	return func(o *VizOptions) { o.GraphLabel = label }
}

// WithOrderEdges toggles rendering of dependentTasks edges.
func WithOrderEdges(include bool) VizOption {
	return func(o *VizOptions) { o.IncludeOrderEdges = include }
}

func defaultVizOptions() *VizOptions {
	return &VizOptions{RankDir: RankDirLR, IncludeOrderEdges: true}
}

// ToDOT renders the task graph of one DAG component in Graphviz DOT. Data
// edges are solid and labeled with the consumed output; loop tasks and
// nested DAGs are styled apart from leaves.
func ToDOT(spec *pipelinespec.PipelineSpec, scope *pipelinespec.ComponentSpec, opts ...VizOption) string {
	o := defaultVizOptions()
	for _, fn := range opts {
		fn(o)
	}

	var b strings.Builder
	b.WriteString("digraph G {\n")
	fmt.Fprintf(&b, "  rankdir=%s;\n", escapeLabel(o.RankDir))
	b.WriteString("  node [fontname=\"Helvetica\"];\n")
	b.WriteString("  edge [fontname=\"Helvetica\"];\n")
	if o.GraphLabel != "" {
		fmt.Fprintf(&b, "  label=\"%s\";\n  labelloc=t;\n", escapeLabel(o.GraphLabel))
	}
	if scope == nil || scope.DAG == nil {
		b.WriteString("}\n")
		return b.String()
	}

	names := slices.Sorted(maps.Keys(scope.DAG.Tasks))
	for _, name := range names {
		task := scope.DAG.Tasks[name]
		shape, fill, color := styleForTask(spec, task)
		label := name
		if task.IteratorKind() != pipelinespec.IteratorNone {
			label += " (loop)"
		}
		fmt.Fprintf(&b, "  \"%s\" [label=\"%s\", shape=%s, style=filled, fillcolor=\"%s\", color=\"%s\"];\n",
			escapeLabel(name), escapeLabel(label), shape, fill, color)
	}
	for _, name := range names {
		writeTaskEdges(&b, name, scope.DAG.Tasks[name], o)
	}
	b.WriteString("}\n")
	return b.String()
}

func writeTaskEdges(b *strings.Builder, name string, task *pipelinespec.PipelineTaskSpec, o *VizOptions) {
	type edge struct{ from, label string }
	var edges []edge
	data := make(map[string]bool)
	if task.Inputs != nil {
		for _, in := range slices.Sorted(maps.Keys(task.Inputs.Parameters)) {
			if p := task.Inputs.Parameters[in]; p.Kind() == pipelinespec.ParameterBindingTaskOutput {
				edges = append(edges, edge{p.TaskOutputParameter.ProducerTask, p.TaskOutputParameter.OutputParameterKey})
			}
		}
		for _, in := range slices.Sorted(maps.Keys(task.Inputs.Artifacts)) {
			if a := task.Inputs.Artifacts[in]; a.Kind() == pipelinespec.ArtifactBindingTaskOutput {
				edges = append(edges, edge{a.TaskOutputArtifact.ProducerTask, a.TaskOutputArtifact.OutputArtifactKey})
			}
		}
	}
	for _, e := range edges {
		data[e.from] = true
		fmt.Fprintf(b, "  \"%s\" -> \"%s\" [label=\"%s\"];\n",
			escapeLabel(e.from), escapeLabel(name), escapeLabel(e.label))
	}
	if !o.IncludeOrderEdges {
		return
	}
	deps := slices.Clone(task.DependentTasks)
	slices.Sort(deps)
	for _, dep := range slices.Compact(deps) {
		if data[dep] {
			continue
		}
		fmt.Fprintf(b, "  \"%s\" -> \"%s\" [style=dashed, color=\"%s\"];\n",
			escapeLabel(dep), escapeLabel(name), colorOrderEdge)
	}
}

func styleForTask(spec *pipelinespec.PipelineSpec, task *pipelinespec.PipelineTaskSpec) (shape, fill, color string) {
	comp, err := spec.Component(task.ComponentRef.Name)
	if err != nil {
		return shapeBox, colorUnknownFill, colorUnknownBorder
	}
	switch comp.Kind() {
	case pipelinespec.ImplementationDAG:
		if task.IteratorKind() != pipelinespec.IteratorNone {
			return shapeBox3D, colorLoopFill, colorLoopBorder
		}
		return shapeComponent, colorDAGFill, colorDAGBorder
	case pipelinespec.ImplementationExecutor:
		exec, err := spec.Executor(comp.ExecutorLabel)
		if err == nil && exec.Kind() == pipelinespec.ExecutorImporter {
			return shapeCylinder, colorImporterFill, colorImporterBorder
		}
		return shapeBox, colorContainerFill, colorContainerBorder
	default:
		return shapeBox, colorUnknownFill, colorUnknownBorder
	}
}

// WriteDOT writes the DOT representation of scope to w.
func WriteDOT(w io.Writer, spec *pipelinespec.PipelineSpec, scope *pipelinespec.ComponentSpec, opts ...VizOption) error {
	_, err := io.WriteString(w, ToDOT(spec, scope, opts...))
	return err
}

// RenderImage renders scope to an image by invoking Graphviz's `dot` binary.
func RenderImage(
	ctx context.Context,
	spec *pipelinespec.PipelineSpec,
	scope *pipelinespec.ComponentSpec,
	format, outputPath string,
	opts ...VizOption,
) error {
	if format == "" {
		format = ImageFormatPNG
	}
	dotPath, err := exec.LookPath("dot")
	if err != nil {
		return fmt.Errorf("graphviz 'dot' binary not found in PATH: %w", err)
	}
	cmd := exec.CommandContext(ctx, dotPath, "-T"+format, "-o", outputPath)
	cmd.Stdin = bytes.NewBufferString(ToDOT(spec, scope, opts...))
	out, runErr := cmd.CombinedOutput()
	if runErr != nil {
		return fmt.Errorf("dot render failed: %w, output: %s", runErr, string(out))
	}
	return nil
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}
