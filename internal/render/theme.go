package render

import "jsbridge/internal/sink"

// Theme holds colors for graph rendering.
type Theme struct {
	Background string
	NodeFill   string
	NodeBorder string
	TextColor  string

	// Edge colors by invoke kind.
	EdgeVirtual   string // invoke-virtual
	EdgeInterface string // invoke-interface
	EdgeStatic    string // invoke-static
	EdgeDirect    string // invoke-direct (constructors, private methods)
	EdgeSuper     string // invoke-super

	// Finding colors by confidence grade.
	ConfStatic  string
	ConfAssets  string
	ConfPartial string
	ConfDynamic string
	ConfUnknown string

	// Node accents.
	EntryBorder  string // CFG entry block
	TermFill     string // CFG terminal blocks
	ExternalText string // framework / library targets

	// Cluster styling.
	ClusterBorder string
	ClusterLabel  string
}

// NASA is the NASA/Bauhaus theme: geometric, monochrome, sparse color.
var NASA = Theme{
	Background: "#F5F5F5",
	NodeFill:   "white",
	NodeBorder: "#1A1A1A",
	TextColor:  "#1A1A1A",

	EdgeVirtual:   "#424242", // dark gray
	EdgeInterface: "#9E9E9E", // gray
	EdgeStatic:    "#0B3D91", // NASA blue
	EdgeDirect:    "#00695C", // teal
	EdgeSuper:     "#E65100", // deep orange

	ConfStatic:  "#FC3D21", // NASA red: confirmed exposure
	ConfAssets:  "#E65100",
	ConfPartial: "#F9A825",
	ConfDynamic: "#0B3D91",
	ConfUnknown: "#9E9E9E",

	EntryBorder:  "#0B3D91",
	TermFill:     "#ECEFF1", // blue-gray 50
	ExternalText: "#9E9E9E",

	ClusterBorder: "#BDBDBD",
	ClusterLabel:  "#757575",
}

// confidenceColor returns the node color for a finding grade.
func confidenceColor(c sink.Confidence, t Theme) string {
	switch c {
	case sink.StaticConfirmed:
		return t.ConfStatic
	case sink.InferredFromAssets:
		return t.ConfAssets
	case sink.PartialInfo:
		return t.ConfPartial
	case sink.MarkedDynamic:
		return t.ConfDynamic
	default:
		return t.ConfUnknown
	}
}
