package graph

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/aretw0/railyard/pkg/domain"
)

// Overlay contains session state to highlight on the graph.
type Overlay struct {
	// VisitedFlows are flows the session has entered.
	VisitedFlows []string
	// Active is the cursor of the flow in progress, if any.
	Active *domain.Cursor
}

// OverlayFromSession derives an overlay from a session's cursor and trace.
func OverlayFromSession(sess *domain.Session) *Overlay {
	o := &Overlay{Active: sess.Active}
	for _, tr := range sess.Trace {
		if tr.Kind == domain.TraceFlow && tr.Flow != "" && !slices.Contains(o.VisitedFlows, tr.Flow) {
			o.VisitedFlows = append(o.VisitedFlows, tr.Flow)
		}
	}
	return o
}

// GenerateMermaid produces a Mermaid flowchart with one subgraph per flow.
// It applies semantic styling:
// - User step: [/Parallelogram/]
// - Bot step: [Rectangle]
// - Execute: [[Subroutine]]
// - Check: {{Hexagon}}
// - Branch: {Rhombus}
// - Stop: ((Circle))
func GenerateMermaid(rails *domain.Rails, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	flowIDs := make(map[string]string, len(rails.Flows))
	for i, f := range rails.Flows {
		id := "f" + strconv.Itoa(i)
		flowIDs[f.Name] = id
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", id, escape(f.Name))
		emit(&sb, id, f.Steps)
		sb.WriteString("    end\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		for _, name := range overlay.VisitedFlows {
			if id, ok := flowIDs[name]; ok {
				fmt.Fprintf(&sb, "    style %s fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000\n", id)
			}
		}
		if overlay.Active != nil {
			if id, ok := flowIDs[overlay.Active.Flow]; ok {
				fmt.Fprintf(&sb, "    class %s current;\n", pathID(id, overlay.Active.Path))
			}
		}
	}
	return sb.String()
}

// emit writes the steps under prefix and links them in order. It returns the
// entry node and the nodes that fall through to whatever follows.
func emit(sb *strings.Builder, prefix string, steps []domain.Step) (string, []string) {
	var entry string
	var exits []string
	for i, st := range steps {
		id := prefix + "_" + strconv.Itoa(i)
		opener, closer := shape(st.Kind)
		fmt.Fprintf(sb, "        %s%s\"%s\"%s\n", id, opener, escape(label(st)), closer)
		for _, from := range exits {
			fmt.Fprintf(sb, "        %s --> %s\n", from, id)
		}
		if entry == "" {
			entry = id
		}

		switch st.Kind {
		case domain.StepBranch:
			exits = nil
			cond := "then"
			if st.Condition != nil && st.Condition.Source != "" {
				cond = st.Condition.Source
			}
			exits = append(exits, arm(sb, id, 0, st.Then, cond)...)
			exits = append(exits, arm(sb, id, 1, st.Else, "else")...)
		case domain.StepStop:
			exits = nil
		default:
			exits = []string{id}
		}
	}
	return entry, exits
}

func arm(sb *strings.Builder, branchID string, n int, steps []domain.Step, cond string) []string {
	if len(steps) == 0 {
		return []string{branchID}
	}
	entry, exits := emit(sb, branchID+"_"+strconv.Itoa(n), steps)
	fmt.Fprintf(sb, "        %s -- \"%s\" --> %s\n", branchID, escape(cond), entry)
	return exits
}

func pathID(prefix string, path []int) string {
	parts := make([]string, 0, len(path)+1)
	parts = append(parts, prefix)
	for _, p := range path {
		parts = append(parts, strconv.Itoa(p))
	}
	return strings.Join(parts, "_")
}

func shape(k domain.StepKind) (string, string) {
	switch k {
	case domain.StepExpectUser:
		return "[/", "/]"
	case domain.StepAction:
		return "[[", "]]"
	case domain.StepGuardCheck:
		return "{{", "}}"
	case domain.StepBranch:
		return "{", "}"
	case domain.StepStop:
		return "((", "))"
	case domain.StepThink:
		return ">", "]"
	default:
		return "[", "]"
	}
}

func label(st domain.Step) string {
	switch st.Kind {
	case domain.StepExpectUser:
		return "user " + st.Intent
	case domain.StepBotMessage:
		return "bot " + st.Message
	case domain.StepGuardCheck:
		return "check " + st.Guard
	case domain.StepAction:
		if st.SaveAs != "" {
			return "$" + st.SaveAs + " = execute " + st.Action
		}
		return "execute " + st.Action
	case domain.StepBranch:
		if st.Condition != nil && st.Condition.Source != "" {
			return "if " + st.Condition.Source
		}
		return "if"
	case domain.StepThink:
		return "think"
	case domain.StepStop:
		return "stop"
	}
	return string(st.Kind)
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
