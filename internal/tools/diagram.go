package tools

import (
	"fmt"
	"strings"
)

// diagramKeywords are the mermaid diagram types accepted by
// create_diagram. The first meaningful line must start with one.
var diagramKeywords = []string{
	"graph",
	"flowchart",
	"sequenceDiagram",
	"classDiagram",
	"stateDiagram",
	"erDiagram",
	"gantt",
	"pie",
	"journey",
	"mindmap",
	"timeline",
}

// createDiagram validates a mermaid definition syntactically. Validation
// failures are returned in the result's error field, never thrown.
func (r *Router) createDiagram(call ToolCall) ToolResult {
	content := stringArg(call.Args, "content")
	if content == "" {
		return failureResult(call, "create_diagram requires a content argument")
	}
	if err := validateMermaid(content); err != nil {
		return failureResult(call, "invalid diagram: %v", err)
	}
	return successResult(call, "diagram validated")
}

func validateMermaid(content string) error {
	lines := strings.Split(content, "\n")
	header := ""
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "%%") {
			continue
		}
		header = trimmed
		break
	}
	if header == "" {
		return fmt.Errorf("diagram definition is empty")
	}

	known := false
	for _, keyword := range diagramKeywords {
		if header == keyword || strings.HasPrefix(header, keyword+" ") || strings.HasPrefix(header, keyword+"-") {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown diagram type in '%s'", header)
	}

	if err := checkBalanced(content); err != nil {
		return err
	}

	subgraphs := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "subgraph"):
			subgraphs++
		case trimmed == "end":
			subgraphs--
			if subgraphs < 0 {
				return fmt.Errorf("'end' without a matching 'subgraph'")
			}
		}
	}
	if subgraphs != 0 {
		return fmt.Errorf("%d unclosed subgraph(s)", subgraphs)
	}
	return nil
}

func checkBalanced(content string) error {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, ch := range content {
		switch ch {
		case '(', '[', '{':
			stack = append(stack, ch)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return fmt.Errorf("unbalanced '%c'", ch)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed '%c'", stack[len(stack)-1])
	}
	return nil
}
