package orchestrator

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hbashir/aide/internal/actionfile"
)

type planInput struct {
	Stem     string
	TaskFile string
	Meta     actionfile.FrontMatter
	Now      time.Time
}

func (p planInput) Summary() string {
	if p.Meta.Subject != "" {
		return p.Meta.Subject
	}
	switch p.Meta.Type {
	case "file_drop":
		return "File Drop Processing"
	case "email":
		return "Email Processing"
	default:
		return "Task Processing"
	}
}

func (p planInput) TaskType() string {
	if p.Meta.Type == "" {
		return "unknown"
	}
	return p.Meta.Type
}

var planTemplate = template.Must(template.New("plan").Parse(`---
name: {{.Stem}}_plan
type: task_plan
created: {{.Now.Format "2006-01-02T15:04:05Z07:00"}}
task_type: {{.TaskType}}
status: pending
---

# Task Plan: {{.Summary}}

## Task Details

**Original File:** {{.TaskFile}}
**Type:** {{.TaskType}}
{{- if .Meta.From}}
**From:** {{.Meta.From}}
{{- end}}
**Received:** {{.Now.Format "2006-01-02 15:04:05"}}

## Analysis

The task "{{.TaskFile}}" arrived through the {{if .Meta.Source}}{{.Meta.Source}}{{else}}manual{{end}} source and needs to be handled according to its type and content.

## Action Plan

### Step 1: Review
- [ ] Analyze the task content and type
- [ ] Determine the appropriate handling
- [ ] Check for any special requirements

### Step 2: Processing
- [ ] Process the task according to its type
- [ ] Extract relevant information
- [ ] Generate the required output

### Step 3: Execution
- [ ] Execute the required actions
- [ ] Request approval for anything sensitive
- [ ] Update the system state

### Step 4: Completion
- [ ] Move the original file to the appropriate folder
- [ ] Update the task status
- [ ] Log completion

## Approval Required

Sensitive steps go through the approval workflow before execution:
- External communications
- Payments or transfers
- Anything touching new recipients

## Next Steps

1. Review this plan in the Plans folder
2. Approve or reject the pending approval requests it creates
3. Completed tasks move to Done
`))

func renderPlan(in planInput) (string, error) {
	var b strings.Builder
	if err := planTemplate.Execute(&b, in); err != nil {
		return "", fmt.Errorf("render plan: %w", err)
	}
	return b.String(), nil
}
