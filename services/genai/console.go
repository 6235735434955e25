package genaisvc

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/trezcool/attendr/core"
)

const (
	consoleAttendanceReply = `###JSON###
[{"courseCode": "CS101", "courseName": "Intro to Programming", "totalClasses": 40, "attendedClasses": 32},
 {"courseCode": "MA102", "courseName": "Calculus", "totalClasses": 36, "attendedClasses": 24}]
###EXPLANATION###
Console model: canned attendance table.`

	consoleTimetableReply = `###JSON###
[{"subject": "CS101", "day": "Mon", "time": "09:00"},
 {"subject": "Calculus", "day": "Wed", "time": "11:00"}]
###EXPLANATION###
Console model: canned timetable.`
)

// ConsoleService answers with canned replies and records every prompt. Meant for local runs and tests.
type ConsoleService struct {
	mu      sync.Mutex
	Prompts []string

	// overrides; an empty value keeps the canned reply
	ExtractReply string
	AdviseReply  string
	Err          error
}

var _ core.ModelService = (*ConsoleService)(nil)

func NewConsoleService() *ConsoleService {
	return &ConsoleService{}
}

func (svc *ConsoleService) Extract(_ context.Context, prompt string, img core.Image) (string, error) {
	svc.record(prompt)
	if svc.Err != nil {
		return "", svc.Err
	}
	if svc.ExtractReply != "" {
		return svc.ExtractReply, nil
	}
	if strings.Contains(strings.ToLower(prompt), "timetable") {
		return consoleTimetableReply, nil
	}
	return consoleAttendanceReply, nil
}

func (svc *ConsoleService) Advise(_ context.Context, prompt string) (string, error) {
	svc.record(prompt)
	if svc.Err != nil {
		return "", svc.Err
	}
	if svc.AdviseReply != "" {
		return svc.AdviseReply, nil
	}
	return fmt.Sprintf("Console model: received %d characters of context.", len(prompt)), nil
}

func (svc *ConsoleService) LastPrompt() string {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.Prompts) == 0 {
		return ""
	}
	return svc.Prompts[len(svc.Prompts)-1]
}

func (svc *ConsoleService) record(prompt string) {
	svc.mu.Lock()
	svc.Prompts = append(svc.Prompts, prompt)
	svc.mu.Unlock()
}
