// Package side translates Selenium IDE recordings (.side projects) into
// action batches.
package side

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/v0xg/snapup/internal/executor"
)

// Project is the subset of a .side file that is imported.
type Project struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Tests []Test `json:"tests"`
}

type Test struct {
	Name     string    `json:"name"`
	Commands []Command `json:"commands"`
}

// Command is one recorded step.
type Command struct {
	Command string `json:"command"`
	Target  string `json:"target"`
	Value   string `json:"value"`
}

// commands maps recorded command names to action names. Anything else
// passes through unchanged.
var commands = map[string]executor.Name{
	"open":          "open",
	"click":         executor.Click,
	"type":          executor.Input,
	"setWindowSize": executor.SetWindowSize,
	"runScript":     executor.RunScript,
}

// Parse decodes a .side project.
func Parse(data []byte) (*Project, error) {
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("side: decode project: %w", err)
	}
	if len(p.Tests) == 0 {
		return nil, fmt.Errorf("side: project %q has no tests", p.Name)
	}
	return &p, nil
}

// Import parses data and translates every command of every test, in order.
func Import(data []byte) (string, []executor.Action, error) {
	p, err := Parse(data)
	if err != nil {
		return "", nil, err
	}
	actions, err := p.Actions()
	if err != nil {
		return "", nil, err
	}
	return p.URL, actions, nil
}

// Actions translates the project's commands.
func (p *Project) Actions() ([]executor.Action, error) {
	var out []executor.Action
	for _, t := range p.Tests {
		for i, c := range t.Commands {
			a, err := Translate(c)
			if err != nil {
				return nil, fmt.Errorf("side: test %q: command %d: %w", t.Name, i, err)
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// Translate converts one recorded command into an action.
func Translate(c Command) (executor.Action, error) {
	name, ok := commands[c.Command]
	if !ok {
		name = executor.Name(c.Command)
	}
	a := executor.Action{Name: name}

	if c.Target != "" {
		a.LocatorType, a.LocatorValue = SplitTarget(c.Target)
	}

	if c.Command == "setWindowSize" {
		w, h, err := parseSize(c.Target)
		if err != nil {
			return executor.Action{}, err
		}
		a.Width, a.Height = w, h
	}

	if c.Value != "" {
		a.InputValue = c.Value
	}

	if a.Name == executor.RunScript {
		a.Script = c.Target
		a.LocatorType, a.LocatorValue = "", ""
	}
	return a, nil
}

// SplitTarget splits a "kind=value" target on the first '='. The kind is
// upper-cased. A target without '=' is returned as a raw value with no kind.
func SplitTarget(target string) (kind, value string) {
	k, v, found := strings.Cut(target, "=")
	if !found {
		return "", target
	}
	return strings.ToUpper(k), v
}

func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(s, "x")
	if !ok {
		return 0, 0, fmt.Errorf("window size %q: want WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("window size %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("window size %q: %w", s, err)
	}
	return w, h, nil
}
