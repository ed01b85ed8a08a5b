package scheduler

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/carvesec/carve/pkg/config"
)

// TemplateData is what check spec strings may reference. Fields come
// from the competition config and the (team, box) pair under probe.
type TemplateData struct {
	Username        string
	Password        string
	TeamName        string
	BoxName         string
	CompetitionName string
	IPAddress       string
}

func expand(s string, data TemplateData) (string, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}
	tmpl, err := template.New("spec").Option("missingkey=error").Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse template %q: %w", s, err)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", fmt.Errorf("render template %q: %w", s, err)
	}
	return out.String(), nil
}

// renderSpec expands template references in a check spec's string fields
// for one (team, box) pair. The input spec is not modified.
func renderSpec(spec config.CheckSpec, data TemplateData) (config.CheckSpec, error) {
	var err error
	switch spec.Type {
	case "http":
		h := *spec.HTTP
		if h.URL, err = expand(h.URL, data); err != nil {
			return spec, err
		}
		if h.Body, err = expand(h.Body, data); err != nil {
			return spec, err
		}
		if h.Regex, err = expand(h.Regex, data); err != nil {
			return spec, err
		}
		spec.HTTP = &h
	case "ssh":
		sp := *spec.SSH
		if sp.Username, err = expand(sp.Username, data); err != nil {
			return spec, err
		}
		if sp.Password, err = expand(sp.Password, data); err != nil {
			return spec, err
		}
		if sp.KeyPath, err = expand(sp.KeyPath, data); err != nil {
			return spec, err
		}
		spec.SSH = &sp
	case "nix":
		sh := *spec.Shell
		if sh.Script, err = expand(sh.Script, data); err != nil {
			return spec, err
		}
		spec.Shell = &sh
	}
	return spec, nil
}
