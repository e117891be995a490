// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-dcmtools.
//
// go-dcmtools is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-dcmtools/pkg/certstore"
	"github.com/jeremyhahn/go-dcmtools/pkg/dcm"
	"github.com/jeremyhahn/go-dcmtools/pkg/platform"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatYAML  OutputFormat = "yaml"
	OutputFormatTable OutputFormat = "table"
)

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	if format == "" {
		format = string(OutputFormatText)
	}
	return &Printer{
		format: OutputFormat(strings.ToLower(format)),
		writer: writer,
	}
}

// entryOutput is the serialized form of one store entry.
type entryOutput struct {
	Alias     string `json:"alias" yaml:"alias"`
	Type      string `json:"type" yaml:"type"`
	Subject   string `json:"subject,omitempty" yaml:"subject,omitempty"`
	Issuer    string `json:"issuer,omitempty" yaml:"issuer,omitempty"`
	Serial    string `json:"serial,omitempty" yaml:"serial,omitempty"`
	NotBefore string `json:"not_before,omitempty" yaml:"not_before,omitempty"`
	NotAfter  string `json:"not_after,omitempty" yaml:"not_after,omitempty"`
	CA        bool   `json:"ca" yaml:"ca"`
}

type skipOutput struct {
	Alias   string `json:"alias" yaml:"alias"`
	Reason  string `json:"reason" yaml:"reason"`
	Message string `json:"message" yaml:"message"`
}

type changeOutput struct {
	Kind  string `json:"kind" yaml:"kind"`
	Alias string `json:"alias" yaml:"alias"`
}

type importOutput struct {
	OperationID  string         `json:"operation_id" yaml:"operation_id"`
	Loaded       int            `json:"loaded" yaml:"loaded"`
	LoadWarnings []string       `json:"load_warnings,omitempty" yaml:"load_warnings,omitempty"`
	Skipped      []skipOutput   `json:"skipped,omitempty" yaml:"skipped,omitempty"`
	Warnings     []string       `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Changes      []changeOutput `json:"changes" yaml:"changes"`
}

type viewOutput struct {
	Store   string            `json:"store" yaml:"store"`
	Entries []entryOutput     `json:"entries" yaml:"entries"`
	Usages  map[string]string `json:"usages,omitempty" yaml:"usages,omitempty"`
}

func toEntryOutput(e certstore.Entry) entryOutput {
	out := entryOutput{Alias: e.Alias, Type: e.Cert.Type()}
	if !e.Cert.IsX509() {
		return out
	}
	info := e.Cert.Info()
	out.Subject = info.Subject
	out.Issuer = info.Issuer
	out.Serial = info.SerialNumber
	out.NotBefore = info.NotBefore.UTC().Format(time.RFC3339)
	out.NotAfter = info.NotAfter.UTC().Format(time.RFC3339)
	out.CA = info.IsCA
	return out
}

func toChangeOutputs(changes []certstore.Change) []changeOutput {
	out := make([]changeOutput, len(changes))
	for i, c := range changes {
		out[i] = changeOutput{Kind: strings.ToLower(c.Kind.String()), Alias: c.Alias}
	}
	return out
}

// PrintImportReport prints the outcome of an import
func (p *Printer) PrintImportReport(report *dcm.ImportReport) error {
	out := importOutput{
		OperationID: report.OperationID,
		Loaded:      report.Loaded,
		Changes:     toChangeOutputs(report.Changes),
	}
	for _, w := range report.LoadWarnings {
		out.LoadWarnings = append(out.LoadWarnings, w.String())
	}
	if res := report.Resolution; res != nil {
		for _, s := range res.Skipped {
			out.Skipped = append(out.Skipped, skipOutput{Alias: s.Alias, Reason: s.Reason.String(), Message: s.Message()})
		}
		for _, w := range res.Warnings {
			out.Warnings = append(out.Warnings, w.Message())
		}
	}

	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(out)
	case OutputFormatYAML:
		return p.printYAML(out)
	case OutputFormatText, OutputFormatTable:
		for _, w := range out.LoadWarnings {
			fmt.Fprintf(p.writer, "Warning: %s\n", w)
		}
		for _, s := range out.Skipped {
			fmt.Fprintf(p.writer, "Skipping `%s`: %s\n", s.Alias, s.Message)
		}
		for _, w := range out.Warnings {
			fmt.Fprintf(p.writer, "Warning: %s\n", w)
		}
		return p.PrintChanges(report.Changes)
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintChanges prints the changes seen in a store
func (p *Printer) PrintChanges(changes []certstore.Change) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{"changes": toChangeOutputs(changes)})
	case OutputFormatYAML:
		return p.printYAML(map[string]interface{}{"changes": toChangeOutputs(changes)})
	case OutputFormatTable:
		if len(changes) == 0 {
			fmt.Fprintln(p.writer, "No changes")
			return nil
		}
		fmt.Fprintf(p.writer, "%-10s %s\n", "CHANGE", "ALIAS")
		fmt.Fprintln(p.writer, strings.Repeat("-", 40))
		for _, c := range changes {
			fmt.Fprintf(p.writer, "%-10s %s\n", c.Kind, c.Alias)
		}
		return nil
	case OutputFormatText:
		for _, c := range changes {
			fmt.Fprintln(p.writer, c.String())
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintPendingImport lists the certificates about to be imported. It
// always writes text because it precedes a confirmation prompt.
func (p *Printer) PrintPendingImport(res *certstore.Resolution) {
	for _, s := range res.Skipped {
		fmt.Fprintf(p.writer, "Skipping `%s`: %s\n", s.Alias, s.Message())
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(p.writer, "Warning: %s\n", w.Message())
	}
	fmt.Fprintf(p.writer, "The following %d certificate(s) will be imported:\n", res.Approved.Len())
	for _, e := range res.Approved.Entries() {
		info := e.Cert.Info()
		if info.Subject == "" {
			fmt.Fprintf(p.writer, "  %s\n", e.Alias)
			continue
		}
		fmt.Fprintf(p.writer, "  %s (%s)\n", e.Alias, info.Subject)
	}
}

// PrintView prints the contents of a store
func (p *Printer) PrintView(view *dcm.View) error {
	out := viewOutput{Store: view.Snapshot.Source(), Usages: view.Usages}
	for _, e := range view.Snapshot.Store().Entries() {
		out.Entries = append(out.Entries, toEntryOutput(e))
	}

	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(out)
	case OutputFormatYAML:
		return p.printYAML(out)
	case OutputFormatTable:
		if len(out.Entries) == 0 {
			fmt.Fprintln(p.writer, "No certificates found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-30s %-4s %-25s %s\n", "ALIAS", "CA", "EXPIRES", "SUBJECT")
		fmt.Fprintln(p.writer, strings.Repeat("-", 100))
		for _, e := range out.Entries {
			ca := "no"
			if e.CA {
				ca = "yes"
			}
			fmt.Fprintf(p.writer, "%-30s %-4s %-25s %s\n", e.Alias, ca, e.NotAfter, e.Subject)
		}
		p.printUsages(out.Usages)
		return nil
	case OutputFormatText:
		fmt.Fprintf(p.writer, "Store: %s\n", out.Store)
		store := view.Snapshot.Store()
		fmt.Fprintf(p.writer, "Certificates: %d (%d CA)\n", store.Len(), store.CACount())
		for _, e := range store.Entries() {
			fmt.Fprintf(p.writer, "\nAlias: %s\n%s\n", e.Alias, e.Cert)
		}
		p.printUsages(out.Usages)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func (p *Printer) printUsages(usages map[string]string) {
	if len(usages) == 0 {
		return
	}
	apps := make([]string, 0, len(usages))
	for app := range usages {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	fmt.Fprintln(p.writer, "\nApplication assignments:")
	for _, app := range apps {
		fmt.Fprintf(p.writer, "  %s: %s\n", app, usages[app])
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatYAML:
		return p.printYAML(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		out := map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		}
		if code := platform.CodeOf(err); code != "" {
			out["code"] = code
		}
		return p.printJSON(out)
	case OutputFormatYAML:
		return p.printYAML(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// printYAML prints data as YAML
func (p *Printer) printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(p.writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
