package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/raymyers/ralph-xir/pkg/validate"
	"github.com/raymyers/ralph-xir/pkg/xir"
)

// codeDecode marks input that could not be read as an xir file
const codeDecode = "DECODE"

// jsonReport is the JSON form of a validation run.
type jsonReport struct {
	File    string       `json:"file"`
	Valid   bool         `json:"valid"`
	Fatal   *jsonError   `json:"fatal,omitempty"`
	Members []jsonMember `json:"members"`
	IR      string       `json:"ir,omitempty"`
}

type jsonMember struct {
	Path  string     `json:"path"`
	Kind  string     `json:"kind"`
	Error *jsonError `json:"error,omitempty"`
}

type jsonError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Function string `json:"function,omitempty"`
	Location string `json:"location,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

func toJSONError(code string, err error) *jsonError {
	var ve *validate.Error
	if errors.As(err, &ve) {
		return &jsonError{
			Code:     string(ve.Code),
			Message:  ve.Message,
			Function: ve.Function,
			Location: ve.Where(),
			Expected: ve.Expected,
			Actual:   ve.Actual,
		}
	}
	if code == "" {
		code = "ERROR"
	}
	return &jsonError{Code: code, Message: err.Error()}
}

func writeJSONReport(w io.Writer, filename string, report *validate.Report, dumpIR bool) error {
	jr := jsonReport{File: filename, Valid: report.Valid(), Members: make([]jsonMember, 0, len(report.Members))}
	for _, m := range report.Members {
		jm := jsonMember{Path: m.Path.String(), Kind: string(m.Kind)}
		if m.Err != nil {
			jm.Error = toJSONError("", m.Err)
		}
		jr.Members = append(jr.Members, jm)
	}
	if dumpIR {
		var sb strings.Builder
		xir.NewPrinter(&sb).PrintFile(report.File)
		jr.IR = sb.String()
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jr)
}

// writeTextReport prints one line per failed member and a summary
func writeTextReport(w io.Writer, filename string, report *validate.Report) {
	failed := 0
	for _, m := range report.Members {
		if m.Err == nil {
			continue
		}
		failed++
		fmt.Fprintf(w, "ralph-xir: %s: %s %s: %v\n", filename, m.Kind, m.Path, m.Err)
	}
	fmt.Fprintf(w, "ralph-xir: %s: %d members checked, %d failed\n", filename, len(report.Members), failed)
}

// reportFatal reports an error that stopped validation of the whole file
// and returns it
func reportFatal(cfg Config, filename, code string, err error, out, errOut io.Writer) error {
	if cfg.Format == formatJSON {
		jr := jsonReport{File: filename, Fatal: toJSONError(code, err), Members: []jsonMember{}}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(jr); encErr != nil {
			return encErr
		}
		return err
	}
	fmt.Fprintf(errOut, "ralph-xir: %s: %v\n", filename, err)
	return err
}
