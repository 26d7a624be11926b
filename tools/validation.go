package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
	"github.com/ritukeshbharali/jemjive-3.0/internal/sources"
)

const (
	// ValidationGuidance keeps assistants from inventing problems the checker did not report
	ValidationGuidance = "The issues listed above are the complete validation result. Errors break a structural invariant of the generated search data (unique keys per file, at least one link per entry) and usually mean the documentation build is incomplete or was edited by hand; regenerate it rather than patching the file. Warnings are informational."
)

// ValidateSearchDataInput defines input for validate_search_data tool
type ValidateSearchDataInput struct {
	Path string `json:"path" jsonschema:"A searchData file such as html/search/functions_8.js, or a Doxygen search directory"`
}

// FileReport is the validation result of one file.
type FileReport struct {
	Name     string             `json:"name" yaml:"name"`
	Category string             `json:"category,omitempty" yaml:"category,omitempty"`
	Part     int                `json:"part" yaml:"part"`
	Entries  int                `json:"entries" yaml:"entries"`
	Links    int                `json:"links" yaml:"links"`
	Issues   []searchdata.Issue `json:"issues,omitempty" yaml:"issues,omitempty"`
}

// ValidateSearchDataOutput defines output for validate_search_data tool
type ValidateSearchDataOutput struct {
	Path     string       `json:"path" yaml:"path"`
	Valid    bool         `json:"valid" yaml:"valid"`
	Files    []FileReport `json:"files" yaml:"files"`
	Entries  int          `json:"entries" yaml:"entries"`
	Links    int          `json:"links" yaml:"links"`
	Errors   int          `json:"errors" yaml:"errors"`
	Warnings int          `json:"warnings" yaml:"warnings"`
	Guidance string       `json:"guidance,omitempty" yaml:"-"`
}

// ValidatePath checks one searchData file, or every one in a directory.
// Files that do not parse are reported with a syntax issue instead of
// aborting the run.
func ValidatePath(path string) (ValidateSearchDataOutput, error) {
	output := ValidateSearchDataOutput{Path: path, Files: []FileReport{}}

	info, err := os.Stat(path)
	if err != nil {
		return output, fmt.Errorf("cannot access %s: %w", path, err)
	}

	var names []string
	dir := filepath.Dir(path)
	if info.IsDir() {
		dir = path
		names, err = sources.Names(os.DirFS(path), ".")
		if err != nil {
			return output, err
		}
		if len(names) == 0 {
			return output, fmt.Errorf("no search data files in %s", path)
		}
	} else {
		names = []string{filepath.Base(path)}
	}

	for _, name := range names {
		report := validateFile(filepath.Join(dir, name))
		output.Entries += report.Entries
		output.Links += report.Links
		for _, issue := range report.Issues {
			if issue.Severity == searchdata.SeverityError {
				output.Errors++
			} else {
				output.Warnings++
			}
		}
		output.Files = append(output.Files, report)
	}

	output.Valid = output.Errors == 0
	return output, nil
}

func validateFile(path string) FileReport {
	name := filepath.Base(path)
	report := FileReport{Name: name}
	report.Category, report.Part, _ = searchdata.ParseFileName(name)

	data, err := os.ReadFile(path)
	if err != nil {
		report.Issues = []searchdata.Issue{{
			Severity: searchdata.SeverityError,
			Code:     searchdata.CodeSyntax,
			File:     name,
			Message:  err.Error(),
		}}
		return report
	}

	f, err := searchdata.ParseFile(name, data)
	if err != nil {
		report.Issues = []searchdata.Issue{{
			Severity: searchdata.SeverityError,
			Code:     searchdata.CodeSyntax,
			File:     name,
			Message:  err.Error(),
		}}
		return report
	}

	report.Category = f.Category
	report.Part = f.Part
	report.Entries = len(f.Entries)
	report.Links = f.LinkCount()
	report.Issues = f.Validate()
	return report
}

// ValidateSearchData checks generated search data against its invariants
func ValidateSearchData(ctx context.Context, req *mcp.CallToolRequest, input ValidateSearchDataInput) (*mcp.CallToolResult, ValidateSearchDataOutput, error) {
	if input.Path == "" {
		return nil, ValidateSearchDataOutput{}, fmt.Errorf("path is required")
	}

	output, err := ValidatePath(input.Path)
	if err != nil {
		return nil, ValidateSearchDataOutput{}, err
	}
	output.Guidance = ValidationGuidance
	return nil, output, nil
}

// RegisterValidationTools registers the search data validation tool
func RegisterValidationTools(server *mcp.Server) error {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "validate_search_data",
			Description: "Validate Doxygen generated searchData files (one file or a search directory): keys must be unique per file and every entry needs at least one link. Reports key encoding and ordering problems as warnings.",
		},
		ValidateSearchData,
	)
	return nil
}
