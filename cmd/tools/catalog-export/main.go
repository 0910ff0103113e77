// cmd/tools/catalog-export/main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"pantry-assistant/internal/actions"
	apperrors "pantry-assistant/internal/common/errors"
	"pantry-assistant/internal/common/logger"
	"pantry-assistant/internal/intent"
	"pantry-assistant/internal/resolver"
	"pantry-assistant/internal/store/memory"
	"pantry-assistant/pkg/registry"
)

func main() {
	exportCmd := flag.NewFlagSet("export", flag.ExitOnError)
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)

	out := exportCmd.String("out", "configs/action-catalog.json", "Path of the catalog to write")
	version := exportCmd.String("version", "1.0.0", "Catalog version")
	locale := exportCmd.String("locale", "fr", "Locale used to render clarify questions")

	path := validateCmd.String("path", "configs/action-catalog.json", "Path to catalog file")

	if len(os.Args) < 2 {
		help()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "export":
		exportCmd.Parse(os.Args[2:])
		cat, err := buildCatalog(*version, *locale)
		if err != nil {
			fmt.Printf("Error building catalog: %v\n", err)
			os.Exit(1)
		}
		if err := registry.Validate(cat); err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		if err := registry.SaveCatalog(cat, *out); err != nil {
			fmt.Printf("Error writing catalog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Exported %d actions to %s\n", len(cat.Actions), *out)

	case "validate":
		validateCmd.Parse(os.Args[2:])
		cat, err := registry.LoadCatalog(*path)
		if err != nil {
			fmt.Printf("Failed to load catalog: %v\n", err)
			os.Exit(1)
		}
		if err := registry.Validate(cat); err != nil {
			fmt.Printf("Catalog validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Catalog validation passed. Found %d actions.\n", len(cat.Actions))

	case "help":
		fallthrough
	default:
		help()
	}
}

// buildCatalog instantiates every action against an empty in-memory store;
// nothing here calls the model.
func buildCatalog(version, locale string) (*registry.ActionCatalog, error) {
	st := memory.New()
	log := logger.NewNoOpLogger()
	reg, err := actions.NewRegistry(intent.Deps{
		Resolver: resolver.New(st, 10, log),
		Store:    st,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	ictx := intent.Context{Locale: locale}
	cat := &registry.ActionCatalog{
		Version:     version,
		LastUpdated: time.Now().Format(time.RFC3339),
	}
	for _, a := range reg.All() {
		questions, err := a.ClarifyQuestions(intent.Draft(`{}`), ictx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a.Name(), err)
		}
		paths := make([]string, len(questions))
		for i, q := range questions {
			paths[i] = q.Path
		}

		schema := a.ExtractSchema()
		cat.Actions = append(cat.Actions, registry.Action{
			Name:             a.Name(),
			Description:      a.Description(),
			Category:         category(a.Name()),
			ExtractionSchema: schema,
			Fields:           registry.SchemaFields(schema),
			ClarifyPaths:     paths,
			ErrorCodes:       errorCodes(a.Name()),
		})
	}
	return cat, nil
}

func category(name string) string {
	for _, c := range []string{"stock", "shopping", "recipe", "meal"} {
		if strings.Contains(name, c) {
			return c
		}
	}
	return "other"
}

func errorCodes(name string) []string {
	codes := []string{
		string(apperrors.ErrCodeExtractionSchemaViolation),
		string(apperrors.ErrCodeInvalidDraft),
		string(apperrors.ErrCodeBusinessRuleViolation),
	}
	switch category(name) {
	case "recipe", "meal":
		codes = append(codes, string(apperrors.ErrCodeEntityNotFound))
	}
	return codes
}

func help() {
	fmt.Println(`
Usage: catalog-export <command> [flags]

Commands:
  export    Write the action catalog (schemas, fields, clarify paths)
  validate  Validate a catalog file
  help      Show this help message

Examples:
  catalog-export export -out configs/action-catalog.json -version 1.1.0
  catalog-export validate -path configs/action-catalog.json

Use 'catalog-export <command> -h' for more information about a command.
`)
}
