package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/nikogura/doc-reformatter/pkg/store"
	"github.com/nikogura/doc-reformatter/pkg/style"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var templateName string

//nolint:gochecknoglobals // Cobra boilerplate
var templateClient string

//nolint:gochecknoglobals // Cobra boilerplate
var templateOwner string

//nolint:gochecknoglobals // Cobra boilerplate
var templatePrompt string

//nolint:gochecknoglobals // Cobra boilerplate
var templatePromptKind string

//nolint:gochecknoglobals // Cobra boilerplate
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage stored templates",
	Long: `Store, list and inspect template documents.

Templates are stored per owner and client. Importing a template again under the
same name replaces it and invalidates its cached style rules.`,
}

//nolint:gochecknoglobals // Cobra boilerplate
var templateImportCmd = &cobra.Command{
	Use:   "import <template.docx>",
	Short: "Store a template document",
	Long: `Store a template document and the section prompt generated from it.

Example:
  doc-reformatter template import house-style.docx --name house --client acme
  doc-reformatter template import house-style.docx --prompt @sections.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplateImport,
}

//nolint:gochecknoglobals // Cobra boilerplate
var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplateList,
}

//nolint:gochecknoglobals // Cobra boilerplate
var templateDescribeCmd = &cobra.Command{
	Use:   "describe [template.docx]",
	Short: "Print the section prompt and style rules of a template",
	Long: `Print the section prompt the model receives for a template, followed by the
style rules extracted for each section. Give a file, or --name for a stored template.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTemplateDescribe,
}

//nolint:gochecknoglobals // Cobra boilerplate
var templatePromptCmd = &cobra.Command{
	Use:   "prompt <text-or-@file>",
	Short: "Set a stored prompt for a template",
	Long: `Set the template (section description) or conversion prompt stored with a
template. Stored prompts are used by 'convert --template-name' unless overridden.

Example:
  doc-reformatter template prompt @sections.txt --name house --kind template
  doc-reformatter template prompt "Use British spelling." --name house --kind conversion`,
	Args: cobra.ExactArgs(1),
	RunE: runTemplatePrompt,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateImportCmd, templateListCmd, templateDescribeCmd, templatePromptCmd)

	templateCmd.PersistentFlags().StringVar(&templateName, "name", "", "Template name (default is the file name)")
	templateCmd.PersistentFlags().StringVar(&templateClient, "client", "", "Client the template belongs to")
	templateCmd.PersistentFlags().StringVar(&templateOwner, "owner", "", "Template owner (default is the current user)")

	templateImportCmd.Flags().StringVar(&templatePrompt, "prompt", "", "Section prompt to store instead of the generated one")
	templatePromptCmd.Flags().StringVar(&templatePromptKind, "kind", store.PromptTemplate, "Prompt kind: template or conversion")
}

func templateOwnerOrDefault() (owner string) {
	owner = templateOwner
	if owner == "" {
		owner = defaultOwner()
	}
	return owner
}

func runTemplateImport(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	var e *env
	e, err = setup(ctx)
	defer e.Close()
	if err != nil {
		return err
	}

	path := args[0]
	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read template: %s", path)
		return err
	}

	name := templateName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	owner := templateOwnerOrDefault()

	// Reject documents the style engine cannot read before storing them.
	var sections []style.SectionDescription
	sections, err = style.DescribeTemplate(data)
	if err != nil {
		err = errors.Wrapf(err, "invalid template: %s", path)
		return err
	}

	prompt := style.SectionPrompt(sections)
	if templatePrompt != "" {
		prompt, err = readPromptArg(templatePrompt)
		if err != nil {
			return err
		}
	}

	var tpl *store.Template
	tpl, err = e.store.SaveTemplate(ctx, owner, templateClient, name, data)
	if err != nil {
		return err
	}

	err = e.store.SavePrompt(ctx, owner, templateClient, name, store.PromptTemplate, prompt)
	if err != nil {
		return err
	}

	err = e.styles.Invalidate(ctx, owner, templateClient, name)
	if err != nil {
		e.logger.Warnw("Failed to invalidate cached style rules", "template", name, "error", err)
		err = nil
	}

	fmt.Printf("✓ Stored template %s (%d sections, digest %s)\n", tpl.Name, len(sections), tpl.Digest[:12])
	return err
}

func runTemplateList(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	var e *env
	e, err = setup(ctx)
	defer e.Close()
	if err != nil {
		return err
	}

	var templates []store.Template
	templates, err = e.store.ListTemplates(ctx, templateOwnerOrDefault(), templateClient)
	if err != nil {
		return err
	}

	if len(templates) == 0 {
		fmt.Println("No templates stored")
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDIGEST\tUPDATED")
	for _, tpl := range templates {
		fmt.Fprintf(w, "%s\t%s\t%s\n", tpl.Name, tpl.Digest[:12], tpl.UpdatedAt.Format("2006-01-02 15:04"))
	}
	err = w.Flush()
	return err
}

func runTemplateDescribe(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	var data []byte
	switch {
	case len(args) == 1:
		data, err = os.ReadFile(args[0])
		if err != nil {
			err = errors.Wrapf(err, "failed to read template: %s", args[0])
			return err
		}
	case templateName != "":
		var e *env
		e, err = setup(ctx)
		defer e.Close()
		if err != nil {
			return err
		}
		var tpl *store.Template
		tpl, err = e.store.FetchTemplate(ctx, templateOwnerOrDefault(), templateClient, templateName)
		if err != nil {
			return err
		}
		data = tpl.Data
	default:
		err = errors.New("give a template file or --name")
		return err
	}

	var sections []style.SectionDescription
	sections, err = style.DescribeTemplate(data)
	if err != nil {
		return err
	}
	fmt.Println(style.SectionPrompt(sections))

	var rules *style.Rules
	rules, err = style.Extract(data)
	if err != nil {
		return err
	}

	fmt.Println("\nStyle rules:")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SECTION\tFONT\tSIZE\tBOLD\tCOLOR\tALIGNMENT")
	for _, header := range rules.Headers {
		rule := rules.Resolve(header)
		fmt.Fprintf(w, "%s\t%s\t%g\t%t\t#%s\t%s\n", header, rule.Font, rule.Size, rule.Bold, rule.Color.Hex(), rule.Alignment)
	}
	if rule, ok := rules.Table(); ok {
		fmt.Fprintf(w, "(table)\t%s\t%g\t%t\t#%s\t%s\n", rule.Font, rule.Size, rule.Bold, rule.Color.Hex(), rule.Alignment)
	}
	def := rules.Default
	fmt.Fprintf(w, "(default)\t%s\t%g\t%t\t#%s\t%s\n", def.Font, def.Size, def.Bold, def.Color.Hex(), def.Alignment)
	err = w.Flush()
	return err
}

func runTemplatePrompt(cmd *cobra.Command, args []string) (err error) {
	ctx := cmd.Context()

	if templateName == "" {
		err = errors.New("--name is required")
		return err
	}
	switch templatePromptKind {
	case store.PromptTemplate, store.PromptConversion:
	default:
		err = errors.Errorf("--kind must be %s or %s, got %s", store.PromptTemplate, store.PromptConversion, templatePromptKind)
		return err
	}

	var prompt string
	prompt, err = readPromptArg(args[0])
	if err != nil {
		return err
	}

	var e *env
	e, err = setup(ctx)
	defer e.Close()
	if err != nil {
		return err
	}

	owner := templateOwnerOrDefault()
	_, err = e.store.FetchTemplate(ctx, owner, templateClient, templateName)
	if err != nil {
		return err
	}

	err = e.store.SavePrompt(ctx, owner, templateClient, templateName, templatePromptKind, prompt)
	if err != nil {
		return err
	}

	fmt.Printf("✓ Stored %s prompt for %s\n", templatePromptKind, templateName)
	return err
}
