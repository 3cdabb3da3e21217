package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nikogura/doc-reformatter/pkg/pipeline"
	"github.com/nikogura/doc-reformatter/pkg/renderer"
	"github.com/nikogura/doc-reformatter/pkg/source"
	"github.com/nikogura/doc-reformatter/pkg/store"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var convertTemplateFile string

//nolint:gochecknoglobals // Cobra boilerplate
var convertTemplateName string

//nolint:gochecknoglobals // Cobra boilerplate
var convertClient string

//nolint:gochecknoglobals // Cobra boilerplate
var convertOwner string

//nolint:gochecknoglobals // Cobra boilerplate
var convertTemplatePrompt string

//nolint:gochecknoglobals // Cobra boilerplate
var convertConversionPrompt string

//nolint:gochecknoglobals // Cobra boilerplate
var convertOutput string

//nolint:gochecknoglobals // Cobra boilerplate
var convertTimeout time.Duration

//nolint:gochecknoglobals // Cobra boilerplate
var convertText bool

//nolint:gochecknoglobals // Cobra boilerplate
var convertCmd = &cobra.Command{
	Use:   "convert <source-file-or-url-or-text>",
	Short: "Reformat a document after a template",
	Long: `Reformat a source document into the sections and style of a template.

The source can be a .docx file, a text file, or an http(s) URL (HTML pages are
reduced to text). With --text the argument itself is the source text. The template is either a .docx file (--template) or a template
previously stored with 'doc-reformatter template import' (--template-name).

Prompts given as @path are read from that file.

Example:
  doc-reformatter convert cv.docx --template house-style.docx
  doc-reformatter convert notes.txt --template-name house --client acme
  doc-reformatter convert --text "SKILLS: Go, Rust" --template house.docx
  doc-reformatter convert report.docx --template house.docx --conversion-prompt @rules.txt -o out.docx`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVar(&convertTemplateFile, "template", "", "Template .docx file")
	convertCmd.Flags().StringVar(&convertTemplateName, "template-name", "", "Name of a stored template")
	convertCmd.Flags().StringVar(&convertClient, "client", "", "Client the stored template belongs to")
	convertCmd.Flags().StringVar(&convertOwner, "owner", "", "Owner of stored templates (default is the current user)")
	convertCmd.Flags().StringVar(&convertTemplatePrompt, "template-prompt", "", "Section description for the model (default is generated from the template)")
	convertCmd.Flags().StringVar(&convertConversionPrompt, "conversion-prompt", "", "Additional conversion instructions for the model")
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output .docx path (default is <output_dir>/<source>-reformatted.docx)")
	convertCmd.Flags().BoolVar(&convertText, "text", false, "Treat the argument as the source text")
	convertCmd.Flags().DurationVar(&convertTimeout, "timeout", 10*time.Minute, "Overall conversion timeout")
	convertCmd.MarkFlagsMutuallyExclusive("template", "template-name")
}

func runConvert(cmd *cobra.Command, args []string) (err error) {
	ctx, cancel := context.WithTimeout(cmd.Context(), convertTimeout)
	defer cancel()

	var e *env
	e, err = setup(ctx)
	defer e.Close()
	if err != nil {
		return err
	}

	owner := convertOwner
	if owner == "" {
		owner = defaultOwner()
	}

	var src *source.Source
	if convertText {
		src = source.FromBytes("text", []byte(args[0]))
	} else {
		src, err = source.FetchWithContext(ctx, args[0])
		if err != nil {
			err = errors.Wrap(err, "failed to load source")
			return err
		}
	}
	e.logger.Debugw("Loaded source", "name", src.Name, "bytes", len(src.Data), "docx", src.Kind == source.KindDocx)

	req := pipeline.Request{
		Owner:  owner,
		Client: convertClient,
		Source: src,
	}

	err = resolveTemplate(ctx, e.store, &req)
	if err != nil {
		return err
	}

	if convertTemplatePrompt != "" {
		req.TemplatePrompt, err = readPromptArg(convertTemplatePrompt)
		if err != nil {
			return err
		}
	}
	if convertConversionPrompt != "" {
		req.ConversionPrompt, err = readPromptArg(convertConversionPrompt)
		if err != nil {
			return err
		}
	}

	p := e.buildPipeline()

	var res *pipeline.Result
	err = withSpinner("Reformatting document...", func() (fnErr error) {
		res, fnErr = p.Convert(ctx, req)
		return fnErr
	})
	if err != nil {
		err = errors.Wrap(err, "conversion failed")
		return err
	}

	outPath := convertOutput
	if outPath == "" {
		outPath = filepath.Join(e.cfg.Defaults.OutputDir, sanitizeFilename(src.Name)+"-reformatted.docx")
	}

	err = renderer.WriteDocument(outPath, res.Document)
	if err != nil {
		return err
	}

	if res.Output.Degraded() {
		fmt.Fprintf(os.Stderr, "Warning: %d of %d chunks failed; the document contains only the error report\n", res.Failed, res.Chunks)
		for _, msg := range res.Output.Errors {
			fmt.Fprintf(os.Stderr, "  - %s\n", msg)
		}
	}

	fmt.Printf("✓ Wrote %s (%d sections from %d chunks)\n", outPath, len(res.Output.SectionOrder), res.Chunks)
	return err
}

// resolveTemplate fills the template from --template or from the store. A stored
// template carries its stored section prompt unless one is given on the command line.
func resolveTemplate(ctx context.Context, st *store.Store, req *pipeline.Request) (err error) {
	switch {
	case convertTemplateFile != "":
		req.Template, err = os.ReadFile(convertTemplateFile)
		if err != nil {
			err = errors.Wrapf(err, "failed to read template: %s", convertTemplateFile)
			return err
		}
		req.TemplateName = filepath.Base(convertTemplateFile)

	case convertTemplateName != "":
		var tpl *store.Template
		tpl, err = st.FetchTemplate(ctx, req.Owner, req.Client, convertTemplateName)
		if err != nil {
			return err
		}
		req.Template = tpl.Data
		req.TemplateName = tpl.Name

		prompt, promptErr := st.LoadPrompt(ctx, req.Owner, req.Client, tpl.Name, store.PromptTemplate)
		if promptErr == nil {
			req.TemplatePrompt = prompt
		}
		prompt, promptErr = st.LoadPrompt(ctx, req.Owner, req.Client, tpl.Name, store.PromptConversion)
		if promptErr == nil {
			req.ConversionPrompt = prompt
		}
	}
	return err
}

// readPromptArg returns arg, or the contents of the file when arg is @path.
func readPromptArg(arg string) (prompt string, err error) {
	path, ok := strings.CutPrefix(arg, "@")
	if !ok {
		prompt = arg
		return prompt, err
	}

	var data []byte
	data, err = os.ReadFile(path)
	if err != nil {
		err = errors.Wrapf(err, "failed to read prompt file: %s", path)
		return prompt, err
	}
	prompt = string(data)
	return prompt, err
}

// sanitizeFilename turns a source name or URL into a safe file stem.
func sanitizeFilename(name string) (sanitized string) {
	sanitized = filepath.Base(strings.TrimRight(name, "/"))
	sanitized = strings.TrimSuffix(sanitized, filepath.Ext(sanitized))
	sanitized = strings.ToLower(sanitized)

	sanitized = strings.Map(func(r rune) (result rune) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			result = r
			return result
		}
		result = '-'
		return result
	}, sanitized)

	for strings.Contains(sanitized, "--") {
		sanitized = strings.ReplaceAll(sanitized, "--", "-")
	}
	sanitized = strings.Trim(sanitized, "-")

	if sanitized == "" {
		sanitized = "document"
	}
	return sanitized
}
