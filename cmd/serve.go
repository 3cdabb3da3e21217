package cmd

import (
	"os/signal"
	"syscall"

	"github.com/nikogura/doc-reformatter/pkg/server"
	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var serveAddr string

//nolint:gochecknoglobals // Cobra boilerplate
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve conversions over HTTP",
	Long: `Serve conversions over HTTP.

POST /convert takes a multipart form:
  source_file or source_text   the document to reformat
  template                     a template .docx upload, or the name of a stored template
  client                       client the stored template belongs to
  template_prompt              section description (default is the stored or generated one)
  conversion_prompt            additional conversion instructions

The owner is taken from the X-Owner header. The response is the reformatted .docx.

GET /healthz reports liveness.

Example:
  doc-reformatter serve --addr :8080
  curl -F source_file=@cv.docx -F template=@house.docx localhost:8080/convert -o out.docx`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var e *env
	e, err = setup(ctx)
	defer e.Close()
	if err != nil {
		return err
	}

	addr := serveAddr
	if addr == "" {
		addr = e.cfg.Server.Addr
	}

	srv := server.New(e.buildPipeline(), e.store, e.logger)
	err = srv.ListenAndServe(ctx, addr)
	return err
}
