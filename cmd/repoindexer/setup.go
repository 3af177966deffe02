package main

import (
	"fmt"

	"github.com/fyrsmithlabs/repoindexer/internal/embeddings"
	"github.com/spf13/cobra"
)

var forceDownload bool

func init() {
	setupONNXCmd.Flags().BoolVarP(&forceDownload, "force", "f", false, "re-download even if the runtime exists")
}

// setupONNXCmd installs the ONNX runtime used by the fastembed provider
var setupONNXCmd = &cobra.Command{
	Use:   "setup-onnx",
	Short: "Download the ONNX runtime for local embeddings",
	Long: `Download the ONNX runtime library required by the fastembed embedding
provider. The library is installed to:
  ~/.config/repoindexer/lib/

If the ONNX_PATH environment variable is set, that path takes precedence.

Examples:
  # Install the runtime
  repoindexer setup-onnx

  # Force a re-download
  repoindexer setup-onnx --force`,
	Args: cobra.NoArgs,
	RunE: runSetupONNX,
}

func runSetupONNX(cmd *cobra.Command, _ []string) error {
	installer := embeddings.NewRuntimeInstaller()
	if !forceDownload {
		if path := installer.LibraryPath(); path != "" {
			cmd.Printf("ONNX runtime already installed at: %s\n", path)
			cmd.Println("Use --force to re-download.")
			return nil
		}
	}

	cmd.Printf("Downloading ONNX runtime v%s...\n", installer.Version)
	path, err := installer.Install(cmd.Context(), true)
	if err != nil {
		return fmt.Errorf("failed to install ONNX runtime: %w", err)
	}
	cmd.Printf("Installed ONNX runtime to: %s\n", path)
	return nil
}
