// Command downsize shrinks a single image so its decoded 32bpp footprint fits
// a byte budget, re-encoding it in the detected source format.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/UnendingLoop/ImageShrinker/internal/imageproc"
	"github.com/spf13/cobra"
)

var (
	inputFile  string
	outputFile string
	targetSize int
	quality    int
)

func init() {
	rootCmd.Flags().StringVarP(&inputFile, "input", "i", "", "path to the source image (reads stdin when omitted)")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "path for the result (writes stdout when omitted)")
	rootCmd.Flags().IntVarP(&targetSize, "target-size", "t", imageproc.DefaultTargetBytes, "byte budget for the decoded 32bpp bitmap")
	rootCmd.Flags().IntVarP(&quality, "quality", "q", imageproc.DefaultQuality, "encoder quality, 0-100")
}

var rootCmd = &cobra.Command{
	Use:   "downsize",
	Short: "shrink an image to fit a byte budget",
	Long: `downsize decodes an image, shrinks it (preserving aspect ratio) until an
uncompressed 32-bit-per-pixel bitmap of it would fit the given byte budget,
and re-encodes it with the requested quality in the format it arrived in.
The output file extension is corrected to match the detected codec.`,
	SilenceUsage: true,
	RunE:         run,
}

func run(cmd *cobra.Command, args []string) error {
	req := imageproc.Request{
		InputFile:   inputFile,
		OutputFile:  outputFile,
		TargetBytes: &targetSize,
		Quality:     &quality,
	}

	// без -i читаем картинку с stdin
	if inputFile == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		req.ImageBytes = data
	}

	out, err := imageproc.Process(req)
	if err != nil {
		return err
	}

	// без -o результат уходит в stdout
	if outputFile == "" {
		if _, err := os.Stdout.Write(out); err != nil {
			return fmt.Errorf("failed to write stdout: %w", err)
		}
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
