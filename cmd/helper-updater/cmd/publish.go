package cmd

import (
	"github.com/spf13/cobra"

	"github.com/shamu4life/helper-scripts/internal/service/publisher"
)

// newPublishCommand builds the "publish" subcommand writing a release manifest.
func newPublishCommand() *cobra.Command {
	opts := &publisher.Options{}

	publishCmd := &cobra.Command{
		Use:          "publish <artifact>",
		Short:        "Write a release manifest for a build",
		Long:         "Digest a build and write the YAML manifest read by the \"manifest\" release source.",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ArtifactPath = args[0]

			return publisher.Run(cmd.Context(), opts)
		},
	}

	flags := publishCmd.Flags()
	flags.StringVar(&opts.URL, "url", "", "URL the artifact will be downloaded from")
	flags.StringVar(&opts.Version, "version", "", "release version; read from the artifact when empty")
	flags.StringSliceVar(&opts.VersionArgs, "version-args", nil, "arguments that make the artifact print its version")
	flags.StringVar(&opts.VersionPattern, "version-pattern", "", "regular expression extracting the version from the output")
	flags.StringVar(&opts.ArchiveMember, "archive-member", "", "binary to extract when the artifact is a tarball")
	flags.StringVarP(&opts.Output, "output", "o", publisher.DefaultOutput, "manifest path")

	_ = publishCmd.MarkFlagRequired("url")

	return publishCmd
}
