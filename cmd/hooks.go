package cmd

import (
	"fmt"
	"os"

	"github.com/latchhq/latch/internal/hookgen"
	"github.com/latchhq/latch/pkg/buildinfo"
	"github.com/spf13/cobra"
)

func newHooksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Manage git hook scripts and the hook manifest",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a starter .latch/hooks.yaml manifest",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := generator()
			if err != nil {
				return err
			}
			path, err := g.InitManifest()
			if err != nil {
				return err
			}
			cmd.Printf("created %s\n", path)
			cmd.Println("next: latch hooks generate && latch hooks install")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "generate",
		Short: "Render hook scripts into .latch/hooks/",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := generator()
			if err != nil {
				return err
			}
			written, err := g.Generate()
			if err != nil {
				return err
			}
			for _, path := range written {
				cmd.Printf("generated %s\n", path)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "install",
		Short: "Install generated hook scripts into .git/hooks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := generator()
			if err != nil {
				return err
			}
			n, err := g.Install()
			if err != nil {
				return err
			}
			cmd.Printf("installed %d hook(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove",
		Short: "Remove installed latch hooks and restore backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := generator()
			if err != nil {
				return err
			}
			n, err := g.Remove()
			if err != nil {
				return err
			}
			cmd.Printf("removed %d hook(s)\n", n)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect",
		Short: "Show hook generation and installation status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			g, err := generator()
			if err != nil {
				return err
			}
			for _, st := range g.Inspect() {
				state := "not installed"
				switch {
				case st.Installed && st.Managed:
					state = "installed (managed by latch)"
				case st.Installed:
					state = "installed (unmanaged)"
				}
				generated := "not generated"
				if st.Generated {
					generated = "generated"
				}
				cmd.Printf("%-10s  %s, %s\n", st.Hook, generated, state)
			}
			return nil
		},
	})

	return cmd
}

func generator() (*hookgen.Generator, error) {
	root, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	return hookgen.New(root, buildinfo.BinaryVersion), nil
}
