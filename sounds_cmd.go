package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/live-announcer/internal/sounds"
)

var (
	soundsCmd = &cobra.Command{
		Use:   "sounds",
		Short: "List the sound clip assigned to each role",
		Long:  paragraph(fmt.Sprintf("\n%s the clips played for follows, shares, gifts and likes. Roles without an assignment use <assets_dir>/<role>.mp3.", keyword("List"))),
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			for _, e := range lib.Entries() {
				state := faint("default")
				if e.Assigned {
					state = keyword("assigned")
				}
				missing := ""
				if _, err := os.Stat(e.Path); err != nil {
					missing = faint(" (missing)")
				}
				fmt.Printf("%-11s %s %s%s\n", e.Role, state, e.Path, missing)
			}
			return nil
		},
	}

	soundsSetCmd = &cobra.Command{
		Use:     "set ROLE PATH",
		Short:   "Assign an audio file to a sound role",
		Example: paragraph("announcer sounds set follow ~/sounds/ding.mp3"),
		Args:    cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			role, err := sounds.ParseRole(args[0])
			if err != nil {
				return fmt.Errorf("%w (roles: %v)", err, sounds.Roles)
			}
			if err := lib.Assign(role, args[1]); err != nil {
				return err
			}
			fmt.Printf("Set %s to %s in %s\n", keyword(string(role)), args[1], lib.Path())
			return nil
		},
	}

	soundsUnsetCmd = &cobra.Command{
		Use:   "unset ROLE",
		Short: "Revert a sound role to its default clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			lib, err := openLibrary()
			if err != nil {
				return err
			}
			role, err := sounds.ParseRole(args[0])
			if err != nil {
				return err
			}
			return lib.Unassign(role)
		},
	}
)

func openLibrary() (*sounds.Library, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return sounds.Open(cfg.Sounds.File, cfg.Sounds.AssetsDir, log.Default())
}

func init() {
	soundsCmd.AddCommand(soundsSetCmd, soundsUnsetCmd)
}
