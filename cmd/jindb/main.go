// Command jindb is a thin cobra-based CLI wrapping the storage core: a
// line REPL for manual exploration, and an init command that opens (or
// creates) a database and reports its catalog.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/malzahar/jindb/config"
	"github.com/malzahar/jindb/db"
	"github.com/malzahar/jindb/sgbd"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:   "jindb",
		Short: "jindb is a disk-backed relational storage core",
	}
	root.PersistentFlags().String("dbpath", ".", "path to the database directory")
	root.PersistentFlags().String("config", "", "optional config file (yaml/json/toml)")
	_ = v.BindPFlag("dbpath", root.PersistentFlags().Lookup("dbpath"))

	root.AddCommand(newReplCmd(v), newInitCmd(v))
	return root
}

func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.DBConfig, error) {
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		return config.LoadDBConfig(cfgFile)
	}
	return config.LoadDBConfigFromViper(v)
}

func newReplCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive CREATE/INSERT/SELECT/... session on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			s, err := sgbd.NewSGBD(cfg)
			if err != nil {
				return err
			}
			return s.Run()
		},
	}
}

func newInitCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Open (creating if necessary) a database and print its catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			m, err := db.Open(cfg, zerolog.New(os.Stderr))
			if err != nil {
				return err
			}
			defer m.Close()

			names := m.TableNames()
			fmt.Printf("database at %s: %d relation(s)\n", cfg.DBPath, len(names))
			for _, name := range names {
				rel, ok := m.GetTable(name)
				if !ok {
					continue
				}
				fmt.Printf("  %s: %d attribute(s)\n", rel.Name, len(rel.Schema.Attributes))
			}
			return nil
		},
	}
}
