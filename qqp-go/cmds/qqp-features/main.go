package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/features"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-go/preprocess"
	"github.com/qqpair/qqpair/qqp-golib/qqplog"
)

func init() {
	log.SetPrefix("[qqp-features] ")
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path, "")
	if err != nil {
		log.Fatalln(err)
	}
	return cfg
}

func preprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preprocess CONF",
		Short: "write the label, id, question and cleaned text tables for the train and online sets",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(args[0])
			logger, err := qqplog.New(cfg.Log.Level)
			if err != nil {
				log.Fatalln(err)
			}
			defer logger.Sync()

			if err := preprocess.Run(cfg, logger); err != nil {
				log.Fatalln(err)
			}
		},
	}
}

func extractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract CONF NAME...",
		Short: "compute feature blocks for the train and online sets",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig(args[0])
			names := args[1:]
			logger, err := qqplog.New(cfg.Log.Level)
			if err != nil {
				log.Fatalln(err)
			}
			defer logger.Sync()

			store, err := featurestore.New(cfg.Paths.Features, names, featurestore.Options{Logger: logger})
			if err != nil {
				log.Fatalln(err)
			}
			corpus, err := features.LoadCorpus(cfg)
			if err != nil {
				log.Fatalln(err)
			}
			if err := features.Run(context.Background(), cfg, store, corpus, names, logger); err != nil {
				log.Fatalln(err)
			}
		},
	}
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "print the names of all feature extractors",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range features.Names() {
				fmt.Println(name)
			}
		},
	}
}

func main() {
	rootCmd := &cobra.Command{Use: "qqp-features"}
	rootCmd.AddCommand(preprocessCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(listCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err)
	}
}
