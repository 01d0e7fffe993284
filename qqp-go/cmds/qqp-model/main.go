package main

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/featurestore"
	"github.com/qqpair/qqpair/qqp-go/model"
	"github.com/qqpair/qqpair/qqp-golib/qqplog"
)

var tag string

func init() {
	log.SetPrefix("[qqp-model] ")
}

type env struct {
	cfg   *config.Config
	log   *zap.Logger
	store *featurestore.Store
}

func setup(path string) env {
	cfg, err := config.Load(path, tag)
	if err != nil {
		log.Fatalln(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalln(err)
	}
	logger, err := qqplog.New(cfg.Log.Level)
	if err != nil {
		log.Fatalln(err)
	}
	store, err := featurestore.New(cfg.Paths.Features, cfg.Feature.Names, featurestore.Options{
		WillSave:  cfg.Feature.WillSave,
		CacheSize: cfg.Feature.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalln(err)
	}
	return env{cfg: cfg, log: logger, store: store}
}

func parseFold(s string) int {
	fold, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("bad model id %q: %v\n", s, err)
	}
	return fold
}

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train CONF",
		Short: "fit one model on the configured train/valid/test indices",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			t, err := model.NewTrainer(e.cfg, e.store, e.log)
			if err != nil {
				log.Fatalln(err)
			}
			res, err := t.Train(context.Background())
			if err != nil {
				log.Fatalln(err)
			}
			fmt.Printf("train %.6f\tvalid %.6f\ttest %.6f\n", res.Train, res.Valid, res.Test)
			if res.Online != "" {
				fmt.Println(res.Online)
			}
		},
	}
}

func cvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cv CONF",
		Short: "cross validate over the configured fold partition",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			t, err := model.NewTrainer(e.cfg, e.store, e.log)
			if err != nil {
				log.Fatalln(err)
			}
			res, err := t.CrossValidate(context.Background())
			if err != nil {
				log.Fatalln(err)
			}
			for _, f := range res.Folds {
				fmt.Printf("fold %d\ttrain %.6f\tvalid %.6f\ttest %.6f\n", f.Fold, f.Train, f.Valid, f.Test)
			}
			fmt.Printf("all\tvalid %.6f\ttest %.6f\n", res.Valid, res.Test)
			if res.Online != "" {
				fmt.Println(res.Online)
				fmt.Println(res.Rescaled)
			}
		},
	}
}

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict CONF [MODEL_ID]",
		Short: "score the online set with a saved model, the fold model when MODEL_ID is given",
		Args:  cobra.RangeArgs(1, 2),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			fold := -1
			if len(args) > 1 {
				fold = parseFold(args[1])
			}
			pred, rescaled, err := model.Predict(context.Background(), e.cfg, e.store, fold, e.log)
			if err != nil {
				log.Fatalln(err)
			}
			fmt.Println(pred)
			fmt.Println(rescaled)
		},
	}
}

func rescaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rescale CONF PRED",
		Short: "rescale an online prediction file by clique and component segment",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			out, err := model.Rescale(e.cfg, e.store, args[1], e.log)
			if err != nil {
				log.Fatalln(err)
			}
			fmt.Println(out)
		},
	}
}

func scoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score CONF SPLIT PRED",
		Short: "score a labelled prediction file of one split by max clique size bucket",
		Args:  cobra.ExactArgs(3),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			buckets, err := model.ScoreSegments(e.cfg, e.store, args[1], args[2], e.log)
			if err != nil {
				log.Fatalln(err)
			}
			for _, b := range buckets {
				if b.Empty {
					fmt.Printf("%s\tno data\n", b.Name)
					continue
				}
				fmt.Printf("%s\tcount %d\tlabel rate %.4f\tmean score %.4f\tloss %.6f\n",
					b.Name, b.Count, b.LabelRate, b.MeanScore, b.Loss)
			}
		},
	}
}

func saveFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save-features CONF",
		Short: "assemble and cache the merged train and online feature matrices",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			if !e.cfg.Feature.WillSave {
				log.Fatalln("feature.will_save is off, nothing would be kept")
			}
			if err := model.SaveAllFeatures(e.cfg, e.store); err != nil {
				log.Fatalln(err)
			}
		},
	}
}

func featureIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fname2findex CONF",
		Short: "print the column span of every feature block",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			ranges, err := model.FeatureIndex(e.cfg, e.store, e.log)
			if err != nil {
				log.Fatalln(err)
			}
			for _, r := range ranges {
				fmt.Printf("%s\t%d\t%d\n", r.Name, r.Start, r.End)
			}
		},
	}
}

func sortFeaturesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sort-features CONF MODEL_ID",
		Short: "rank the feature columns of a saved fold model by importance",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			e := setup(args[0])
			defer e.log.Sync()

			scores, err := model.SortFeatures(e.cfg, e.store, parseFold(args[1]))
			if err != nil {
				log.Fatalln(err)
			}
			for _, s := range scores {
				fmt.Printf("%s\t%.6f\n", s.Name, s.Score)
			}
		},
	}
}

func main() {
	rootCmd := &cobra.Command{Use: "qqp-model"}
	rootCmd.PersistentFlags().StringVar(&tag, "tag", "", "run tag substituted into the output root, defaults to the config's or the current time")
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(cvCmd())
	rootCmd.AddCommand(predictCmd())
	rootCmd.AddCommand(rescaleCmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(saveFeaturesCmd())
	rootCmd.AddCommand(featureIndexCmd())
	rootCmd.AddCommand(sortFeaturesCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatalln(err)
	}
}
