package main

import (
	"log"

	"github.com/alexflint/go-arg"

	"github.com/qqpair/qqpair/qqp-go/dataset"
)

func fail(err error) {
	if err != nil {
		log.Fatalln(err)
	}
}

func main() {
	args := struct {
		Labels string `arg:"required" help:"label vector of the rawset, one row per line"`
		OutDir string `arg:"required" help:"directory the index files are written to"`
		Rawset string `help:"rawset named in the index file names"`
		CVNum  int    `help:"number of folds"`
		CVTag  string `help:"tag named in the index file names"`
		Seed   int64  `help:"shuffle seed"`
	}{
		Rawset: "train",
		CVNum:  5,
		CVTag:  "0",
		Seed:   1,
	}
	arg.MustParse(&args)
	log.SetPrefix("[gen-cv-index] ")

	labels, err := dataset.LoadLabels(args.Labels)
	fail(err)

	folds, err := dataset.GenerateFolds(len(labels), args.CVNum, args.Seed)
	fail(err)
	fail(dataset.SaveFolds(args.OutDir, args.CVTag, args.Rawset, folds))

	for _, f := range folds {
		log.Printf("fold %d: %d train, %d valid, %d test\n", f.ID, len(f.Train), len(f.Valid), len(f.Test))
	}
}
