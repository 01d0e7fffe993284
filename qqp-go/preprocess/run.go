package preprocess

import (
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-go/config"
	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// Question is one row of the qid to question table.
type Question struct {
	QID      int    `csv:"qid"`
	Question string `csv:"question"`
}

// QuestionTable lists every question of the labelled table by qid. A qid
// seen twice keeps its last text.
func QuestionTable(pairs []*dataset.Pair) []Question {
	byID := make(map[int]string, 2*len(pairs))
	for _, p := range pairs {
		byID[p.QID1] = p.Question1
	}
	for _, p := range pairs {
		byID[p.QID2] = p.Question2
	}
	out := make([]Question, 0, len(byID))
	for qid, q := range byID {
		out = append(out, Question{QID: qid, Question: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QID < out[j].QID })
	return out
}

// DuplicateStats counts the questions of both columns and the distinct ones.
func DuplicateStats(pairs []dataset.QuestionPair) (int, int) {
	seen := make(map[string]struct{}, 2*len(pairs))
	for _, p := range pairs {
		seen[p.Question1] = struct{}{}
		seen[p.Question2] = struct{}{}
	}
	return 2 * len(pairs), len(seen)
}

func logDuplicates(log *zap.Logger, rawset string, pairs []dataset.QuestionPair) {
	total, unique := DuplicateStats(pairs)
	rate := 0.0
	if total > 0 {
		rate = float64(unique) / float64(total)
	}
	log.Info("question duplication", zap.String("rawset", rawset),
		zap.Int("questions", total), zap.Int("unique_questions", unique), zap.Float64("rate", rate))
}

// Run reads the labelled train table and the unlabelled online table from
// the origin dir and writes:
//   - the train labels, and all-zero labels for the online set
//   - the online ids and the index of every online row
//   - the qid to question table of the train set
//   - a normalized copy of both tables
func Run(cfg *config.Config, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	train := cfg.Model.TrainRawset
	online := cfg.Model.OnlineRawset

	pairs, err := dataset.LoadPairs(cfg.RawPath(train))
	if err != nil {
		return err
	}
	labels := make([]float64, len(pairs))
	var pos int
	for i, p := range pairs {
		if p.IsDuplicate != 0 && p.IsDuplicate != 1 {
			return errors.Kindf(errors.DataIntegrity, "row %d: is_duplicate is %d", i, p.IsDuplicate)
		}
		labels[i] = float64(p.IsDuplicate)
		pos += p.IsDuplicate
	}
	if err := dataset.SaveFloats(cfg.LabelPath(train), labels); err != nil {
		return err
	}
	log.Info("saved labels", zap.String("rawset", train), zap.Int("pos", pos), zap.Int("neg", len(pairs)-pos))

	questions := QuestionTable(pairs)
	qpath := fileutil.Join(cfg.Paths.Preprocessed, train+"_qid2question.csv")
	if err := dataset.SavePairs(qpath, questions); err != nil {
		return err
	}
	log.Info("saved question table", zap.Int("qids", 2*len(pairs)), zap.Int("unique_qids", len(questions)))

	qs := make([]dataset.QuestionPair, len(pairs))
	for i, p := range pairs {
		qs[i] = dataset.QuestionPair{Question1: p.Question1, Question2: p.Question2}
		p.Question1 = Normalize(p.Question1)
		p.Question2 = Normalize(p.Question2)
	}
	logDuplicates(log, train, qs)
	if err := dataset.SavePairs(cfg.CleanPath(train), pairs); err != nil {
		return err
	}

	tests, err := dataset.LoadTestPairs(cfg.RawPath(online))
	if err != nil {
		return err
	}
	ids := make([]string, len(tests))
	index := make([]int, len(tests))
	qs = qs[:0]
	for i, p := range tests {
		ids[i] = strconv.Itoa(p.TestID)
		index[i] = i
		qs = append(qs, dataset.QuestionPair{Question1: p.Question1, Question2: p.Question2})
		p.Question1 = Normalize(p.Question1)
		p.Question2 = Normalize(p.Question2)
	}
	logDuplicates(log, online, qs)
	if err := dataset.SaveStrings(cfg.IDPath(online), ids); err != nil {
		return err
	}
	if err := dataset.SaveFloats(cfg.LabelPath(online), make([]float64, len(tests))); err != nil {
		return err
	}
	if err := dataset.SaveInts(fileutil.Join(cfg.Paths.Index, "full."+online+".index"), index); err != nil {
		return err
	}
	if err := dataset.SavePairs(cfg.CleanPath(online), tests); err != nil {
		return err
	}
	log.Info("preprocess done", zap.Int(train, len(pairs)), zap.Int(online, len(tests)))
	return nil
}
