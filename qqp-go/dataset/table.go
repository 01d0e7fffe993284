package dataset

import (
	"github.com/gocarina/gocsv"

	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
)

// Pair is one row of the labelled raw table.
type Pair struct {
	ID          int    `csv:"id"`
	QID1        int    `csv:"qid1"`
	QID2        int    `csv:"qid2"`
	Question1   string `csv:"question1"`
	Question2   string `csv:"question2"`
	IsDuplicate int    `csv:"is_duplicate"`
}

// TestPair is one row of the unlabelled raw table.
type TestPair struct {
	TestID    int    `csv:"test_id"`
	Question1 string `csv:"question1"`
	Question2 string `csv:"question2"`
}

// QuestionPair is the view of a raw row shared by both tables.
type QuestionPair struct {
	Question1 string
	Question2 string
}

// LoadPairs reads the labelled raw table.
func LoadPairs(path string) ([]*Pair, error) {
	var pairs []*Pair
	if err := loadCSV(path, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// LoadTestPairs reads the unlabelled raw table.
func LoadTestPairs(path string) ([]*TestPair, error) {
	var pairs []*TestPair
	if err := loadCSV(path, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

// LoadQuestionPairs reads either raw table, keeping only the question texts.
func LoadQuestionPairs(path string, labelled bool) ([]QuestionPair, error) {
	var qs []QuestionPair
	if labelled {
		pairs, err := LoadPairs(path)
		if err != nil {
			return nil, err
		}
		for _, p := range pairs {
			qs = append(qs, QuestionPair{Question1: p.Question1, Question2: p.Question2})
		}
		return qs, nil
	}
	pairs, err := LoadTestPairs(path)
	if err != nil {
		return nil, err
	}
	for _, p := range pairs {
		qs = append(qs, QuestionPair{Question1: p.Question1, Question2: p.Question2})
	}
	return qs, nil
}

// SavePairs writes rows with a header, in the raw table layout.
func SavePairs(path string, pairs interface{}) (err error) {
	w, err := fileutil.NewBufferedWriter(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer errors.Defer(&err, w.Close)
	return gocsv.Marshal(pairs, w)
}

func loadCSV(path string, out interface{}) error {
	r, err := fileutil.NewReader(path)
	if err != nil {
		return errors.Wrapf(err, "error opening %s", path)
	}
	defer r.Close()
	if err := gocsv.Unmarshal(r, out); err != nil {
		return errors.WrapKind(errors.DataIntegrity, err, "error parsing %s", path)
	}
	return nil
}
