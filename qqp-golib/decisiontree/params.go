package decisiontree

import (
	"github.com/qqpair/qqpair/qqp-golib/errors"
)

// Params are the boosting hyperparameters. Names follow the xgboost
// parameters they correspond to.
type Params struct {
	Objective       string  `json:"objective" mapstructure:"objective" yaml:"objective"`
	EvalMetric      string  `json:"eval_metric" mapstructure:"eval_metric" yaml:"eval_metric"`
	Eta             float64 `json:"eta" mapstructure:"eta" yaml:"eta"`
	MaxDepth        int     `json:"max_depth" mapstructure:"max_depth" yaml:"max_depth"`
	Subsample       float64 `json:"subsample" mapstructure:"subsample" yaml:"subsample"`
	ColsampleByTree float64 `json:"colsample_bytree" mapstructure:"colsample_bytree" yaml:"colsample_bytree"`
	MinChildWeight  float64 `json:"min_child_weight" mapstructure:"min_child_weight" yaml:"min_child_weight"`
	Gamma           float64 `json:"gamma" mapstructure:"gamma" yaml:"gamma"`
	Alpha           float64 `json:"alpha" mapstructure:"alpha" yaml:"alpha"`
	Lambda          float64 `json:"lambda" mapstructure:"lambda" yaml:"lambda"`
	ScalePosWeight  float64 `json:"scale_pos_weight" mapstructure:"scale_pos_weight" yaml:"scale_pos_weight"`
	BaseScore       float64 `json:"base_score" mapstructure:"base_score" yaml:"base_score"`
	NumRound        int     `json:"num_round" mapstructure:"num_round" yaml:"num_round"`
	EarlyStop       int     `json:"early_stop" mapstructure:"early_stop" yaml:"early_stop"`
	NThread         int     `json:"nthread" mapstructure:"nthread" yaml:"nthread"`
	Seed            int64   `json:"seed" mapstructure:"seed" yaml:"seed"`
	// VerboseEval logs the watch losses every VerboseEval rounds, 0 disables it
	VerboseEval int `json:"verbose_eval" mapstructure:"verbose_eval" yaml:"verbose_eval"`
}

// DefaultParams mirrors the xgboost defaults for binary:logistic.
func DefaultParams() Params {
	return Params{
		Objective:       "binary:logistic",
		EvalMetric:      "logloss",
		Eta:             0.3,
		MaxDepth:        6,
		Subsample:       1,
		ColsampleByTree: 1,
		MinChildWeight:  1,
		Lambda:          1,
		ScalePosWeight:  1,
		BaseScore:       0.5,
		NumRound:        100,
		NThread:         1,
		VerboseEval:     10,
	}
}

// Validate reports every invalid parameter at once.
func (p Params) Validate() error {
	var errs errors.Errors
	bad := func(format string, args ...interface{}) {
		errs = errors.Append(errs, errors.Kindf(errors.Configuration, format, args...))
	}

	if p.Objective != "" && p.Objective != "binary:logistic" {
		bad("unsupported objective %q", p.Objective)
	}
	if p.EvalMetric != "" && p.EvalMetric != "logloss" {
		bad("unsupported eval_metric %q", p.EvalMetric)
	}
	if p.Eta <= 0 || p.Eta > 1 {
		bad("eta must be in (0,1], got %v", p.Eta)
	}
	if p.MaxDepth < 1 {
		bad("max_depth must be positive, got %d", p.MaxDepth)
	}
	if p.Subsample <= 0 || p.Subsample > 1 {
		bad("subsample must be in (0,1], got %v", p.Subsample)
	}
	if p.ColsampleByTree <= 0 || p.ColsampleByTree > 1 {
		bad("colsample_bytree must be in (0,1], got %v", p.ColsampleByTree)
	}
	if p.MinChildWeight < 0 || p.Gamma < 0 || p.Alpha < 0 || p.Lambda < 0 {
		bad("min_child_weight, gamma, alpha and lambda must be non-negative")
	}
	if p.ScalePosWeight <= 0 {
		bad("scale_pos_weight must be positive, got %v", p.ScalePosWeight)
	}
	if p.BaseScore <= 0 || p.BaseScore >= 1 {
		bad("base_score must be in (0,1), got %v", p.BaseScore)
	}
	if p.NumRound < 1 {
		bad("num_round must be positive, got %d", p.NumRound)
	}
	if p.EarlyStop < 0 || p.NThread < 0 || p.VerboseEval < 0 {
		bad("early_stop, nthread and verbose_eval must be non-negative")
	}

	if errs == nil {
		return nil
	}
	return errs
}
