// Package config loads the pipeline configuration: input locations, learner
// hyperparameters and run flags. Every output path is derived from one
// output root.
package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/kr/pretty"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/qqpair/qqpair/qqp-go/dataset"
	"github.com/qqpair/qqpair/qqp-golib/decisiontree"
	"github.com/qqpair/qqpair/qqp-golib/errors"
	"github.com/qqpair/qqpair/qqp-golib/fileutil"
	"github.com/qqpair/qqpair/qqp-golib/linear"
	"github.com/qqpair/qqpair/qqp-golib/serialization"
)

// TagLayout formats the default run tag.
const TagLayout = "2006-01-02_15-04-05"

// Learner types.
const (
	XGBoost = "xgboost"
	LR      = "lr"
	Lasso   = "lasso"
)

// Config is the typed form of a run configuration file.
type Config struct {
	Log     LogConfig             `mapstructure:"log" yaml:"log"`
	Paths   PathsConfig           `mapstructure:"paths" yaml:"paths"`
	Feature FeatureConfig         `mapstructure:"feature" yaml:"feature"`
	Model   ModelConfig           `mapstructure:"model" yaml:"model"`
	XGBoost decisiontree.Params   `mapstructure:"xgboost" yaml:"xgboost"`
	LR      linear.LogisticParams `mapstructure:"lr" yaml:"lr"`
	Lasso   linear.LassoParams    `mapstructure:"lasso" yaml:"lasso"`
	Rescale RescaleConfig         `mapstructure:"rescale" yaml:"rescale"`
	Lock    LockConfig            `mapstructure:"lock" yaml:"lock"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// PathsConfig locates inputs and the output root. Paths may be local or s3://.
type PathsConfig struct {
	// Data holds the learner lock markers
	Data string `mapstructure:"data" yaml:"data"`
	// Origin holds the raw train.csv and test.csv tables
	Origin       string `mapstructure:"origin" yaml:"origin"`
	Preprocessed string `mapstructure:"preprocessed" yaml:"preprocessed"`
	Features     string `mapstructure:"features" yaml:"features"`
	Index        string `mapstructure:"index" yaml:"index"`
	Labels       string `mapstructure:"labels" yaml:"labels"`
	IDs          string `mapstructure:"ids" yaml:"ids"`
	// Out is the output root, {tag} is replaced by the run tag
	Out string `mapstructure:"out" yaml:"out"`
}

// FeatureConfig lists the feature blocks making up the design matrix.
type FeatureConfig struct {
	Names    []string `mapstructure:"names" yaml:"names"`
	WillSave bool     `mapstructure:"will_save" yaml:"will_save"`
	// CacheSize is the number of merged matrices kept in memory
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size"`
}

// ModelConfig holds the run flags.
type ModelConfig struct {
	Type string `mapstructure:"type" yaml:"type"`
	Tag  string `mapstructure:"tag" yaml:"tag"`

	TrainRawset   string `mapstructure:"train_rawset" yaml:"train_rawset"`
	ValidRawset   string `mapstructure:"valid_rawset" yaml:"valid_rawset"`
	TestRawset    string `mapstructure:"test_rawset" yaml:"test_rawset"`
	OfflineRawset string `mapstructure:"offline_rawset" yaml:"offline_rawset"`
	OnlineRawset  string `mapstructure:"online_rawset" yaml:"online_rawset"`

	TrainIndices string `mapstructure:"train_indices" yaml:"train_indices"`
	ValidIndices string `mapstructure:"valid_indices" yaml:"valid_indices"`
	TestIndices  string `mapstructure:"test_indices" yaml:"test_indices"`

	TrainPosRate float64 `mapstructure:"train_pos_rate" yaml:"train_pos_rate"`
	ValidPosRate float64 `mapstructure:"valid_pos_rate" yaml:"valid_pos_rate"`
	TestPosRate  float64 `mapstructure:"test_pos_rate" yaml:"test_pos_rate"`

	CVNum int    `mapstructure:"cv_num" yaml:"cv_num"`
	CVTag string `mapstructure:"cv_tag" yaml:"cv_tag"`
	NPart int    `mapstructure:"n_part" yaml:"n_part"`

	Online         bool    `mapstructure:"online" yaml:"online"`
	HasPostprocess bool    `mapstructure:"has_postprocess" yaml:"has_postprocess"`
	TE             float64 `mapstructure:"te" yaml:"te"`
	TR             float64 `mapstructure:"tr" yaml:"tr"`
	LogitFeatures  bool    `mapstructure:"logit_features" yaml:"logit_features"`
	Seed           int64   `mapstructure:"seed" yaml:"seed"`
	// Parallel bounds how many fold models score a shard at once
	Parallel int    `mapstructure:"parallel" yaml:"parallel"`
	Header   string `mapstructure:"header" yaml:"header"`
}

// Segment is one prior-shift bucket used by rescaling.
type Segment struct {
	TE float64 `mapstructure:"te" yaml:"te"`
	TR float64 `mapstructure:"tr" yaml:"tr"`
}

// RescaleConfig configures clique-size segment rescaling.
type RescaleConfig struct {
	CliqueFeature    string  `mapstructure:"clique_feature" yaml:"clique_feature"`
	ComponentFeature string  `mapstructure:"component_feature" yaml:"component_feature"`
	Threshold        float64 `mapstructure:"threshold" yaml:"threshold"`
	// CliqueEqual applies when the max clique size equals the threshold
	CliqueEqual Segment `mapstructure:"clique_equal" yaml:"clique_equal"`
	// CliqueAbove applies when the max clique size exceeds the threshold
	CliqueAbove Segment `mapstructure:"clique_above" yaml:"clique_above"`
	// SmallComponent and LargeComponent split the remaining pairs by component size
	SmallComponent Segment `mapstructure:"small_component" yaml:"small_component"`
	LargeComponent Segment `mapstructure:"large_component" yaml:"large_component"`
}

// LockConfig configures the single-writer training lock.
type LockConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// Default returns a configuration with every default filled in.
func Default() Config {
	return Config{
		Log: LogConfig{Level: "info"},
		Paths: PathsConfig{
			Out: "out/{tag}",
		},
		Feature: FeatureConfig{CacheSize: 4},
		Model: ModelConfig{
			Type:          XGBoost,
			TrainRawset:   "train",
			ValidRawset:   "train",
			TestRawset:    "train",
			OfflineRawset: "train",
			OnlineRawset:  "test",
			TrainPosRate:  -1,
			ValidPosRate:  -1,
			TestPosRate:   -1,
			CVNum:         5,
			CVTag:         "0",
			NPart:         1,
			TE:            0.173,
			TR:            0.369,
			Seed:          1,
			Parallel:      2,
			Header:        `"id","label_probability"`,
		},
		XGBoost: decisiontree.DefaultParams(),
		LR:      linear.DefaultLogisticParams(),
		Lasso:   linear.DefaultLassoParams(),
		Rescale: RescaleConfig{
			CliqueFeature:    "graph_edge_max_clique_size",
			ComponentFeature: "graph_edge_cc_size",
			Threshold:        3,
			CliqueEqual:      Segment{TE: 0.40883512, TR: 0.623191},
			CliqueAbove:      Segment{TE: 0.96503024, TR: 0.972554},
			SmallComponent:   Segment{TE: 0.05739666, TR: 0.233473},
			LargeComponent:   Segment{TE: 0.04503431, TR: 0.149471},
		},
		Lock: LockConfig{PollInterval: 300 * time.Second},
	}
}

// Load reads the YAML file at path over the defaults, applies QQP_*
// environment overrides, and resolves the run tag. An empty tag keeps the
// configured one or falls back to the current time.
func Load(path string, tag string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("qqp")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("log.level", "info")
	v.SetDefault("model.type", XGBoost)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.WrapKind(errors.Configuration, err, "error reading config %s", path)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.WrapKind(errors.Configuration, err, "error decoding config %s", path)
	}
	cfg.resolve(tag, time.Now())
	return &cfg, nil
}

func (c *Config) resolve(tag string, now time.Time) {
	if tag != "" {
		c.Model.Tag = tag
	}
	if c.Model.Tag == "" {
		c.Model.Tag = now.Format(TagLayout)
	}
	c.Paths.Out = strings.ReplaceAll(c.Paths.Out, "{tag}", c.Model.Tag)
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs errors.Errors
	bad := func(format string, args ...interface{}) {
		errs = errors.Append(errs, errors.Kindf(errors.Configuration, format, args...))
	}

	switch c.Model.Type {
	case XGBoost:
		errs = errors.Append(errs, c.XGBoost.Validate())
	case LR:
		if c.LR.C <= 0 || c.LR.MaxIter < 1 {
			bad("lr.c and lr.max_iter must be positive")
		}
	case Lasso:
		if c.Lasso.Alpha < 0 || c.Lasso.MaxIter < 1 {
			bad("lasso.alpha must be non-negative and lasso.max_iter positive")
		}
	default:
		bad("unknown model.type %q", c.Model.Type)
	}

	if c.Paths.Out == "" {
		bad("paths.out is required")
	}
	if len(c.Feature.Names) == 0 {
		bad("feature.names is empty")
	}
	seen := make(map[string]bool)
	for _, name := range c.Feature.Names {
		if seen[name] {
			bad("feature %s listed twice", name)
		}
		seen[name] = true
	}

	for name, rate := range map[string]float64{
		"train_pos_rate": c.Model.TrainPosRate,
		"valid_pos_rate": c.Model.ValidPosRate,
		"test_pos_rate":  c.Model.TestPosRate,
	} {
		if rate < -1 || rate > 1 {
			bad("model.%s must be in [-1,1], got %v", name, rate)
		}
	}
	if c.Model.CVNum < 2 {
		bad("model.cv_num must be at least 2, got %d", c.Model.CVNum)
	}
	if c.Model.NPart < 1 {
		bad("model.n_part must be positive, got %d", c.Model.NPart)
	}
	if c.Model.Parallel < 1 {
		bad("model.parallel must be positive, got %d", c.Model.Parallel)
	}
	if c.Model.HasPostprocess && !inOpenUnit(c.Model.TE, c.Model.TR) {
		bad("model.te and model.tr must be in (0,1), got %v and %v", c.Model.TE, c.Model.TR)
	}
	for name, s := range c.Rescale.segments() {
		if !inOpenUnit(s.TE, s.TR) {
			bad("rescale.%s te and tr must be in (0,1), got %v and %v", name, s.TE, s.TR)
		}
	}
	if c.Lock.PollInterval <= 0 {
		bad("lock.poll_interval must be positive")
	}

	if errs == nil {
		return nil
	}
	return errs
}

func (r RescaleConfig) segments() map[string]Segment {
	return map[string]Segment{
		"clique_equal":    r.CliqueEqual,
		"clique_above":    r.CliqueAbove,
		"small_component": r.SmallComponent,
		"large_component": r.LargeComponent,
	}
}

func inOpenUnit(xs ...float64) bool {
	for _, x := range xs {
		if x <= 0 || x >= 1 {
			return false
		}
	}
	return true
}

// PredDir is where prediction files are written.
func (c *Config) PredDir() string { return fileutil.Join(c.Paths.Out, "pred") }

// ModelDir is where trained models are written.
func (c *Config) ModelDir() string { return fileutil.Join(c.Paths.Out, "model") }

// FaultDir is where fault reports are written.
func (c *Config) FaultDir() string { return fileutil.Join(c.Paths.Out, "fault") }

// ConfDir is where the effective configuration is written.
func (c *Config) ConfDir() string { return fileutil.Join(c.Paths.Out, "conf") }

// ScoreDir is where score summaries are written.
func (c *Config) ScoreDir() string { return fileutil.Join(c.Paths.Out, "score") }

// OutDirs lists the output root followed by every derived directory.
func (c *Config) OutDirs() []string {
	return []string{c.Paths.Out, c.PredDir(), c.ModelDir(), c.FaultDir(), c.ConfDir(), c.ScoreDir()}
}

// LabelPath is the label vector of a rawset.
func (c *Config) LabelPath(rawset string) string {
	return fileutil.Join(c.Paths.Labels, rawset+".label")
}

// IDPath is the external id vector of a rawset.
func (c *Config) IDPath(rawset string) string {
	return fileutil.Join(c.Paths.IDs, rawset+".id")
}

// FoldIndexPath is the index file of one split of one cross validation fold.
func (c *Config) FoldIndexPath(fold int, split string) string {
	return fileutil.Join(c.Paths.Index,
		dataset.FoldIndexName(c.Model.CVTag, c.Model.CVNum, fold, split, c.Model.OfflineRawset))
}

// RawTablePath is the raw table the fault reports are drawn from.
func (c *Config) RawTablePath() string {
	return c.RawPath("train")
}

// RawPath is the raw csv table of a rawset.
func (c *Config) RawPath(rawset string) string {
	return fileutil.Join(c.Paths.Origin, rawset+".csv")
}

// CleanPath is the normalized copy of a rawset's table.
func (c *Config) CleanPath(rawset string) string {
	return fileutil.Join(c.Paths.Preprocessed, rawset+"_clean.csv")
}

// FaultPaths returns the positive and negative fault report paths.
func (c *Config) FaultPaths() (string, string) {
	return fileutil.Join(c.FaultDir(), "test.pos.fault"), fileutil.Join(c.FaultDir(), "test.neg.fault")
}

// SnapshotPath is where Snapshot writes the effective configuration.
func (c *Config) SnapshotPath() string {
	return fileutil.Join(c.ConfDir(), "run.yaml")
}

// Snapshot writes the effective configuration as YAML.
func (c *Config) Snapshot() error {
	return serialization.Encode(c.SnapshotPath(), c)
}

// LogParams logs the hyperparameters of the configured learner.
func (c *Config) LogParams(log *zap.Logger) {
	var params interface{}
	switch c.Model.Type {
	case LR:
		params = c.LR
	case Lasso:
		params = c.Lasso
	default:
		params = c.XGBoost
	}
	log.Info("learner params", zap.String("type", c.Model.Type),
		zap.String("params", pretty.Sprint(params)))
}

// LockPath is the marker file serializing training of the configured learner.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.Data, c.Model.Type+".lock")
}
