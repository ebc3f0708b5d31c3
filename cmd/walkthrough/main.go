// Command walkthrough trains a small booster from libsvm text, saves the
// model and the test matrix, reloads both and checks that predictions are
// unchanged. It then rebuilds the training matrix from CSR triplets and
// checks that retraining gives the same predictions.
//
//	walkthrough -train agaricus.txt.train -test agaricus.txt.test -out ./model
//	walkthrough -sample-config config.json
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/gbdata/booster"
	"github.com/YuminosukeSato/gbdata/config"
	"github.com/YuminosukeSato/gbdata/core/dmatrix"
	"github.com/YuminosukeSato/gbdata/core/libsvm"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
	"github.com/YuminosukeSato/gbdata/pkg/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	err := errors.SafeExecute("walkthrough", func() error {
		return run(os.Args[1:], os.Stdout, os.Stderr)
	})
	if err != nil {
		log.GetLogger().Error("walkthrough failed", err)
		fmt.Fprintf(os.Stderr, "walkthrough: %v\n", err)
		os.Exit(1)
	}
}

// run executes the walkthrough. Results go to stdout, logs and progress to
// stderr.
func run(args []string, stdout, stderr io.Writer) error {
	cfg, sampleOnly, err := loadConfig(args, stderr)
	if err != nil || sampleOnly {
		return err
	}
	logger, err := setupLogger(cfg.Log, stderr)
	if err != nil {
		return err
	}

	// 訓練・テストデータを並行して読み込む
	var dtrain, dtest *dmatrix.DMatrix
	var g errgroup.Group
	g.Go(func() (err error) {
		dtrain, err = dmatrix.FromText(cfg.Data.Train)
		return err
	})
	g.Go(func() (err error) {
		dtest, err = dmatrix.FromText(cfg.Data.Test)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	options := []booster.TrainOption{booster.WithLogger(logger), booster.WithNumThreads(cfg.Threads)}
	if !cfg.Silent {
		options = append(options, booster.WithCallbacks(newProgressCallback("Training")))
	}

	bst, err := booster.Train(cfg.Params, dtrain, cfg.Rounds,
		map[string]*dmatrix.DMatrix{"train": dtrain, "test": dtest}, options...)
	if err != nil {
		return err
	}
	predicts, err := bst.Predict(dtest)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfg.Data.Output, 0o755); err != nil {
		return errors.NewIOError("walkthrough", cfg.Data.Output, err)
	}
	modelPath := filepath.Join(cfg.Data.Output, "gb.model")
	bufferPath := filepath.Join(cfg.Data.Output, "dtest.buffer")
	if err := bst.SaveModel(modelPath); err != nil {
		return err
	}
	if err := dtest.SaveBinary(bufferPath); err != nil {
		return err
	}

	// モデルとデータを再読み込み
	bst2, err := booster.LoadModel(modelPath)
	if err != nil {
		return err
	}
	dtest2, err := dmatrix.FromBinary(bufferPath)
	if err != nil {
		return err
	}
	predicts2, err := bst2.Predict(dtest2)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, booster.CheckPredicts(predicts, predicts2))

	fmt.Fprintln(stdout, "start build dmatrix from csr sparse data ...")
	store, labels, err := libsvm.ParseFile(cfg.Data.Train)
	if err != nil {
		return err
	}
	rowPtr, colIndex, values := store.Triplets()
	dtrain2, err := dmatrix.FromCSR(rowPtr, colIndex, values)
	if err != nil {
		return err
	}
	if err := dtrain2.SetLabel(labels); err != nil {
		return err
	}

	bst3, err := booster.Train(cfg.Params, dtrain2, cfg.Rounds,
		map[string]*dmatrix.DMatrix{"train": dtrain2, "test": dtest2}, options...)
	if err != nil {
		return err
	}
	predicts3, err := bst3.Predict(dtest2)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, booster.CheckPredicts(predicts, predicts3))
	return nil
}

// loadConfig builds the configuration from -config (or the defaults) and
// applies the flags that were set explicitly. sampleOnly is true when
// -sample-config was given and the sample has been written.
func loadConfig(args []string, stderr io.Writer) (cfg config.Config, sampleOnly bool, err error) {
	fs := flag.NewFlagSet("walkthrough", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "JSON configuration file")
	samplePath := fs.String("sample-config", "", "write a sample configuration to this path and exit")
	train := fs.String("train", "", "training data in libsvm text format")
	test := fs.String("test", "", "test data in libsvm text format")
	out := fs.String("out", "", "output directory for gb.model and dtest.buffer")
	rounds := fs.Int("rounds", 0, "number of boosting rounds")
	threads := fs.Int("threads", 0, "worker count, 0 for one per CPU")
	silent := fs.Bool("silent", false, "disable the progress bar")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "", "json or console")
	if err := fs.Parse(args); err != nil {
		return cfg, false, errors.NewValidationError("args", err.Error(), args)
	}

	if *samplePath != "" {
		return cfg, true, config.CreateSample(*samplePath)
	}

	cfg = config.Default()
	if *configPath != "" {
		if cfg, err = config.Load(*configPath); err != nil {
			return cfg, false, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "train":
			cfg.Data.Train = *train
		case "test":
			cfg.Data.Test = *test
		case "out":
			cfg.Data.Output = *out
		case "rounds":
			cfg.Rounds = *rounds
		case "threads":
			cfg.Threads = *threads
		case "silent":
			cfg.Silent = *silent
		case "log-level":
			cfg.Log.Level = config.LogLevel(*logLevel)
		case "log-format":
			cfg.Log.Format = config.LogFormat(*logFormat)
		}
	})
	return cfg, false, cfg.Validate()
}

func setupLogger(c config.ConfigLog, w io.Writer) (log.Logger, error) {
	level, err := c.Level.Level()
	if err != nil {
		return nil, err
	}
	var logger log.Logger
	if c.Format == config.LogFormatJSON {
		logger = log.NewZerologLogger(w, level)
	} else {
		logger = log.NewConsoleLogger(w, level)
	}
	log.SetLogger(logger)
	return logger, nil
}
