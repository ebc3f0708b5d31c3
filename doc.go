// Package gbdata provides the data layer of a gradient-boosted tree library
// for Go: sparse row matrices, libsvm text ingest, a binary matrix format,
// and a small exact-greedy booster that consumes them.
//
// # Features
//
// - Compressed sparse row storage with validated construction
// - libsvm text parsing with line and column positions in errors
// - Binary save/load that round-trips bit-exactly, optionally gzip, zstd or lz4 compressed
// - Typed errors (IOError, FormatError, ShapeError, OrderError, TruncatedError)
// - Deterministic training across worker counts
//
// # Installation
//
//	go get github.com/YuminosukeSato/gbdata
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/gbdata/booster"
//	    "github.com/YuminosukeSato/gbdata/core/dmatrix"
//	)
//
//	func main() {
//	    dtrain, err := dmatrix.FromText("agaricus.txt.train")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    dtest, err := dmatrix.FromText("agaricus.txt.test")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    params := map[string]interface{}{
//	        "eta": 1.0, "max_depth": 2, "silent": 1, "objective": "binary:logistic",
//	    }
//	    bst, err := booster.Train(params, dtrain, 2,
//	        map[string]*dmatrix.DMatrix{"train": dtrain, "test": dtest})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    preds, err := bst.Predict(dtest)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(preds[0])
//
//	    // バイナリ形式で保存して再読み込み
//	    if err := dtest.SaveBinary("dtest.buffer"); err != nil {
//	        log.Fatal(err)
//	    }
//	    reloaded, err := dmatrix.FromBinary("dtest.buffer")
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(reloaded.Equal(dtest))
//	}
//
// # Packages
//
//   - core/sparse: CSR storage (SparseRowStore)
//   - core/libsvm: libsvm text parser
//   - core/dmatrix: DMatrix handle and binary codec
//   - core/fileio: compressed, atomic file access
//   - core/parallel: worker partitioning
//   - core/model: gob persistence and fitted-state tracking
//   - booster: tree training, prediction, callbacks
//   - metrics: rmse, mae, error, logloss, auc
//   - config: walkthrough configuration
//   - pkg/errors, pkg/log: error types and structured logging
//
// # Errors
//
// Every failure is a typed error wrapped with a stack trace. Use errors.As
// from pkg/errors to inspect it:
//
//	_, err := dmatrix.FromBinary("broken.buffer")
//	var te *errors.TruncatedError
//	if errors.As(err, &te) {
//	    fmt.Println("need", te.Expected, "bytes, got", te.Got)
//	}
//
// # License
//
// gbdata is released under the MIT License.
package gbdata
