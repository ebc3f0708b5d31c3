// Package model provides gob persistence and fitted-state tracking shared by
// trained models.
package model

import (
	"encoding/gob"
	"io"

	"github.com/YuminosukeSato/gbdata/core/fileio"
	"github.com/YuminosukeSato/gbdata/pkg/errors"
)

// SaveModel はモデルをファイルに保存する
//
// 一時ファイルに書き込んでからリネームするため、失敗しても既存のファイルは壊れない。
// パスの拡張子が .gz / .zst / .lz4 の場合は圧縮して保存する。
//
// 使用例:
//
//	err := model.SaveModel(booster, "gb.model")
func SaveModel(m interface{}, path string) error {
	return fileio.WriteAtomic("SaveModel", path, func(w io.Writer) error {
		return SaveModelToWriter(m, w)
	})
}

// LoadModel はファイルからモデルを読み込む
//
// m は読み込み先のポインタ。
func LoadModel(m interface{}, path string) (err error) {
	rc, err := fileio.Open("LoadModel", path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil && err == nil {
			err = errors.NewIOError("LoadModel", path, cerr)
		}
	}()

	if err := LoadModelFromReader(m, rc); err != nil {
		return errors.Wrapf(err, "load %s", path)
	}
	return nil
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.NewModelError("SaveModel", "encode", err)
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.NewModelError("LoadModel", "decode", err)
	}
	return nil
}
