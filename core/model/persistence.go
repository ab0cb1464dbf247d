package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"
	"reflect"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// SaveModel は gob でエンコードしたモデルを filename に保存する
//
// 同じディレクトリの一時ファイルに書いてから rename するので、途中で中断しても
// 既存のファイルが壊れることはない。
//
//	outcome, _ := search.Fit(ctx, ds)
//	err := model.SaveModel(outcome.BestEstimator, "best.gob")
func SaveModel(model interface{}, filename string) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), "."+filepath.Base(filename)+".*")
	if err != nil {
		return errors.Wrapf(err, "create %s", filename)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if err := SaveModelToWriter(model, tmp); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "write %s", filename)
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return errors.Wrapf(err, "rename to %s", filename)
	}
	return nil
}

// LoadModel はファイルからモデルを読み込む
//
//	var clf ensemble.GradientBoostingClassifier
//	err := model.LoadModel(&clf, "best.gob")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "open %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(model interface{}, w io.Writer) error {
	if model == nil || (reflect.ValueOf(model).Kind() == reflect.Pointer && reflect.ValueOf(model).IsNil()) {
		return errors.NewValueError("SaveModel", "nil model")
	}
	if err := gob.NewEncoder(w).Encode(model); err != nil {
		return errors.Wrap(err, "encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む。model はポインタであること。
func LoadModelFromReader(model interface{}, r io.Reader) error {
	if v := reflect.ValueOf(model); v.Kind() != reflect.Pointer || v.IsNil() {
		return errors.NewValueError("LoadModel", "target must be a non-nil pointer")
	}
	if err := gob.NewDecoder(r).Decode(model); err != nil {
		return errors.Wrap(err, "decode model")
	}
	return nil
}
