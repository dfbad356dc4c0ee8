package model

import "github.com/YuminosukeSato/scigo-fixtures/pkg/errors"

// EstimatorState はモデルの学習状態
type EstimatorState int

const (
	NotFitted EstimatorState = iota
	Fitted
)

func (s EstimatorState) String() string {
	if s == Fitted {
		return "fitted"
	}
	return "not fitted"
}

// BaseEstimator は各推定器に埋め込む共通部分。
// State は gob で永続化されるため公開フィールドにしている。
type BaseEstimator struct {
	State EstimatorState
}

func (e *BaseEstimator) IsFitted() bool { return e.State == Fitted }

func (e *BaseEstimator) SetFitted() { e.State = Fitted }

func (e *BaseEstimator) Reset() { e.State = NotFitted }

// CheckFitted は未学習なら NotFittedError を返す
//
//	if err := s.CheckFitted("StandardScaler", "Transform"); err != nil {
//	    return nil, err
//	}
func (e *BaseEstimator) CheckFitted(name, method string) error {
	if e.State != Fitted {
		return errors.NewNotFittedError(name, method)
	}
	return nil
}
